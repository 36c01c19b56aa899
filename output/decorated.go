package output

import (
	"fmt"
	"io"

	"guestpatch/hexdump"
	"guestpatch/patcher"
	"guestpatch/physical"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/dustin/go-humanize"
)

const separator = "========================"

// Decorated is the interactive form: colored status lines, marker glyphs and, when the
// results carry context, a hexdump under every match.
type Decorated struct {
	stdout io.Writer
	stderr io.Writer
}

func NewDecorated(stdout, stderr io.Writer) *Decorated {
	return &Decorated{stdout: stdout, stderr: stderr}
}

func (d *Decorated) Session(name string, info physical.KernelInfo) {
	fmt.Fprintf(d.stdout, "connected to %s, winver: %s\n",
		coloransi.Foreground(coloransi.ColorLimeGreen, name),
		coloransi.Foreground(coloransi.Cyan, winver(info)))
	fmt.Fprintln(d.stdout, "generating pageset, this may take a while")
}

func (d *Decorated) Pages(count int, span physical.PhysicalSize) {
	fmt.Fprintf(d.stdout, "found %s pages for a total span of %s\n",
		coloransi.Foreground(coloransi.Yellow, humanize.Comma(int64(count))),
		coloransi.Foreground(coloransi.Yellow, span.ToString()))
	fmt.Fprintln(d.stdout, separator)
}

func (d *Decorated) Result(r patcher.Result) {
	addr := coloransi.Foreground(coloransi.ColorOrange, r.Address.ToString())
	switch {
	case !r.Attempted:
		fmt.Fprintf(d.stdout, " » %s\n", addr)
	case r.Patched:
		fmt.Fprintf(d.stdout, " » %s › ✅\n", addr)
	default:
		fmt.Fprintf(d.stdout, " » %s › 🟥\n", addr)
	}

	if len(r.Context) > 0 {
		fmt.Fprint(d.stdout, hexdump.Window(r.Context, uint64(r.ContextBase), uint64(r.Address), matchLen(r)))
	}
}

func matchLen(r patcher.Result) int {
	if r.MatchLen > 0 {
		return r.MatchLen
	}
	return 1
}

func (d *Decorated) Summary(s patcher.Summary) {
	fmt.Fprintln(d.stdout, separator)
	fmt.Fprintf(d.stdout, "scanned %s in %s ranges, %s matches",
		humanize.IBytes(uint64(s.BytesScanned)),
		humanize.Comma(int64(s.RangesScanned)),
		humanize.Comma(int64(s.Matches)))
	if s.RangesSkipped > 0 {
		fmt.Fprintf(d.stdout, ", %s unreadable", coloransi.Foreground(coloransi.BrightBlack, humanize.Comma(int64(s.RangesSkipped))))
	}
	if s.Patched > 0 || s.PatchFailed > 0 {
		fmt.Fprintf(d.stdout, ", %s patched", coloransi.Foreground(coloransi.Green, humanize.Comma(int64(s.Patched))))
		if s.PatchFailed > 0 {
			fmt.Fprintf(d.stdout, ", %s failed", coloransi.Foreground(coloransi.Red, humanize.Comma(int64(s.PatchFailed))))
		}
	}
	fmt.Fprintln(d.stdout)
}

func (d *Decorated) Fatal(err error) {
	fatal(d.stderr, err)
}
