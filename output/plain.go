package output

import (
	"fmt"
	"io"

	"guestpatch/patcher"
	"guestpatch/physical"
)

// Plain writes one undecorated line per match to stdout and everything else to stderr.
type Plain struct {
	stdout io.Writer
	stderr io.Writer
}

func NewPlain(stdout, stderr io.Writer) *Plain {
	return &Plain{stdout: stdout, stderr: stderr}
}

func (p *Plain) Session(name string, info physical.KernelInfo) {
	fmt.Fprintf(p.stderr, "connected to %s, winver: %s\n", name, winver(info))
	fmt.Fprintln(p.stderr, "generating pageset, this may take a while")
}

func (p *Plain) Pages(count int, span physical.PhysicalSize) {
	fmt.Fprintf(p.stderr, "found %d pages for a total span of %s\n", count, span.ToString())
}

func (p *Plain) Result(r patcher.Result) {
	switch {
	case !r.Attempted:
		fmt.Fprintf(p.stdout, "%s\n", r.Address.ToString())
	case r.Patched:
		fmt.Fprintf(p.stdout, "%s OK\n", r.Address.ToString())
	default:
		fmt.Fprintf(p.stdout, "%s FAILED\n", r.Address.ToString())
	}
}

func (p *Plain) Summary(s patcher.Summary) {
	fmt.Fprintf(p.stderr, "%d matches in %d ranges (%d unreadable)", s.Matches, s.RangesScanned, s.RangesSkipped)
	if s.Patched > 0 || s.PatchFailed > 0 {
		fmt.Fprintf(p.stderr, ", %d patched, %d failed", s.Patched, s.PatchFailed)
	}
	fmt.Fprintln(p.stderr)
}

func (p *Plain) Fatal(err error) {
	fatal(p.stderr, err)
}
