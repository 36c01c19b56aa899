package main

import (
	"errors"
	"fmt"
	"os"

	"guestpatch/memory_dump"
	"guestpatch/output"
	"guestpatch/page_walker"
	"guestpatch/patcher"
	"guestpatch/pattern"
	"guestpatch/physical"
	"guestpatch/win_kernel"

	"github.com/alexflint/go-arg"
)

var errEmptyPageSet = errors.New("target memory page iteration returned nothing")

type args struct {
	Pattern   string `arg:"positional,required" help:"byte pattern, e.g. \"48 8B ?? 10\" or \"488b??10\""`
	Patch     string `arg:"-p,--patch" help:"bytes written over every match, e.g. \"9090\" or \"\\x90\\x90\""`
	Target    string `arg:"-g,--target,env:KPATCH_TARGET" help:"QEMU guest name (-name) to attach to"`
	Threads   int    `arg:"-t,--threads,env:KPATCH_THREADS" default:"0" help:"pattern scan workers, 0 uses every core"`
	RawOutput bool   `arg:"-r,--raw-output" help:"print bare addresses for scripts"`
	Image     string `arg:"-i,--image" help:"raw physical memory image to use instead of a live guest"`
	Context   int    `arg:"-c,--context" default:"0" help:"bytes of memory dumped around every match"`
}

func (args) Description() string {
	return "Scan the physical pages of a Windows guest kernel for a byte pattern and optionally patch every match."
}

func main() {
	var a args
	arg.MustParse(&a)

	var printer output.Printer = output.NewDecorated(os.Stdout, os.Stderr)
	if a.RawOutput {
		printer = output.NewPlain(os.Stdout, os.Stderr)
	}

	if err := run(a, printer); err != nil {
		printer.Fatal(err)
		os.Exit(1)
	}
}

func run(a args, printer output.Printer) error {
	// every configuration error surfaces before the guest is touched
	matcher, err := pattern.Parse(a.Pattern, pattern.WithWorkers(a.Threads))
	if err != nil {
		return err
	}
	patch, err := pattern.ParsePatch(a.Patch)
	if err != nil {
		return err
	}
	if a.Context < 0 {
		return fmt.Errorf("invalid context size %d", a.Context)
	}

	conn, err := openConnector(a, len(patch) > 0)
	if err != nil {
		return err
	}
	defer conn.Close()

	info, err := win_kernel.NewResolver(conn, conn.Architecture()).KernelInfo()
	if err != nil {
		return fmt.Errorf("failed to build win32kernel: %w", err)
	}
	if err := info.Validate(); err != nil {
		return err
	}
	printer.Session(conn.Name(), info)

	walker, err := page_walker.New(conn, physical.StaticKernel(info))
	if err != nil {
		return err
	}
	pages, err := walker.Scan()
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return errEmptyPageSet
	}
	printer.Pages(len(pages), physical.TotalSize(pages))

	options := []patcher.Option{patcher.WithPatch(patch)}
	if a.Context > 0 && !a.RawOutput {
		options = append(options, patcher.WithContext(a.Context))
	}
	summary := patcher.New(conn, matcher, printer, options...).Run(pages)
	printer.Summary(summary)
	return nil
}

func openConnector(a args, writable bool) (physical.Connector, error) {
	if a.Image != "" {
		img, err := memory_dump.Open(a.Image, writable)
		if err != nil {
			return nil, err
		}
		return img, nil
	}
	return openLive(a.Target)
}
