// Package output renders a scan session for humans or for other programs.
package output

import (
	"fmt"
	"io"

	"guestpatch/patcher"
	"guestpatch/physical"
)

// Printer receives every user facing event of a session. It is also a patcher.Sink.
type Printer interface {
	patcher.Sink

	Session(name string, info physical.KernelInfo)
	Pages(count int, span physical.PhysicalSize)
	Summary(summary patcher.Summary)
	Fatal(err error)
}

var (
	_ Printer = (*Plain)(nil)
	_ Printer = (*Decorated)(nil)
)

// fatal is shared by both printers so scripts see the same failure line
func fatal(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
}

func winver(info physical.KernelInfo) string {
	if info.Version.IsZero() {
		return "unknown"
	}
	return info.Version.String()
}
