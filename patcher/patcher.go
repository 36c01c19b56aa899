// Package patcher scans physical ranges for a pattern and optionally overwrites every match.
package patcher

import (
	"fmt"

	"guestpatch/physical"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Matcher finds every occurrence of a pattern in a buffer. Implementations may use several
// goroutines internally but must return only when the whole buffer has been searched.
type Matcher interface {
	Scan(data []byte) []uint64
	Len() int
}

// Patcher runs a Matcher over physical ranges. All memory I/O happens sequentially on the
// calling goroutine.
type Patcher struct {
	mem     physical.PhysicalMemory
	matcher Matcher
	sink    Sink
	patch   []byte
	context int
	log     *logger.Logger
}

// Option configures a Patcher
type Option func(*Patcher)

// WithPatch sets the bytes written over every match. An empty patch means scan only.
func WithPatch(patch []byte) Option {
	return func(p *Patcher) {
		p.patch = append([]byte(nil), patch...)
	}
}

// WithContext copies up to n bytes before and after each match into Result.Context.
func WithContext(n int) Option {
	return func(p *Patcher) {
		if n > 0 {
			p.context = n
		}
	}
}

func WithLogger(log *logger.Logger) Option {
	return func(p *Patcher) {
		p.log = log
	}
}

func New(mem physical.PhysicalMemory, matcher Matcher, sink Sink, options ...Option) *Patcher {
	p := &Patcher{
		mem:     mem,
		matcher: matcher,
		sink:    sink,
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "patcher")),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

// Patching reports whether a patch is configured
func (p *Patcher) Patching() bool {
	return len(p.patch) > 0
}

// Run scans ranges in order. A range that cannot be read is skipped, a failed write is
// reported on its result; neither stops the run.
func (p *Patcher) Run(ranges []physical.Range) Summary {
	var summary Summary

	for _, r := range ranges {
		data, err := physical.ReadExact(p.mem, r.Address, r.Size)
		if err != nil {
			summary.RangesSkipped++
			continue
		}
		summary.RangesScanned++
		summary.BytesScanned += r.Size

		offsets := p.matcher.Scan(data)
		for _, offset := range offsets {
			result := Result{
				Address:  r.Address + physical.PhysicalAddress(offset),
				MatchLen: p.matcher.Len(),
				Range:    r,
			}
			if p.context > 0 {
				result.Context, result.ContextBase = p.window(data, r.Address, int(offset))
			}

			if p.Patching() {
				result.Attempted = true
				if err := p.mem.WritePhysical(result.Address, p.patch); err != nil {
					result.Err = err
					summary.PatchFailed++
				} else {
					result.Patched = true
					summary.Patched++
				}
			}

			summary.Matches++
			p.sink.Result(result)
		}
	}

	if summary.RangesSkipped > 0 {
		p.log.Debugln(fmt.Sprintf("skipped %d unreadable ranges", summary.RangesSkipped))
	}
	return summary
}

// window copies the bytes around a match so they survive later writes.
func (p *Patcher) window(data []byte, base physical.PhysicalAddress, offset int) ([]byte, physical.PhysicalAddress) {
	start := max(offset-p.context, 0)
	end := min(offset+p.matcher.Len()+p.context, len(data))
	out := make([]byte, end-start)
	copy(out, data[start:end])
	return out, base + physical.PhysicalAddress(start)
}
