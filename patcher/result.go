package patcher

import "guestpatch/physical"

// Result describes one pattern match
type Result struct {
	Address  physical.PhysicalAddress
	MatchLen int
	Range    physical.Range

	// Attempted is true when a patch was configured and a write was tried at Address
	Attempted bool
	Patched   bool
	Err       error

	// Context holds the bytes around the match as read before patching, when enabled.
	// ContextBase is the physical address of Context[0].
	Context     []byte
	ContextBase physical.PhysicalAddress
}

// Summary counts the work done by Run
type Summary struct {
	RangesScanned int
	RangesSkipped int // unreadable ranges
	BytesScanned  physical.PhysicalSize
	Matches       int
	Patched       int
	PatchFailed   int
}

// Sink receives results as they are produced
type Sink interface {
	Result(r Result)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(r Result)

func (f SinkFunc) Result(r Result) {
	f(r)
}

// Collector is a Sink that keeps every result
type Collector struct {
	Results []Result
}

func (c *Collector) Result(r Result) {
	c.Results = append(c.Results, r)
}
