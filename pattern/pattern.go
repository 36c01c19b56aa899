// Package pattern parses array-of-bytes patterns with wildcards and finds them in memory buffers.
package pattern

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
)

var (
	ErrEmptyPattern   = errors.New("empty pattern")
	ErrInvalidPattern = errors.New("invalid pattern")
	ErrAllWildcard    = errors.New("pattern contains only wildcards")
	ErrInvalidPatch   = errors.New("the patch provided is not in a valid format")

	// ErrTooManyWorkers is returned when more workers are requested than there are logical cores.
	ErrTooManyWorkers = errors.New("worker count exceeds available cores")
)

// Pattern is an immutable byte pattern. A mask byte of 0xFF requires an exact match, 0x00
// marks a wildcard.
type Pattern struct {
	bytes   []byte
	mask    []byte
	anchor  int // first fully masked position, -1 if none
	workers int
}

// Option configures a Pattern at build time
type Option func(*options)

type options struct {
	workers int
}

// WithWorkers bounds the number of goroutines used by Scan. Zero selects every logical core.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// New builds a pattern from explicit bytes and mask.
func New(pattern, mask []byte, opts ...Option) (*Pattern, error) {
	if len(pattern) == 0 {
		return nil, ErrEmptyPattern
	}
	if len(pattern) != len(mask) {
		return nil, fmt.Errorf("%w: mask length (%d) doesn't match pattern length (%d)", ErrInvalidPattern, len(mask), len(pattern))
	}

	anchor, significant := -1, false
	for i, m := range mask {
		if m != 0 {
			significant = true
		}
		if m == 0xFF && anchor < 0 {
			anchor = i
		}
	}
	if !significant {
		return nil, ErrAllWildcard
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	workers, err := resolveWorkers(o.workers)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		bytes:   make([]byte, len(pattern)),
		mask:    make([]byte, len(mask)),
		anchor:  anchor,
		workers: workers,
	}
	copy(p.mask, mask)
	for i := range pattern {
		p.bytes[i] = pattern[i] & mask[i]
	}
	return p, nil
}

func availableCores() int {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return runtime.NumCPU()
	}
	return n
}

func resolveWorkers(requested int) (int, error) {
	cores := availableCores()
	switch {
	case requested < 0:
		return 0, fmt.Errorf("invalid worker count %d", requested)
	case requested == 0:
		return cores, nil
	case requested > cores:
		return 0, fmt.Errorf("%w: requested %d, have %d", ErrTooManyWorkers, requested, cores)
	}
	return requested, nil
}

// Len returns the pattern length in bytes
func (p *Pattern) Len() int {
	return len(p.bytes)
}

// Workers returns the number of goroutines Scan may use
func (p *Pattern) Workers() int {
	return p.workers
}

// Bytes returns a copy of the pattern bytes; wildcard positions are zero.
func (p *Pattern) Bytes() []byte {
	return append([]byte(nil), p.bytes...)
}

// Mask returns a copy of the pattern mask
func (p *Pattern) Mask() []byte {
	return append([]byte(nil), p.mask...)
}

// String renders the pattern in the space separated form, e.g. "DE ?? BE EF".
func (p *Pattern) String() string {
	var sb strings.Builder
	for i, b := range p.bytes {
		if i > 0 {
			sb.WriteString(" ")
		}
		if p.mask[i] == 0 {
			sb.WriteString("??")
		} else {
			fmt.Fprintf(&sb, "%02X", b)
		}
	}
	return sb.String()
}

// MatchAt reports whether the pattern matches data at offset.
func (p *Pattern) MatchAt(data []byte, offset int) bool {
	if offset < 0 || offset > len(data)-len(p.bytes) {
		return false
	}
	for j := range p.bytes {
		if p.mask[j] == 0 {
			continue
		}
		if data[offset+j]&p.mask[j] != p.bytes[j] {
			return false
		}
	}
	return true
}
