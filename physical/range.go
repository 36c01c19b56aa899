package physical

import (
	"fmt"
	"math"
	"sort"
)

// Range is a contiguous span of guest physical memory backed by a single page-table leaf.
// Ranges are comparable values and can be used directly as map keys.
type Range struct {
	Address PhysicalAddress
	Size    PhysicalSize
}

// NewRange validates that size is a page size, address is aligned to it and the span does not
// wrap around the address space.
func NewRange(address PhysicalAddress, size PhysicalSize) (Range, error) {
	if !IsPageSize(size) {
		return Range{}, fmt.Errorf("%w: unsupported size 0x%x", ErrInvalidRange, uint64(size))
	}
	if uint64(address)%uint64(size) != 0 {
		return Range{}, fmt.Errorf("%w: address %s not aligned to 0x%x", ErrInvalidRange, address.ToString(), uint64(size))
	}
	if uint64(address) > math.MaxUint64-uint64(size)+1 {
		return Range{}, fmt.Errorf("%w: %s+0x%x overflows", ErrInvalidRange, address.ToString(), uint64(size))
	}
	return Range{Address: address, Size: size}, nil
}

// End returns the last address covered by the range.
func (r Range) End() PhysicalAddress {
	return r.Address + PhysicalAddress(r.Size) - 1
}

// Contains reports whether addr falls inside the range
func (r Range) Contains(addr PhysicalAddress) bool {
	return addr >= r.Address && addr <= r.End()
}

// Compare orders ranges by address only. Ranges with the same address compare equal even when
// their sizes differ.
func (r Range) Compare(other Range) int {
	switch {
	case r.Address < other.Address:
		return -1
	case r.Address > other.Address:
		return 1
	}
	return 0
}

func (r Range) String() string {
	return fmt.Sprintf("%s [%s]", r.Address.ToString(), r.Size.ToString())
}

// SortRanges sorts ranges ascending by address. Equal addresses fall back to size so the result
// is the same regardless of the input order.
func SortRanges(ranges []Range) {
	sort.Slice(ranges, func(i, j int) bool {
		if c := ranges[i].Compare(ranges[j]); c != 0 {
			return c < 0
		}
		return ranges[i].Size < ranges[j].Size
	})
}

// TotalSize sums the sizes of all ranges
func TotalSize(ranges []Range) PhysicalSize {
	var total PhysicalSize
	for _, r := range ranges {
		total += r.Size
	}
	return total
}

// RangeSet collapses ranges reachable through more than one page-table path.
type RangeSet struct {
	items map[Range]struct{}
}

func NewRangeSet() *RangeSet {
	return &RangeSet{items: make(map[Range]struct{})}
}

// Insert adds r and reports whether it was not already present.
func (s *RangeSet) Insert(r Range) bool {
	if _, ok := s.items[r]; ok {
		return false
	}
	s.items[r] = struct{}{}
	return true
}

func (s *RangeSet) Len() int {
	return len(s.items)
}

// Sorted returns the members of the set ordered by SortRanges.
func (s *RangeSet) Sorted() []Range {
	out := make([]Range, 0, len(s.items))
	for r := range s.items {
		out = append(out, r)
	}
	SortRanges(out)
	return out
}
