package physical

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// PhysicalAddress represents an address in guest physical memory
type PhysicalAddress uint64

func (pa PhysicalAddress) ToString() string {
	return fmt.Sprintf("0x%X", uint64(pa))
}

// PhysicalSize represents a length of guest physical memory in bytes
type PhysicalSize uint64

func (ps PhysicalSize) ToString() string {
	return humanize.IBytes(uint64(ps))
}

// Page sizes a page-table leaf can map on x86-64.
const (
	PageSize4K PhysicalSize = 0x1000
	PageSize2M PhysicalSize = 0x200000
	PageSize1G PhysicalSize = 0x40000000
)

// IsPageSize reports whether size is one of the three x86-64 leaf sizes.
func IsPageSize(size PhysicalSize) bool {
	switch size {
	case PageSize4K, PageSize2M, PageSize1G:
		return true
	}
	return false
}
