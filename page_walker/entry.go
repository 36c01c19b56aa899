package page_walker

import (
	"fmt"

	"guestpatch/physical"
)

const (
	// EntriesPerTable is the number of 8-byte entries in every paging structure.
	EntriesPerTable = 512

	// TableSize is the size in bytes of one paging structure.
	TableSize = EntriesPerTable * 8
)

const (
	flagPresent  = uint64(1) << 0
	flagPageSize = uint64(1) << 7

	// bits 12-51 hold the frame of the next table or of a 4 KiB page
	addressMask4K = uint64(0x000ffffffffff000)
	addressMask2M = uint64(0x000fffffffe00000)
	addressMask1G = uint64(0x000fffffc0000000)
)

// Level identifies a paging structure level, root first.
type Level int

const (
	LevelPML4 Level = iota
	LevelPDPT
	LevelPD
	LevelPT
)

// levelPolicy describes how entries of one level are decoded.
type levelPolicy struct {
	name string

	// shift is the number of virtual address bits below this level's index
	shift uint

	// leafSize is the size mapped by an entry with the page-size bit set, zero when the bit has
	// no meaning at this level.
	leafSize physical.PhysicalSize
	leafMask uint64

	// alwaysLeaf marks the last level, whose entries map pages without a page-size bit.
	alwaysLeaf bool
}

var levels = [...]levelPolicy{
	LevelPML4: {name: "PML4", shift: 39},
	LevelPDPT: {name: "PDPT", shift: 30, leafSize: physical.PageSize1G, leafMask: addressMask1G},
	LevelPD:   {name: "PD", shift: 21, leafSize: physical.PageSize2M, leafMask: addressMask2M},
	LevelPT:   {name: "PT", shift: 12, leafSize: physical.PageSize4K, leafMask: addressMask4K, alwaysLeaf: true},
}

func (l Level) valid() bool {
	return l >= LevelPML4 && l <= LevelPT
}

func (l Level) String() string {
	if !l.valid() {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levels[l].name
}

// Next returns the level below l
func (l Level) Next() Level {
	return l + 1
}

// Index returns the table index selected by a virtual address at this level.
func (l Level) Index(va uint64) int {
	return int((va >> levels[l].shift) & (EntriesPerTable - 1))
}

// Entry is a raw 64-bit paging structure entry.
type Entry uint64

// Present reports whether the present bit is set
func (e Entry) Present() bool {
	return uint64(e)&flagPresent != 0
}

// PageSize reports whether the page-size bit is set. Its meaning depends on the level.
func (e Entry) PageSize() bool {
	return uint64(e)&flagPageSize != 0
}

// IsLeaf reports whether the entry maps memory directly at level l instead of pointing to
// another table.
func (e Entry) IsLeaf(l Level) bool {
	p := levels[l]
	return p.alwaysLeaf || (p.leafSize != 0 && e.PageSize())
}

// LeafSize returns the size of memory mapped by the entry when it is a leaf at level l.
func (e Entry) LeafSize(l Level) physical.PhysicalSize {
	return levels[l].leafSize
}

// Address returns the physical address the entry points to at level l: the next table for
// non-leaf entries, the mapped frame for leaves.
func (e Entry) Address(l Level) physical.PhysicalAddress {
	if e.IsLeaf(l) {
		return physical.PhysicalAddress(uint64(e) & levels[l].leafMask)
	}
	return physical.PhysicalAddress(uint64(e) & addressMask4K)
}

// Usable reports whether the entry is present and points to a non-zero address. Entries with a
// zero address are treated as absent even when the present bit is set.
func (e Entry) Usable(l Level) bool {
	return e.Present() && e.Address(l) != 0
}
