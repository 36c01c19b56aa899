// Package page_walker enumerates every physical range mapped by a 4-level x86-64 page table
// hierarchy.
package page_walker

import (
	"fmt"

	"guestpatch/physical"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Stats counts what a scan visited
type Stats struct {
	TablesRead    int
	TablesSkipped int // intermediate tables that could not be read
	Pages4K       int
	Pages2M       int
	Pages1G       int
	Duplicates    int // leaves reachable through more than one path
}

// Walker walks the kernel page tables of a guest
type Walker struct {
	mem   physical.PhysicalReader
	dtb   physical.PhysicalAddress
	log   *logger.Logger
	stats Stats
}

// Option configures a Walker
type Option func(*Walker)

func WithLogger(log *logger.Logger) Option {
	return func(w *Walker) {
		w.log = log
	}
}

// New resolves the kernel root table address once and returns a walker bound to mem.
func New(mem physical.PhysicalReader, kernel physical.KernelResolver, options ...Option) (*Walker, error) {
	info, err := kernel.KernelInfo()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", physical.ErrMetadataUnavailable, err)
	}
	if info.DTB == 0 {
		return nil, fmt.Errorf("%w: kernel DTB is zero", physical.ErrMetadataUnavailable)
	}

	w := &Walker{
		mem: mem,
		dtb: info.DTB,
		log: logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "page-walker")),
	}
	for _, opt := range options {
		opt(w)
	}
	return w, nil
}

// DTB returns the root table address the walker starts from
func (w *Walker) DTB() physical.PhysicalAddress {
	return w.dtb
}

// Stats returns the counters of the last Scan
func (w *Walker) Stats() Stats {
	return w.stats
}

// Scan returns every physical range mapped by a present leaf, deduplicated and sorted by
// address. Only a failure to read the root table is an error; unreadable lower tables are
// skipped.
func (w *Walker) Scan() ([]physical.Range, error) {
	w.stats = Stats{}

	root, err := ReadTable(w.mem, w.dtb)
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %w", physical.ErrPageMapUnreadable, w.dtb.ToString(), err)
	}
	w.stats.TablesRead++

	pageset := physical.NewRangeSet()
	w.walk(root, LevelPML4, pageset)

	pages := pageset.Sorted()
	w.log.Debugln(fmt.Sprintf("walked %d tables (%d skipped), %d 4K / %d 2M / %d 1G leaves, %d duplicates",
		w.stats.TablesRead, w.stats.TablesSkipped, w.stats.Pages4K, w.stats.Pages2M, w.stats.Pages1G, w.stats.Duplicates))
	return pages, nil
}

func (w *Walker) walk(table *Table, level Level, pageset *physical.RangeSet) {
	for _, entry := range table {
		if !entry.Usable(level) {
			continue
		}

		address := entry.Address(level)
		if entry.IsLeaf(level) {
			w.emit(address, entry.LeafSize(level), pageset)
			continue
		}

		next, err := ReadTable(w.mem, address)
		if err != nil {
			w.stats.TablesSkipped++
			continue
		}
		w.stats.TablesRead++
		w.walk(next, level.Next(), pageset)
	}
}

func (w *Walker) emit(address physical.PhysicalAddress, size physical.PhysicalSize, pageset *physical.RangeSet) {
	r, err := physical.NewRange(address, size)
	if err != nil {
		// level masks keep leaves aligned below 2^52
		w.log.Debugln("dropping leaf", address.ToString(), err)
		return
	}
	if !pageset.Insert(r) {
		w.stats.Duplicates++
		return
	}
	switch size {
	case physical.PageSize4K:
		w.stats.Pages4K++
	case physical.PageSize2M:
		w.stats.Pages2M++
	case physical.PageSize1G:
		w.stats.Pages1G++
	}
}
