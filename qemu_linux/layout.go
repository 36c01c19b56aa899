package qemu_linux

import (
	"fmt"
	"sort"

	"guestpatch/physical"
)

const (
	gib = uint64(1) << 30

	// RAM above the PCI hole is remapped to start at 4 GiB
	highMemoryBase = 4 * gib
)

// segment maps a span of guest physical memory into the QEMU address space
type segment struct {
	GPA  physical.PhysicalAddress
	HVA  uint64
	Size uint64
}

func (s segment) end() physical.PhysicalAddress {
	return s.GPA + physical.PhysicalAddress(s.Size)
}

// lowMemorySize returns how much RAM QEMU places below 4 GiB for a machine type.
func lowMemorySize(m machine, ram uint64) uint64 {
	switch m {
	case machineQ35:
		if ram >= 0xB0000000 {
			return 2 * gib
		}
	default:
		if ram >= 0xE0000000 {
			return 3 * gib
		}
	}
	return ram
}

// guestLayout splits the RAM mapping at hva into the low and high guest physical segments.
func guestLayout(m machine, hva, ram uint64) []segment {
	low := lowMemorySize(m, ram)
	segments := []segment{{GPA: 0, HVA: hva, Size: low}}
	if ram > low {
		segments = append(segments, segment{GPA: physical.PhysicalAddress(highMemoryBase), HVA: hva + low, Size: ram - low})
	}
	return segments
}

func findSegment(segments []segment, gpa physical.PhysicalAddress) (segment, bool) {
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].end() > gpa
	})
	if i < len(segments) && segments[i].GPA <= gpa {
		return segments[i], true
	}
	return segment{}, false
}

// eachHVA calls fn for every segment-contained piece of [gpa, gpa+size).
func eachHVA(segments []segment, gpa physical.PhysicalAddress, size uint64, fn func(done, hva, n uint64) error) error {
	if uint64(gpa)+size < uint64(gpa) {
		return fmt.Errorf("%w: %s+0x%x overflows", physical.ErrAddressNotMapped, gpa.ToString(), size)
	}
	for done := uint64(0); done < size; {
		cur := gpa + physical.PhysicalAddress(done)
		seg, ok := findSegment(segments, cur)
		if !ok {
			return fmt.Errorf("%w: %s", physical.ErrAddressNotMapped, cur.ToString())
		}
		n := min(size-done, uint64(seg.end()-cur))
		if err := fn(done, seg.HVA+uint64(cur-seg.GPA), n); err != nil {
			return err
		}
		done += n
	}
	return nil
}
