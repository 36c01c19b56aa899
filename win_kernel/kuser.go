package win_kernel

import (
	"encoding/binary"
	"fmt"

	"guestpatch/page_walker"
	"guestpatch/physical"
)

// KUSER_SHARED_DATA is mapped at the same kernel address on every 64-bit Windows.
const kuserSharedData = uint64(0xFFFFF78000000000)

const (
	kuserBuildNumber = 0x260 // NtBuildNumber, high bits flag checked builds
	kuserNativeArch  = 0x26A
	kuserMajor       = 0x26C
	kuserMinor       = 0x270
	kuserEnd         = 0x274
)

// PROCESSOR_ARCHITECTURE_*
const (
	processorArchIntel = 0
	processorArchAMD64 = 9
)

type kuser struct {
	version physical.KernelVersion
	arch    physical.Architecture
}

// virtToPhys resolves one kernel virtual address through the tables rooted at dtb.
func virtToPhys(mem physical.PhysicalReader, dtb physical.PhysicalAddress, va uint64) (physical.PhysicalAddress, error) {
	table := dtb
	for level := page_walker.LevelPML4; level <= page_walker.LevelPT; level = level.Next() {
		slot := table + physical.PhysicalAddress(level.Index(va)*8)
		raw, err := physical.ReadUINT64(mem, slot)
		if err != nil {
			return 0, fmt.Errorf("reading %s entry: %w", level, err)
		}

		entry := page_walker.Entry(raw)
		if !entry.Usable(level) {
			return 0, fmt.Errorf("%w: 0x%X not mapped at %s", physical.ErrAddressNotMapped, va, level)
		}
		if entry.IsLeaf(level) {
			offset := va & (uint64(entry.LeafSize(level)) - 1)
			return entry.Address(level) + physical.PhysicalAddress(offset), nil
		}
		table = entry.Address(level)
	}
	return 0, fmt.Errorf("%w: 0x%X", physical.ErrAddressNotMapped, va)
}

func readKuser(mem physical.PhysicalReader, dtb physical.PhysicalAddress) (kuser, error) {
	base, err := virtToPhys(mem, dtb, kuserSharedData)
	if err != nil {
		return kuser{}, err
	}

	data, err := physical.ReadExact(mem, base+kuserBuildNumber, kuserEnd-kuserBuildNumber)
	if err != nil {
		return kuser{}, err
	}
	field := func(offset int) []byte {
		return data[offset-kuserBuildNumber:]
	}

	k := kuser{
		version: physical.KernelVersion{
			Major: binary.LittleEndian.Uint32(field(kuserMajor)),
			Minor: binary.LittleEndian.Uint32(field(kuserMinor)),
			Build: binary.LittleEndian.Uint32(field(kuserBuildNumber)) & 0xFFFF,
		},
	}
	switch binary.LittleEndian.Uint16(field(kuserNativeArch)) {
	case processorArchAMD64:
		k.arch = physical.ArchX86_64
	case processorArchIntel:
		k.arch = physical.ArchX86
	}

	if k.version.Major == 0 {
		return kuser{}, fmt.Errorf("implausible kernel version %s", k.version)
	}
	return k, nil
}
