package win_kernel

import (
	"fmt"

	"guestpatch/physical"
)

// The x64 processor start block ("low stub") that Windows leaves in the first megabyte of
// physical memory. It holds the kernel CR3 used to resume processors.
const (
	lowStubLimit = physical.PhysicalAddress(0x100000)
	lowStubSize  = physical.PhysicalSize(0xA8)

	lowStubJmpMask  = uint64(0xFFFFFFFFFFFF00FF)
	lowStubJmpValue = uint64(0x00000001000600E9)

	lowStubEntryOffset = 0x70
	lowStubEntryMask   = uint64(0xFFFFF80000000003)
	lowStubEntryValue  = uint64(0xFFFFF80000000000)

	lowStubCR3Offset = 0xA0
	lowStubCR3Mask   = uint64(0xFFFFFF0000000FFF)
)

type lowStub struct {
	base        physical.PhysicalAddress
	dtb         physical.PhysicalAddress
	kernelEntry uint64
}

// findLowStub checks the start of every page below 1 MiB. Pages that cannot be read are
// skipped.
func findLowStub(mem physical.PhysicalReader) (lowStub, error) {
	for base := physical.PhysicalAddress(0); base < lowStubLimit; base += physical.PhysicalAddress(physical.PageSize4K) {
		data, err := physical.ReadExact(mem, base, lowStubSize)
		if err != nil {
			continue
		}
		if stub, ok := decodeLowStub(base, data); ok {
			return stub, nil
		}
	}
	return lowStub{}, fmt.Errorf("%w: no processor start block below %s", physical.ErrMetadataUnavailable, lowStubLimit.ToString())
}

func decodeLowStub(base physical.PhysicalAddress, data []byte) (lowStub, bool) {
	q, err := physical.DecodeUINT64Array(data, int(lowStubSize/8))
	if err != nil {
		return lowStub{}, false
	}

	jmp := q[0]
	entry := q[lowStubEntryOffset/8]
	cr3 := q[lowStubCR3Offset/8]

	if jmp&lowStubJmpMask != lowStubJmpValue {
		return lowStub{}, false
	}
	if entry&lowStubEntryMask != lowStubEntryValue {
		return lowStub{}, false
	}
	if cr3&lowStubCR3Mask != 0 || cr3 == 0 {
		return lowStub{}, false
	}

	return lowStub{base: base, dtb: physical.PhysicalAddress(cr3), kernelEntry: entry}, true
}
