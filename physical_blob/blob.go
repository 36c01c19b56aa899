// Package physical_blob implements guest physical memory backed by Go byte slices.
package physical_blob

import (
	"encoding/binary"
	"fmt"
	"sync"

	"guestpatch/physical"
)

// Blob is a contiguous span of physical memory starting at a base address
type Blob struct {
	baseaddress physical.PhysicalAddress
	data        []byte
	mu          sync.Mutex
}

var _ physical.PhysicalMemory = (*Blob)(nil)

func NewBlob(baseAddress physical.PhysicalAddress, data []byte) *Blob {
	return &Blob{
		baseaddress: baseAddress,
		data:        data,
	}
}

func (b *Blob) Data() []byte {
	return b.data
}

func (b *Blob) Base() physical.PhysicalAddress {
	return b.baseaddress
}

func (b *Blob) bounds(addr physical.PhysicalAddress, size physical.PhysicalSize) (uint64, error) {
	if addr < b.baseaddress {
		return 0, fmt.Errorf("%w: %s below blob base %s", physical.ErrAddressNotMapped, addr.ToString(), b.baseaddress.ToString())
	}
	offset := uint64(addr - b.baseaddress)
	if offset > uint64(len(b.data)) || uint64(size) > uint64(len(b.data))-offset {
		return 0, fmt.Errorf("%w: %s+0x%x outside blob", physical.ErrAddressNotMapped, addr.ToString(), uint64(size))
	}
	return offset, nil
}

// ReadPhysical returns a copy of size bytes at addr
func (b *Blob) ReadPhysical(addr physical.PhysicalAddress, size physical.PhysicalSize) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset, err := b.bounds(addr, size)
	if err != nil {
		return nil, err
	}
	result := make([]byte, size)
	copy(result, b.data[offset:offset+uint64(size)])
	return result, nil
}

// WritePhysical overwrites len(data) bytes at addr
func (b *Blob) WritePhysical(addr physical.PhysicalAddress, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	offset, err := b.bounds(addr, physical.PhysicalSize(len(data)))
	if err != nil {
		return err
	}
	copy(b.data[offset:], data)
	return nil
}

// PutUINT64 stores a little-endian 64-bit integer at addr
func (b *Blob) PutUINT64(addr physical.PhysicalAddress, value uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	return b.WritePhysical(addr, buf[:])
}
