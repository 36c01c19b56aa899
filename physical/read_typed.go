package physical

import (
	"encoding/binary"
	"fmt"
)

// ReadExact performs exactly one read of size bytes at addr. It never caches or retries; a
// read returning fewer bytes than requested fails with ErrShortRead.
func ReadExact(mem PhysicalReader, addr PhysicalAddress, size PhysicalSize) ([]byte, error) {
	data, err := mem.ReadPhysical(addr, size)
	if err != nil {
		return nil, err
	}
	if PhysicalSize(len(data)) < size {
		return nil, fmt.Errorf("%w: %d of %d bytes at %s", ErrShortRead, len(data), size, addr.ToString())
	}
	return data[:size], nil
}

// ReadUINT16 reads a little-endian unsigned 16-bit integer
func ReadUINT16(mem PhysicalReader, addr PhysicalAddress) (uint16, error) {
	data, err := ReadExact(mem, addr, 2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(data), nil
}

// ReadUINT32 reads a little-endian unsigned 32-bit integer
func ReadUINT32(mem PhysicalReader, addr PhysicalAddress) (uint32, error) {
	data, err := ReadExact(mem, addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

// ReadUINT64 reads a little-endian unsigned 64-bit integer
func ReadUINT64(mem PhysicalReader, addr PhysicalAddress) (uint64, error) {
	data, err := ReadExact(mem, addr, 8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(data), nil
}

// ReadUINT64Array reads count consecutive little-endian 64-bit integers with a single read.
func ReadUINT64Array(mem PhysicalReader, addr PhysicalAddress, count int) ([]uint64, error) {
	if count < 0 {
		return nil, fmt.Errorf("ReadUINT64Array: negative count %d", count)
	}
	data, err := ReadExact(mem, addr, PhysicalSize(count)*8)
	if err != nil {
		return nil, err
	}
	return DecodeUINT64Array(data, count)
}

// DecodeUINT64Array decodes count little-endian 64-bit integers from data, checking bounds
// before every field.
func DecodeUINT64Array(data []byte, count int) ([]uint64, error) {
	if count < 0 || len(data) < count*8 {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrShortRead, count*8, len(data))
	}
	out := make([]uint64, count)
	for i := range out {
		offset := i * 8
		out[i] = binary.LittleEndian.Uint64(data[offset : offset+8])
	}
	return out, nil
}
