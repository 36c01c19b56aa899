package physical_blob

import (
	"encoding/binary"
	"fmt"
	"sync"

	"guestpatch/physical"
)

const frameSize = uint64(physical.PageSize4K)

// Sparse is physical memory made of individually populated 4 KiB frames. Reads touching a frame
// that was never populated fail, as do reads and writes starting at an address passed to
// FailRead or FailWrite.
type Sparse struct {
	frames    map[uint64][]byte
	failRead  map[uint64]bool
	failWrite map[uint64]bool
	reads     []physical.PhysicalAddress
	writes    []physical.PhysicalAddress
	mu        sync.Mutex
}

var _ physical.PhysicalMemory = (*Sparse)(nil)

func NewSparse() *Sparse {
	return &Sparse{
		frames:    make(map[uint64][]byte),
		failRead:  make(map[uint64]bool),
		failWrite: make(map[uint64]bool),
	}
}

// SetFrame populates the frame containing addr with data (zero padded to 4 KiB).
func (s *Sparse) SetFrame(addr physical.PhysicalAddress, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := make([]byte, frameSize)
	copy(frame, data)
	s.frames[uint64(addr)&^(frameSize-1)] = frame
}

// Map populates every frame in [addr, addr+size) with zeros.
func (s *Sparse) Map(addr physical.PhysicalAddress, size physical.PhysicalSize) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := uint64(addr) &^ (frameSize - 1)
	for f := start; f < uint64(addr)+uint64(size); f += frameSize {
		if _, ok := s.frames[f]; !ok {
			s.frames[f] = make([]byte, frameSize)
		}
	}
}

// FailRead makes every read starting at addr fail.
func (s *Sparse) FailRead(addr physical.PhysicalAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRead[uint64(addr)] = true
}

// FailWrite makes every write starting at addr fail.
func (s *Sparse) FailWrite(addr physical.PhysicalAddress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrite[uint64(addr)] = true
}

// Reads returns the start address of every read attempted so far
func (s *Sparse) Reads() []physical.PhysicalAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]physical.PhysicalAddress(nil), s.reads...)
}

// Writes returns the start address of every write attempted so far
func (s *Sparse) Writes() []physical.PhysicalAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]physical.PhysicalAddress(nil), s.writes...)
}

// PutUINT64 stores a little-endian 64-bit integer, populating the frame if needed.
func (s *Sparse) PutUINT64(addr physical.PhysicalAddress, value uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], value)
	s.Write(addr, buf[:])
}

// Write stores data at addr, populating frames as needed.
func (s *Sparse) Write(addr physical.PhysicalAddress, data []byte) {
	s.Map(addr, physical.PhysicalSize(len(data)))
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyFrames(uint64(addr), data, true)
}

// copyFrames moves bytes between buf and the frames covering [addr, addr+len(buf)).
// The caller must hold the lock and have checked that every frame exists.
func (s *Sparse) copyFrames(addr uint64, buf []byte, toFrames bool) {
	for done := 0; done < len(buf); {
		cur := addr + uint64(done)
		frame := s.frames[cur&^(frameSize-1)]
		off := cur & (frameSize - 1)
		var n int
		if toFrames {
			n = copy(frame[off:], buf[done:])
		} else {
			n = copy(buf[done:], frame[off:])
		}
		done += n
	}
}

func (s *Sparse) mapped(addr uint64, size uint64) error {
	if size == 0 {
		return nil
	}
	if addr+size < addr {
		return fmt.Errorf("%w: 0x%x+0x%x overflows", physical.ErrAddressNotMapped, addr, size)
	}
	for f := addr &^ (frameSize - 1); f < addr+size; f += frameSize {
		if _, ok := s.frames[f]; !ok {
			return fmt.Errorf("%w: frame 0x%x", physical.ErrAddressNotMapped, f)
		}
	}
	return nil
}

func (s *Sparse) ReadPhysical(addr physical.PhysicalAddress, size physical.PhysicalSize) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reads = append(s.reads, addr)
	if s.failRead[uint64(addr)] {
		return nil, fmt.Errorf("injected read failure at %s", addr.ToString())
	}
	if err := s.mapped(uint64(addr), uint64(size)); err != nil {
		return nil, err
	}
	out := make([]byte, size)
	s.copyFrames(uint64(addr), out, false)
	return out, nil
}

func (s *Sparse) WritePhysical(addr physical.PhysicalAddress, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes = append(s.writes, addr)
	if s.failWrite[uint64(addr)] {
		return fmt.Errorf("injected write failure at %s", addr.ToString())
	}
	if err := s.mapped(uint64(addr), uint64(len(data))); err != nil {
		return err
	}
	s.copyFrames(uint64(addr), data, true)
	return nil
}
