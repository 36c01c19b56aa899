// Package physical provides the types and interfaces shared by everything that touches guest
// physical memory: addresses, ranges, the memory access contract and kernel metadata.
package physical

import "errors"

var (
	// ErrAddressNotMapped is returned when a guest physical address is not backed by any memory.
	ErrAddressNotMapped = errors.New("physical address not mapped")

	// ErrShortRead is returned when the underlying memory returned fewer bytes than requested.
	ErrShortRead = errors.New("short physical read")

	// ErrInvalidRange is returned when a range is misaligned, has an unsupported size or overflows.
	ErrInvalidRange = errors.New("invalid physical range")

	// ErrReadOnly is returned by connectors that were opened without write access.
	ErrReadOnly = errors.New("physical memory is read-only")

	// ErrConnectorClosed is returned when a connector is used after Close.
	ErrConnectorClosed = errors.New("connector closed")

	// ErrMetadataUnavailable is returned when the guest kernel metadata cannot be resolved.
	ErrMetadataUnavailable = errors.New("kernel metadata unavailable")

	// ErrPageMapUnreadable is returned when the root page table cannot be read.
	ErrPageMapUnreadable = errors.New("failed to read the system's page map")

	// ErrArchitectureMismatch is returned when the guest is not a 64-bit x86 guest.
	ErrArchitectureMismatch = errors.New("target architecture is not x86_64")
)
