package physical

// PhysicalReader reads raw bytes from guest physical memory
type PhysicalReader interface {
	// ReadPhysical reads exactly size bytes starting at addr
	ReadPhysical(addr PhysicalAddress, size PhysicalSize) ([]byte, error)
}

// PhysicalWriter writes raw bytes to guest physical memory
type PhysicalWriter interface {
	// WritePhysical writes data starting at addr
	WritePhysical(addr PhysicalAddress, data []byte) error
}

// PhysicalMemory combines read and write access
type PhysicalMemory interface {
	PhysicalReader
	PhysicalWriter
}

// Connector is a handle to the physical memory of one guest. Connectors are not safe for
// concurrent use; callers hand the handle from one component to the next.
type Connector interface {
	PhysicalMemory

	// Name returns a human readable description of the target
	Name() string

	// Architecture returns the guest CPU architecture if the connector knows it
	Architecture() Architecture

	// Close releases the connector
	Close() error
}
