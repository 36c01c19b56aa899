package physical

import "fmt"

// Architecture identifies the guest CPU architecture
type Architecture int

const (
	ArchUnknown Architecture = iota
	ArchX86
	ArchX86_64
)

func (a Architecture) String() string {
	switch a {
	case ArchX86:
		return "x86"
	case ArchX86_64:
		return "x86_64"
	}
	return "unknown"
}

// KernelVersion is the Windows kernel version triple
type KernelVersion struct {
	Major uint32
	Minor uint32
	Build uint32
}

func (v KernelVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// IsZero reports whether the version could not be determined
func (v KernelVersion) IsZero() bool {
	return v == KernelVersion{}
}

// KernelInfo is the guest kernel metadata needed to walk the kernel address space.
type KernelInfo struct {
	Arch        Architecture
	DTB         PhysicalAddress // physical address of the kernel PML4
	KernelEntry uint64          // virtual address of the kernel entry point, if known
	Version     KernelVersion
}

// Validate checks that the guest is a 64-bit x86 guest with a usable root table.
func (k KernelInfo) Validate() error {
	if k.Arch != ArchX86_64 {
		return fmt.Errorf("%w (found %s)", ErrArchitectureMismatch, k.Arch)
	}
	if k.DTB == 0 {
		return fmt.Errorf("%w: zero DTB", ErrMetadataUnavailable)
	}
	return nil
}

// KernelResolver resolves guest kernel metadata
type KernelResolver interface {
	KernelInfo() (KernelInfo, error)
}

// StaticKernel is a KernelResolver returning fixed metadata
type StaticKernel KernelInfo

func (s StaticKernel) KernelInfo() (KernelInfo, error) {
	return KernelInfo(s), nil
}
