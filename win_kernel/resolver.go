// Package win_kernel locates the kernel of a 64-bit Windows guest in physical memory.
package win_kernel

import (
	"fmt"
	"sync"

	"guestpatch/physical"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Resolver finds the kernel DTB, version and architecture. The first successful result is
// cached for the lifetime of the resolver.
type Resolver struct {
	mem  physical.PhysicalReader
	arch physical.Architecture
	log  *logger.Logger

	info *physical.KernelInfo
	mu   sync.Mutex
}

var _ physical.KernelResolver = (*Resolver)(nil)

// NewResolver returns a resolver for mem. arch is the architecture reported by the
// connector, ArchUnknown if it has no opinion.
func NewResolver(mem physical.PhysicalReader, arch physical.Architecture) *Resolver {
	return &Resolver{
		mem:  mem,
		arch: arch,
		log:  logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "win-kernel")),
	}
}

func (r *Resolver) KernelInfo() (physical.KernelInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.info != nil {
		return *r.info, nil
	}

	stub, err := findLowStub(r.mem)
	if err != nil {
		return physical.KernelInfo{}, err
	}
	r.log.Debugln("low stub at", stub.base.ToString(), "dtb", stub.dtb.ToString(), "entry", fmt.Sprintf("0x%X", stub.kernelEntry))

	info := physical.KernelInfo{
		Arch:        r.arch,
		DTB:         stub.dtb,
		KernelEntry: stub.kernelEntry,
	}

	k, err := readKuser(r.mem, stub.dtb)
	if err != nil {
		r.log.Warn("Failed to read kernel version: ", err)
	} else {
		info.Version = k.version
		if info.Arch == physical.ArchUnknown {
			info.Arch = k.arch
		}
	}

	// the low stub only exists on x64 kernels
	if info.Arch == physical.ArchUnknown {
		info.Arch = physical.ArchX86_64
	}

	r.log.Infoln("kernel", info.Version.String(), info.Arch.String(), "dtb", info.DTB.ToString())
	r.info = &info
	return info, nil
}
