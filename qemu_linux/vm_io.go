//go:build linux

package qemu_linux

import (
	"fmt"

	"guestpatch/physical"

	"golang.org/x/sys/unix"
)

// processVMReadv fills buf from remoteAddr in the address space of pid. The kernel may
// transfer less than requested, so the call is repeated until buf is full.
func processVMReadv(pid int, buf []byte, remoteAddr uint64) error {
	for done := 0; done < len(buf); {
		local := []unix.Iovec{{Base: &buf[done]}}
		local[0].SetLen(len(buf) - done)
		remote := []unix.RemoteIovec{{Base: uintptr(remoteAddr) + uintptr(done), Len: len(buf) - done}}

		n, err := unix.ProcessVMReadv(pid, local, remote, 0)
		if err != nil {
			return fmt.Errorf("process_vm_readv failed at 0x%x: %w", remoteAddr+uint64(done), err)
		}
		if n == 0 {
			return fmt.Errorf("%w: process_vm_readv read %d of %d bytes", physical.ErrShortRead, done, len(buf))
		}
		done += n
	}
	return nil
}

// processVMWritev writes data to remoteAddr in the address space of pid, repeating partial
// transfers.
func processVMWritev(pid int, data []byte, remoteAddr uint64) error {
	for done := 0; done < len(data); {
		local := []unix.Iovec{{Base: &data[done]}}
		local[0].SetLen(len(data) - done)
		remote := []unix.RemoteIovec{{Base: uintptr(remoteAddr) + uintptr(done), Len: len(data) - done}}

		n, err := unix.ProcessVMWritev(pid, local, remote, 0)
		if err != nil {
			return fmt.Errorf("process_vm_writev failed at 0x%x: %w", remoteAddr+uint64(done), err)
		}
		if n == 0 {
			return fmt.Errorf("process_vm_writev wrote %d of %d bytes", done, len(data))
		}
		done += n
	}
	return nil
}
