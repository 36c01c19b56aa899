//go:build linux

// Package qemu_linux reads and writes the physical memory of a QEMU/KVM guest through the
// address space of its QEMU process.
package qemu_linux

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"guestpatch/physical"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/shirou/gopsutil/v3/process"
)

// ErrTargetNotFound is returned when no matching QEMU process is running.
var ErrTargetNotFound = errors.New("qemu connector creation failed, is the target running?")

// Connector is a live QEMU guest
type Connector struct {
	pid      int
	name     string
	arch     physical.Architecture
	machine  machine
	segments []segment
	log      *logger.Logger
	mu       sync.Mutex
}

var _ physical.Connector = (*Connector)(nil)

// Open attaches to the first QEMU process, or to the one started with -name target.
func Open(target string) (*Connector, error) {
	proc, args, err := findQemu(target)
	if err != nil {
		return nil, err
	}

	// comm is truncated to 15 bytes, the executable path is not
	exe, err := proc.Exe()
	if err != nil {
		if exe, err = proc.Name(); err != nil {
			return nil, err
		}
	}

	c := &Connector{
		pid:     int(proc.Pid),
		name:    guestName(args),
		arch:    archFromExe(exe),
		machine: machineType(args),
		log:     logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, fmt.Sprintf("qemu-%d", proc.Pid))),
	}
	if c.name == "" {
		c.name = fmt.Sprintf("%s[%d]", filepath.Base(exe), proc.Pid)
	}

	if err := c.mapGuest(); err != nil {
		return nil, err
	}
	c.log.Infoln("Attached to", c.name, c.machine.String(), c.arch.String())
	return c, nil
}

// findQemu enumerates processes and returns the first matching QEMU instance and its arguments.
func findQemu(target string) (*process.Process, []string, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, nil, fmt.Errorf("listing processes: %w", err)
	}

	self := int32(os.Getpid())
	for _, proc := range procs {
		if proc.Pid == self {
			continue
		}
		name, err := proc.Name()
		if err != nil || !isQemu(name) {
			continue
		}
		args, err := proc.CmdlineSlice()
		if err != nil {
			continue
		}
		if target != "" && guestName(args) != target {
			continue
		}
		return proc, args, nil
	}

	if target != "" {
		return nil, nil, fmt.Errorf("%w (no guest named %q)", ErrTargetNotFound, target)
	}
	return nil, nil, ErrTargetNotFound
}

func (c *Connector) mapGuest() error {
	file, err := os.Open(fmt.Sprintf("/proc/%d/maps", c.pid))
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}
	defer file.Close()

	maps, err := parseMaps(file)
	if err != nil {
		return fmt.Errorf("failed to read memory map: %w", err)
	}
	ram, err := guestRAM(maps)
	if err != nil {
		return err
	}

	c.segments = guestLayout(c.machine, ram.Address, ram.Size)
	for _, s := range c.segments {
		c.log.Debugln("guest", s.GPA.ToString(), "->", fmt.Sprintf("0x%x", s.HVA), physical.PhysicalSize(s.Size).ToString())
	}
	return nil
}

func (c *Connector) Name() string {
	return c.name
}

func (c *Connector) Architecture() physical.Architecture {
	return c.arch
}

func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pid = 0
	c.segments = nil
	return nil
}

func (c *Connector) ReadPhysical(addr physical.PhysicalAddress, size physical.PhysicalSize) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pid == 0 {
		return nil, physical.ErrConnectorClosed
	}

	buf := make([]byte, size)
	err := eachHVA(c.segments, addr, uint64(size), func(done, hva, n uint64) error {
		return processVMReadv(c.pid, buf[done:done+n], hva)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (c *Connector) WritePhysical(addr physical.PhysicalAddress, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pid == 0 {
		return physical.ErrConnectorClosed
	}

	if err := eachHVA(c.segments, addr, uint64(len(data)), func(uint64, uint64, uint64) error { return nil }); err != nil {
		return err
	}
	return eachHVA(c.segments, addr, uint64(len(data)), func(done, hva, n uint64) error {
		return processVMWritev(c.pid, data[done:done+n], hva)
	})
}
