package qemu_linux

import (
	"path/filepath"
	"strings"

	"guestpatch/physical"
)

const qemuPrefix = "qemu-system-"

// isQemu reports whether an executable name belongs to a QEMU system emulator
func isQemu(name string) bool {
	return strings.HasPrefix(filepath.Base(name), qemuPrefix)
}

// archFromExe maps qemu-system-<target> to the guest architecture
func archFromExe(name string) physical.Architecture {
	switch strings.TrimPrefix(filepath.Base(name), qemuPrefix) {
	case "x86_64":
		return physical.ArchX86_64
	case "i386":
		return physical.ArchX86
	}
	return physical.ArchUnknown
}

// optionValue returns the value of -opt (or --opt) in args, supporting both "-opt value" and
// "-opt=value".
func optionValue(args []string, names ...string) (string, bool) {
	for i, arg := range args {
		for _, name := range names {
			for _, prefix := range []string{"-", "--"} {
				flag := prefix + name
				if arg == flag && i+1 < len(args) {
					return args[i+1], true
				}
				if v, ok := strings.CutPrefix(arg, flag+"="); ok {
					return v, true
				}
			}
		}
	}
	return "", false
}

// guestName returns the VM name given with -name, which is either a plain name or a list
// of properties like "guest=win10,debug-threads=on".
func guestName(args []string) string {
	value, ok := optionValue(args, "name")
	if !ok {
		return ""
	}

	parts := strings.Split(value, ",")
	for _, part := range parts {
		if v, ok := strings.CutPrefix(part, "guest="); ok {
			return v
		}
	}
	if strings.Contains(parts[0], "=") {
		return ""
	}
	return parts[0]
}

// machine is the emulated chipset family; it decides where RAM sits below 4 GiB.
type machine int

const (
	machineI440FX machine = iota
	machineQ35
)

func (m machine) String() string {
	if m == machineQ35 {
		return "q35"
	}
	return "i440fx"
}

// machineType reads -machine / -M. QEMU defaults to i440fx.
func machineType(args []string) machine {
	value, ok := optionValue(args, "machine", "M")
	if !ok {
		return machineI440FX
	}

	typ := strings.Split(value, ",")[0]
	for _, part := range strings.Split(value, ",") {
		if v, ok := strings.CutPrefix(part, "type="); ok {
			typ = v
		}
	}
	if strings.Contains(typ, "q35") {
		return machineQ35
	}
	return machineI440FX
}
