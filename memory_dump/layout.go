package memory_dump

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"guestpatch/physical"

	"gopkg.in/yaml.v3"
)

// ErrInvalidLayout is returned when the run layout of an image is inconsistent.
var ErrInvalidLayout = errors.New("invalid memory image layout")

// Run maps a contiguous span of guest physical memory to a file offset
type Run struct {
	Address physical.PhysicalAddress `yaml:"address"`
	Size    physical.PhysicalSize    `yaml:"size"`
	Offset  uint64                   `yaml:"offset"`
}

func (r Run) End() physical.PhysicalAddress {
	return r.Address + physical.PhysicalAddress(r.Size)
}

// Layout is the content of the <image>.yaml sidecar, e.g.
//
//	arch: x86_64
//	runs:
//	  - {address: 0x1000, size: 0x9e000, offset: 0x0}
//	  - {address: 0x100000, size: 0xbfef0000, offset: 0x9e000}
type Layout struct {
	Arch string `yaml:"arch"`
	Runs []Run  `yaml:"runs"`
}

// LayoutPath returns the sidecar path for an image
func LayoutPath(image string) string {
	return image + ".yaml"
}

// ReadLayout loads a sidecar. A missing file is reported with an error matching os.ErrNotExist.
func ReadLayout(path string) (Layout, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Layout{}, err
	}

	var layout Layout
	if err := yaml.Unmarshal(raw, &layout); err != nil {
		return Layout{}, fmt.Errorf("%w: %s: %w", ErrInvalidLayout, path, err)
	}
	return layout, nil
}

// WriteLayout stores a sidecar next to an image
func WriteLayout(path string, layout Layout) error {
	raw, err := yaml.Marshal(layout)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

// Architecture decodes the arch field
func (l Layout) Architecture() (physical.Architecture, error) {
	switch strings.ToLower(l.Arch) {
	case "":
		return physical.ArchUnknown, nil
	case "x86_64", "amd64", "x64":
		return physical.ArchX86_64, nil
	case "x86", "i386", "i686":
		return physical.ArchX86, nil
	}
	return physical.ArchUnknown, fmt.Errorf("%w: unknown arch %q", ErrInvalidLayout, l.Arch)
}

// validate sorts the runs and checks that they neither overlap nor extend past the file.
func (l *Layout) validate(fileSize uint64) error {
	sort.Slice(l.Runs, func(i, j int) bool {
		return l.Runs[i].Address < l.Runs[j].Address
	})

	for i, r := range l.Runs {
		if r.Size == 0 {
			return fmt.Errorf("%w: empty run at %s", ErrInvalidLayout, r.Address.ToString())
		}
		if r.End() < r.Address || r.Offset+uint64(r.Size) < r.Offset {
			return fmt.Errorf("%w: run at %s overflows", ErrInvalidLayout, r.Address.ToString())
		}
		if r.Offset+uint64(r.Size) > fileSize {
			return fmt.Errorf("%w: run at %s ends past the end of the file", ErrInvalidLayout, r.Address.ToString())
		}
		if i > 0 && l.Runs[i-1].End() > r.Address {
			return fmt.Errorf("%w: runs at %s and %s overlap", ErrInvalidLayout, l.Runs[i-1].Address.ToString(), r.Address.ToString())
		}
	}
	return nil
}
