// Package memory_dump serves guest physical memory from a raw memory image file.
package memory_dump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"guestpatch/physical"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/Moonlight-Companies/gologger/logger"
)

// Image is a physical memory image. Without a layout sidecar the whole file is guest physical
// memory starting at address 0.
type Image struct {
	path     string
	file     *os.File
	runs     []Run
	arch     physical.Architecture
	writable bool
	log      *logger.Logger
	mu       sync.Mutex
}

var _ physical.Connector = (*Image)(nil)

func Open(path string, writable bool) (*Image, error) {
	flag := os.O_RDONLY
	if writable {
		flag = os.O_RDWR
	}
	file, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory image: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, err
	}
	size := uint64(stat.Size())

	layout, err := ReadLayout(LayoutPath(path))
	switch {
	case errors.Is(err, os.ErrNotExist):
		layout = Layout{Runs: []Run{{Address: 0, Size: physical.PhysicalSize(size), Offset: 0}}}
		if size == 0 {
			layout.Runs = nil
		}
	case err != nil:
		file.Close()
		return nil, err
	}

	if err := layout.validate(size); err != nil {
		file.Close()
		return nil, err
	}
	arch, err := layout.Architecture()
	if err != nil {
		file.Close()
		return nil, err
	}

	img := &Image{
		path:     path,
		file:     file,
		runs:     layout.Runs,
		arch:     arch,
		writable: writable,
		log:      logger.NewLogger(coloransi.Color(coloransi.ColorPurple, coloransi.ColorOrange, "memory-image")),
	}
	img.log.Infoln("Opened", path, "with", len(img.runs), "runs,", physical.PhysicalSize(size).ToString())
	return img, nil
}

func (img *Image) Name() string {
	return filepath.Base(img.path)
}

func (img *Image) Architecture() physical.Architecture {
	return img.arch
}

// Runs returns a copy of the run layout
func (img *Image) Runs() []Run {
	return append([]Run(nil), img.runs...)
}

func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.file == nil {
		return nil
	}
	err := img.file.Close()
	img.file = nil
	return err
}

// findRun returns the run containing addr
func (img *Image) findRun(addr physical.PhysicalAddress) (Run, bool) {
	i := sort.Search(len(img.runs), func(i int) bool {
		return img.runs[i].End() > addr
	})
	if i < len(img.runs) && img.runs[i].Address <= addr {
		return img.runs[i], true
	}
	return Run{}, false
}

// each calls fn for every run-contained piece of [addr, addr+size).
func (img *Image) each(addr physical.PhysicalAddress, size uint64, fn func(done uint64, fileOffset int64, n uint64) error) error {
	if uint64(addr)+size < uint64(addr) {
		return fmt.Errorf("%w: %s+0x%x overflows", physical.ErrAddressNotMapped, addr.ToString(), size)
	}
	for done := uint64(0); done < size; {
		cur := addr + physical.PhysicalAddress(done)
		run, ok := img.findRun(cur)
		if !ok {
			return fmt.Errorf("%w: %s", physical.ErrAddressNotMapped, cur.ToString())
		}
		n := min(size-done, uint64(run.End()-cur))
		if err := fn(done, int64(run.Offset+uint64(cur-run.Address)), n); err != nil {
			return err
		}
		done += n
	}
	return nil
}

func (img *Image) ReadPhysical(addr physical.PhysicalAddress, size physical.PhysicalSize) ([]byte, error) {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.file == nil {
		return nil, physical.ErrConnectorClosed
	}

	buf := make([]byte, size)
	err := img.each(addr, uint64(size), func(done uint64, off int64, n uint64) error {
		read, err := img.file.ReadAt(buf[done:done+n], off)
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %d of %d bytes at %s", physical.ErrShortRead, read, n, addr.ToString())
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (img *Image) WritePhysical(addr physical.PhysicalAddress, data []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if img.file == nil {
		return physical.ErrConnectorClosed
	}
	if !img.writable {
		return physical.ErrReadOnly
	}

	// check the whole span first so a write is never applied in part
	if err := img.each(addr, uint64(len(data)), func(uint64, int64, uint64) error { return nil }); err != nil {
		return err
	}
	return img.each(addr, uint64(len(data)), func(done uint64, off int64, n uint64) error {
		_, err := img.file.WriteAt(data[done:done+n], off)
		return err
	})
}
