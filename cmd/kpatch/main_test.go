package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"guestpatch/output"
	"guestpatch/page_walker"
	"guestpatch/pattern"
	"guestpatch/physical"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stubAt  = 0x1000
	pml4At  = 0x100000
	pdptAt  = 0x101000
	pdAt    = 0x102000
	ptAt    = 0x103000
	kuserAt = 0x200000
	codeAt  = 0x201000
)

// guestImage builds a 4 MiB image holding a low stub, one page-table chain mapping
// KUSER_SHARED_DATA and a code page containing DE AD BE EF at +0x10.
func guestImage(t *testing.T, mapPages bool) string {
	t.Helper()
	img := make([]byte, 0x400000)
	put := func(at int, v uint64) { binary.LittleEndian.PutUint64(img[at:], v) }

	put(stubAt, 0x00000001000600E9)
	put(stubAt+0x70, 0xFFFFF80012345000)
	put(stubAt+0xA0, pml4At)

	if mapPages {
		va := uint64(0xFFFFF78000000000)
		put(pml4At+page_walker.LevelPML4.Index(va)*8, pdptAt|3)
		put(pdptAt+page_walker.LevelPDPT.Index(va)*8, pdAt|3)
		put(pdAt+page_walker.LevelPD.Index(va)*8, ptAt|3)
		put(ptAt+page_walker.LevelPT.Index(va)*8, kuserAt|3)
		put(ptAt+(page_walker.LevelPT.Index(va)+1)*8, codeAt|3)

		binary.LittleEndian.PutUint32(img[kuserAt+0x260:], 22631)
		binary.LittleEndian.PutUint16(img[kuserAt+0x26A:], 9)
		binary.LittleEndian.PutUint32(img[kuserAt+0x26C:], 10)
		binary.LittleEndian.PutUint32(img[kuserAt+0x270:], 0)

		copy(img[codeAt+0x10:], []byte{0xDE, 0xAD, 0xBE, 0xEF})
	}

	path := filepath.Join(t.TempDir(), "win.raw")
	require.NoError(t, os.WriteFile(path, img, 0644))
	return path
}

func TestRun_ScanImage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	a := args{Pattern: "DE AD ?? EF", Threads: 1, RawOutput: true, Image: guestImage(t, true)}

	require.NoError(t, run(a, output.NewPlain(&stdout, &stderr)))
	assert.Equal(t, "0x201010\n", stdout.String())
	assert.Contains(t, stderr.String(), "winver: 10.0.22631")
	assert.Contains(t, stderr.String(), "found 2 pages for a total span of 8.0 KiB")
}

func TestRun_PatchImage(t *testing.T) {
	path := guestImage(t, true)
	var stdout, stderr bytes.Buffer
	a := args{Pattern: "deadbeef", Patch: "AABB", Threads: 1, RawOutput: true, Image: path}

	require.NoError(t, run(a, output.NewPlain(&stdout, &stderr)))
	assert.Equal(t, "0x201010 OK\n", stdout.String())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0xAA, 0xBB, 0xBE, 0xEF, 0x00}, raw[codeAt+0xF:codeAt+0x15])

	// patched bytes no longer match
	stdout.Reset()
	require.NoError(t, run(a, output.NewPlain(&stdout, &stderr)))
	assert.Empty(t, stdout.String())
}

func TestRun_EmptyPageSet(t *testing.T) {
	var stdout, stderr bytes.Buffer
	a := args{Pattern: "90", Threads: 1, RawOutput: true, Image: guestImage(t, false)}

	err := run(a, output.NewPlain(&stdout, &stderr))
	assert.ErrorIs(t, err, errEmptyPageSet)
	assert.Empty(t, stdout.String())
}

func TestRun_ConfigurationErrorsComeFirst(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.raw")
	var stdout, stderr bytes.Buffer

	err := run(args{Pattern: "", Image: missing}, output.NewPlain(&stdout, &stderr))
	assert.ErrorIs(t, err, pattern.ErrEmptyPattern)

	err = run(args{Pattern: "90", Patch: "ABC", Threads: 1, Image: missing}, output.NewPlain(&stdout, &stderr))
	assert.ErrorIs(t, err, pattern.ErrInvalidPatch)

	err = run(args{Pattern: "90", Threads: 1 << 20, Image: missing}, output.NewPlain(&stdout, &stderr))
	assert.ErrorIs(t, err, pattern.ErrTooManyWorkers)

	err = run(args{Pattern: "90", Threads: 1, Image: missing}, output.NewPlain(&stdout, &stderr))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRun_NoKernel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blank.raw")
	require.NoError(t, os.WriteFile(path, make([]byte, 0x200000), 0644))

	var stdout, stderr bytes.Buffer
	err := run(args{Pattern: "90", Threads: 1, Image: path}, output.NewPlain(&stdout, &stderr))
	assert.ErrorIs(t, err, physical.ErrMetadataUnavailable)
}
