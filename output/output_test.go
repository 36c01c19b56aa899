package output

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"guestpatch/patcher"
	"guestpatch/physical"

	"github.com/stretchr/testify/assert"
)

func TestPlain_Results(t *testing.T) {
	var stdout, stderr bytes.Buffer
	p := NewPlain(&stdout, &stderr)

	p.Result(patcher.Result{Address: 0x1010})
	p.Result(patcher.Result{Address: 0xABC000, Attempted: true, Patched: true})
	p.Result(patcher.Result{Address: 0x2000, Attempted: true, Err: errors.New("denied")})

	assert.Equal(t, "0x1010\n0xABC000 OK\n0x2000 FAILED\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestPlain_StatusGoesToStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	p := NewPlain(&stdout, &stderr)

	p.Session("qemu-win10", physical.KernelInfo{Version: physical.KernelVersion{Major: 10, Minor: 0, Build: 19045}})
	p.Pages(3, physical.PageSize2M)
	p.Summary(patcher.Summary{RangesScanned: 3, Matches: 1})
	p.Fatal(errors.New("target memory page iteration returned nothing"))

	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "winver: 10.0.19045")
	assert.Contains(t, stderr.String(), "found 3 pages for a total span of 2.0 MiB")
	assert.True(t, strings.HasSuffix(stderr.String(), "error: target memory page iteration returned nothing\n"))
}

func TestPlain_UnknownVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	NewPlain(&stdout, &stderr).Session("image.raw", physical.KernelInfo{})
	assert.Contains(t, stderr.String(), "winver: unknown")
}

func TestDecorated_Results(t *testing.T) {
	var stdout, stderr bytes.Buffer
	d := NewDecorated(&stdout, &stderr)

	d.Result(patcher.Result{Address: 0x1010})
	d.Result(patcher.Result{Address: 0x1020, Attempted: true, Patched: true})
	d.Result(patcher.Result{Address: 0x1030, Attempted: true, Err: errors.New("denied")})

	lines := strings.Split(strings.TrimSuffix(stdout.String(), "\n"), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], " » "))
	assert.Contains(t, lines[0], "0x1010")
	assert.NotContains(t, lines[0], "›")
	assert.True(t, strings.HasSuffix(lines[1], " › ✅"))
	assert.True(t, strings.HasSuffix(lines[2], " › 🟥"))
}

func TestDecorated_ContextDump(t *testing.T) {
	var stdout, stderr bytes.Buffer
	d := NewDecorated(&stdout, &stderr)

	d.Result(patcher.Result{
		Address:     0x1002,
		MatchLen:    2,
		Context:     []byte{0x11, 0x22, 0xDE, 0xAD},
		ContextBase: 0x1000,
	})

	assert.Equal(t, 2, strings.Count(stdout.String(), "\n"))
	assert.Contains(t, stdout.String(), "0x0000000000001000")
}

func TestDecorated_FatalOnStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	NewDecorated(&stdout, &stderr).Fatal(errors.New("boom"))

	assert.Empty(t, stdout.String())
	assert.Equal(t, "error: boom\n", stderr.String())
}
