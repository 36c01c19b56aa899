package hexdump

import (
	"strings"
	"testing"

	"github.com/Moonlight-Companies/gologger/coloransi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain() Options {
	options := DefaultOptions()
	options.Color = false
	return options
}

func TestDump_FullLine(t *testing.T) {
	data := []byte("0123456789ABCDEF")
	options := plain()
	options.Base = 0x1000

	want := "0x0000000000001000  30 31 32 33 34 35 36 37 | 38 39 41 42 43 44 45 46  |0123456789ABCDEF|\n"
	assert.Equal(t, want, Dump(data, options))
}

func TestDump_ShortLinesStayAligned(t *testing.T) {
	data := make([]byte, 16+16+3)
	data[16] = 0x7F
	lines := strings.Split(strings.TrimSuffix(Dump(data, plain()), "\n"), "\n")
	require.Len(t, lines, 3)

	column := strings.Index(lines[0], "  |") + 2
	for _, n := range []int{1, 5, 8, 9, 15} {
		short := strings.Split(Dump(make([]byte, n), plain()), "\n")[0]
		assert.Equal(t, column, strings.Index(short, "  |")+2, "len=%d", n)
	}

	assert.True(t, strings.HasPrefix(lines[1], "0x0000000000000010  7f 00"))
	assert.True(t, strings.HasSuffix(lines[2], "|...|"))
}

func TestWindow_Highlight(t *testing.T) {
	data := []byte{0x11, 0x22, 0xDE, 0xAD, 0x33}
	out := Window(data, 0x2000, 0x2002, 2)

	assert.Contains(t, out, "0x0000000000002000")
	assert.Equal(t, 1, strings.Count(out, "\n"))
	assert.Contains(t, out, coloransi.Color(coloransi.Yellow, coloransi.Black, "de"))
	assert.Contains(t, out, coloransi.Color(coloransi.Yellow, coloransi.Black, "ad"))
	assert.NotContains(t, out, coloransi.Color(coloransi.Yellow, coloransi.Black, "22"))
}

func TestHighlighted(t *testing.T) {
	options := plain()
	options.HighlightOffset = 4
	options.HighlightLen = 2
	assert.False(t, highlighted(options, 3))
	assert.True(t, highlighted(options, 4))
	assert.True(t, highlighted(options, 5))
	assert.False(t, highlighted(options, 6))

	options.HighlightLen = 0
	assert.False(t, highlighted(options, 4))
}
