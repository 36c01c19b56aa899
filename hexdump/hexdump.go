// Package hexdump renders colored hex dumps of physical memory windows.
package hexdump

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/Moonlight-Companies/gologger/coloransi"
)

// Options controls the dump layout and colors
type Options struct {
	// BytesPerLine defines the number of bytes to display per line
	BytesPerLine int

	// ShowASCII determines whether to show the ASCII representation
	ShowASCII bool

	// Color disables all escape sequences when false
	Color bool

	// Base is the address printed for data[0]
	Base uint64

	// HighlightOffset and HighlightLen select the bytes drawn in the highlight colors,
	// relative to data[0]. A zero length highlights nothing.
	HighlightOffset int
	HighlightLen    int

	AddressColor      coloransi.ColorCode
	HexColor          coloransi.ColorCode
	ZeroColor         coloransi.ColorCode
	NonPrintableColor coloransi.ColorCode
	HighlightColor    coloransi.ColorCode
	HighlightBack     coloransi.ColorCode
}

// DefaultOptions returns the default hexdump options
func DefaultOptions() Options {
	return Options{
		BytesPerLine:      16,
		ShowASCII:         true,
		Color:             true,
		AddressColor:      coloransi.Cyan,
		HexColor:          coloransi.Green,
		ZeroColor:         coloransi.BrightBlack,
		NonPrintableColor: coloransi.BrightBlack,
		HighlightColor:    coloransi.Yellow,
		HighlightBack:     coloransi.Black,
	}
}

// Dump creates a hex dump of data
func Dump(data []byte, options Options) string {
	var buffer bytes.Buffer
	DumpToWriter(&buffer, data, options)
	return buffer.String()
}

// Window dumps a match window: base is the address of data[0] and the match of length n
// starts at match.
func Window(data []byte, base, match uint64, n int) string {
	options := DefaultOptions()
	options.Base = base
	options.HighlightOffset = int(match - base)
	options.HighlightLen = n
	return Dump(data, options)
}

// DumpToWriter writes a hex dump of data to writer
func DumpToWriter(writer io.Writer, data []byte, options Options) {
	if options.BytesPerLine <= 0 {
		options.BytesPerLine = 16
	}

	for offset := 0; offset < len(data); offset += options.BytesPerLine {
		end := min(offset+options.BytesPerLine, len(data))
		formatLine(writer, data[offset:end], offset, options)
	}
}

func formatLine(writer io.Writer, line []byte, offset int, options Options) {
	addr := fmt.Sprintf("0x%016X", options.Base+uint64(offset))
	fmt.Fprint(writer, paint(options, options.AddressColor, addr), "  ")

	half := options.BytesPerLine / 2
	parts := make([]string, 0, len(line))
	for i, b := range line {
		parts = append(parts, hexByte(options, b, offset+i))
	}

	if options.BytesPerLine >= 8 && len(parts) > half {
		fmt.Fprint(writer, strings.Join(parts[:half], " "), " | ", strings.Join(parts[half:], " "))
	} else {
		fmt.Fprint(writer, strings.Join(parts, " "))
	}

	// pad short lines so the ASCII column stays aligned
	if missing := options.BytesPerLine - len(line); missing > 0 {
		pad := missing * 3
		if options.BytesPerLine >= 8 && len(line) <= half {
			pad += 2
		}
		fmt.Fprint(writer, strings.Repeat(" ", pad))
	}

	if options.ShowASCII {
		fmt.Fprint(writer, "  |")
		for i, b := range line {
			fmt.Fprint(writer, asciiByte(options, b, offset+i))
		}
		fmt.Fprint(writer, "|")
	}

	fmt.Fprintln(writer)
}

func highlighted(options Options, pos int) bool {
	return options.HighlightLen > 0 && pos >= options.HighlightOffset && pos < options.HighlightOffset+options.HighlightLen
}

func hexByte(options Options, b byte, pos int) string {
	s := fmt.Sprintf("%02x", b)
	switch {
	case highlighted(options, pos):
		return paintHighlight(options, s)
	case b == 0:
		return paint(options, options.ZeroColor, s)
	}
	return paint(options, options.HexColor, s)
}

func asciiByte(options Options, b byte, pos int) string {
	printable := b >= 0x20 && b < 0x7F
	s := "."
	if printable {
		s = string(rune(b))
	}
	switch {
	case highlighted(options, pos):
		return paintHighlight(options, s)
	case !printable:
		return paint(options, options.NonPrintableColor, s)
	}
	return s
}

func paint(options Options, color coloransi.ColorCode, s string) string {
	if !options.Color {
		return s
	}
	return coloransi.Foreground(color, s)
}

func paintHighlight(options Options, s string) string {
	if !options.Color {
		return s
	}
	return coloransi.Color(options.HighlightColor, options.HighlightBack, s)
}
