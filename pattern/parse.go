package pattern

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse builds a pattern from text. Two forms are accepted:
//
//   - IDA style: bytes separated by whitespace or commas, wildcards as "?" or "??"
//     (e.g. "55 8B EC ? ? 8B 45 08")
//   - raw hex: unseparated byte pairs, wildcards as "??" (e.g. "558bec????8b4508")
func Parse(text string, opts ...Option) (*Pattern, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyPattern
	}

	var (
		bytes, mask []byte
		err         error
	)
	if strings.ContainsFunc(text, isSeparator) || len(text) <= 2 {
		bytes, mask, err = parseSeparated(text)
	} else {
		bytes, mask, err = parseHexRaw(text)
	}
	if err != nil {
		return nil, err
	}
	return New(bytes, mask, opts...)
}

func isSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

func parseSeparated(text string) ([]byte, []byte, error) {
	parts := strings.FieldsFunc(text, isSeparator)

	var bytes, mask []byte
	for _, part := range parts {
		if part == "??" || part == "?" {
			bytes = append(bytes, 0)
			mask = append(mask, 0)
			continue
		}
		if len(part) > 2 {
			return nil, nil, fmt.Errorf("%w: token %q is not a single byte", ErrInvalidPattern, part)
		}
		val, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid hex byte %q", ErrInvalidPattern, part)
		}
		bytes = append(bytes, byte(val))
		mask = append(mask, 0xFF)
	}
	return bytes, mask, nil
}

func parseHexRaw(text string) ([]byte, []byte, error) {
	if len(text)%2 != 0 {
		return nil, nil, fmt.Errorf("%w: odd number of hex digits in %q", ErrInvalidPattern, text)
	}

	bytes := make([]byte, 0, len(text)/2)
	mask := make([]byte, 0, len(text)/2)
	for i := 0; i < len(text); i += 2 {
		pair := text[i : i+2]
		if pair == "??" {
			bytes = append(bytes, 0)
			mask = append(mask, 0)
			continue
		}
		val, err := strconv.ParseUint(pair, 16, 8)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: invalid hex byte %q at offset %d", ErrInvalidPattern, pair, i)
		}
		bytes = append(bytes, byte(val))
		mask = append(mask, 0xFF)
	}
	return bytes, mask, nil
}

// ParsePatch decodes the replacement bytes. Whitespace and "\x" or "0x" prefixes are ignored.
// An empty patch returns nil without error, meaning scan only.
func ParsePatch(text string) ([]byte, error) {
	cleaned := strings.NewReplacer(`\x`, "", `\X`, "", "0x", "", "0X", "").Replace(text)
	cleaned = strings.Join(strings.Fields(cleaned), "")
	if cleaned == "" {
		return nil, nil
	}

	patch, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPatch, err)
	}
	return patch, nil
}
