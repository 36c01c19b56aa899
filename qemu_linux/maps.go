package qemu_linux

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// mapping is one line of /proc/<pid>/maps
type mapping struct {
	Address uint64
	Size    uint64
	Perms   string
	Path    string
}

func (m mapping) readable() bool {
	return len(m.Perms) > 0 && m.Perms[0] == 'r'
}

func (m mapping) writable() bool {
	return len(m.Perms) > 1 && m.Perms[1] == 'w'
}

// parseMaps parses the /proc/<pid>/maps format. Malformed lines are skipped.
func parseMaps(r io.Reader) ([]mapping, error) {
	var out []mapping
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}

		start, end, ok := strings.Cut(fields[0], "-")
		if !ok {
			continue
		}
		startAddr, err := strconv.ParseUint(start, 16, 64)
		if err != nil {
			continue
		}
		endAddr, err := strconv.ParseUint(end, 16, 64)
		if err != nil || endAddr <= startAddr {
			continue
		}

		m := mapping{Address: startAddr, Size: endAddr - startAddr, Perms: fields[1]}
		if len(fields) >= 6 {
			m.Path = strings.Join(fields[5:], " ")
		}
		out = append(out, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// guestRAM picks the mapping backing guest memory: the largest readable and writable one.
func guestRAM(maps []mapping) (mapping, error) {
	var best mapping
	for _, m := range maps {
		if m.readable() && m.writable() && m.Size > best.Size {
			best = m
		}
	}
	if best.Size == 0 {
		return mapping{}, fmt.Errorf("no writable mapping large enough to be guest memory")
	}
	return best, nil
}
