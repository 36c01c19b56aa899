package pattern

import (
	"bytes"

	"golang.org/x/sync/errgroup"
)

// minChunk is the smallest slice of a buffer handed to a worker. Buffers below twice this size
// are scanned on the calling goroutine.
const minChunk = 64 * 1024

// Scan returns the offset of every match in data, ascending. Overlapping matches are all
// reported. Large buffers are split across the configured workers; Scan returns only after
// every worker is done. data must not be modified while Scan runs.
func (p *Pattern) Scan(data []byte) []uint64 {
	starts := len(data) - len(p.bytes) + 1
	if starts <= 0 {
		return nil
	}

	if p.workers <= 1 || starts < 2*minChunk {
		return p.scanRange(data, 0, starts, nil)
	}

	chunk := (starts + p.workers - 1) / p.workers
	if chunk < minChunk {
		chunk = minChunk
	}
	count := (starts + chunk - 1) / chunk
	found := make([][]uint64, count)

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i := 0; i < count; i++ {
		lo := i * chunk
		hi := min(lo+chunk, starts)
		g.Go(func() error {
			// each worker owns its slot; the last pattern byte a start in [lo, hi) reads is
			// hi+len-2, so chunks overlap without duplicating starts
			found[i] = p.scanRange(data, lo, hi, nil)
			return nil
		})
	}
	_ = g.Wait()

	total := 0
	for _, f := range found {
		total += len(f)
	}
	if total == 0 {
		return nil
	}
	out := make([]uint64, 0, total)
	for _, f := range found {
		out = append(out, f...)
	}
	return out
}

// scanRange appends the matches starting in [lo, hi) to out.
func (p *Pattern) scanRange(data []byte, lo, hi int, out []uint64) []uint64 {
	a := p.anchor
	if a < 0 {
		for i := lo; i < hi; i++ {
			if p.MatchAt(data, i) {
				out = append(out, uint64(i))
			}
		}
		return out
	}

	av := p.bytes[a]
	for i := lo; i < hi; {
		j := bytes.IndexByte(data[i+a:hi+a], av)
		if j < 0 {
			break
		}
		i += j
		if p.MatchAt(data, i) {
			out = append(out, uint64(i))
		}
		i++
	}
	return out
}
