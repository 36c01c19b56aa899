package patcher

import (
	"testing"

	"guestpatch/pattern"
	"guestpatch/physical"
	"guestpatch/physical_blob"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPattern(t *testing.T, text string) *pattern.Pattern {
	t.Helper()
	p, err := pattern.Parse(text, pattern.WithWorkers(1))
	require.NoError(t, err)
	return p
}

func page(addr physical.PhysicalAddress) physical.Range {
	return physical.Range{Address: addr, Size: physical.PageSize4K}
}

func TestRun_ScanOnly(t *testing.T) {
	mem := physical_blob.NewSparse()
	mem.Map(0x1000, physical.PageSize4K)
	mem.Write(0x1010, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	var sink Collector
	summary := New(mem, mustPattern(t, "DE AD BE EF"), &sink).Run([]physical.Range{page(0x1000)})

	require.Len(t, sink.Results, 1)
	r := sink.Results[0]
	assert.Equal(t, physical.PhysicalAddress(0x1010), r.Address)
	assert.Equal(t, page(0x1000), r.Range)
	assert.False(t, r.Attempted)
	assert.False(t, r.Patched)
	assert.NoError(t, r.Err)

	assert.Empty(t, mem.Writes())
	assert.Equal(t, Summary{RangesScanned: 1, BytesScanned: physical.PageSize4K, Matches: 1}, summary)
}

func TestRun_WildcardMatches(t *testing.T) {
	mem := physical_blob.NewSparse()
	mem.Map(0x1000, physical.PageSize4K)
	mem.Write(0x1010, []byte{0xDE, 0x00, 0xBE, 0xEF})
	mem.Write(0x1800, []byte{0xDE, 0xFF, 0xBE, 0xEF})

	var sink Collector
	summary := New(mem, mustPattern(t, "DE ?? BE EF"), &sink).Run([]physical.Range{page(0x1000)})

	require.Len(t, sink.Results, 2)
	assert.Equal(t, physical.PhysicalAddress(0x1010), sink.Results[0].Address)
	assert.Equal(t, physical.PhysicalAddress(0x1800), sink.Results[1].Address)
	assert.Equal(t, 2, summary.Matches)
}

func TestRun_Patch(t *testing.T) {
	mem := physical_blob.NewSparse()
	mem.Map(0x1000, physical.PageSize4K)
	mem.Write(0x1010, []byte{0xDE, 0xAD, 0xBE, 0xEF})

	before, err := mem.ReadPhysical(0x1000, physical.PageSize4K)
	require.NoError(t, err)

	var sink Collector
	summary := New(mem, mustPattern(t, "DE AD BE EF"), &sink, WithPatch([]byte{0xAA, 0xBB})).
		Run([]physical.Range{page(0x1000)})

	require.Len(t, sink.Results, 1)
	assert.True(t, sink.Results[0].Attempted)
	assert.True(t, sink.Results[0].Patched)
	assert.NoError(t, sink.Results[0].Err)
	assert.Equal(t, 1, summary.Patched)

	after, err := mem.ReadPhysical(0x1000, physical.PageSize4K)
	require.NoError(t, err)

	want := append([]byte(nil), before...)
	want[0x10], want[0x11] = 0xAA, 0xBB
	assert.Equal(t, want, after)
	assert.Equal(t, []byte{0xAA, 0xBB, 0xBE, 0xEF}, after[0x10:0x14])
	assert.Equal(t, []physical.PhysicalAddress{0x1010}, mem.Writes())
}

func TestRun_UnreadableRangeIsSkipped(t *testing.T) {
	mem := physical_blob.NewSparse()
	mem.Map(0x1000, physical.PageSize4K)
	mem.Write(0x1010, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	mem.Map(0x3000, physical.PageSize4K)
	mem.Write(0x3020, []byte{0xDE, 0xAD, 0xBE, 0xEF})
	mem.FailRead(0x1000)

	var sink Collector
	summary := New(mem, mustPattern(t, "DE AD BE EF"), &sink, WithPatch([]byte{0x90})).
		Run([]physical.Range{page(0x1000), page(0x2000), page(0x3000)})

	// 0x1000 fails by injection and 0x2000 was never populated
	require.Len(t, sink.Results, 1)
	assert.Equal(t, physical.PhysicalAddress(0x3020), sink.Results[0].Address)
	assert.Equal(t, []physical.PhysicalAddress{0x3020}, mem.Writes())
	assert.Equal(t, 2, summary.RangesSkipped)
	assert.Equal(t, 1, summary.RangesScanned)
}

func TestRun_EmptyRanges(t *testing.T) {
	var sink Collector
	summary := New(physical_blob.NewSparse(), mustPattern(t, "90"), &sink).Run(nil)

	assert.Empty(t, sink.Results)
	assert.Equal(t, Summary{}, summary)
}

func TestRun_WriteFailureContinues(t *testing.T) {
	mem := physical_blob.NewSparse()
	mem.Map(0x1000, physical.PageSize4K)
	mem.Write(0x1010, []byte{0xCC, 0xCC})
	mem.Write(0x1100, []byte{0xCC, 0xCC})
	mem.FailWrite(0x1010)

	var sink Collector
	summary := New(mem, mustPattern(t, "CC CC"), &sink, WithPatch([]byte{0x90, 0x90})).
		Run([]physical.Range{page(0x1000)})

	require.Len(t, sink.Results, 2)
	assert.False(t, sink.Results[0].Patched)
	assert.Error(t, sink.Results[0].Err)
	assert.True(t, sink.Results[1].Patched)
	assert.Equal(t, 1, summary.Patched)
	assert.Equal(t, 1, summary.PatchFailed)

	got, err := mem.ReadPhysical(0x1100, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x90, 0x90}, got)
}

func TestRun_OrderAcrossRanges(t *testing.T) {
	mem := physical_blob.NewSparse()
	for _, base := range []physical.PhysicalAddress{0x1000, 0x5000} {
		mem.Map(base, physical.PageSize4K)
		mem.Write(base+0x40, []byte{0x0F, 0x05})
		mem.Write(base+0x20, []byte{0x0F, 0x05})
	}

	var addrs []physical.PhysicalAddress
	sink := SinkFunc(func(r Result) { addrs = append(addrs, r.Address) })
	New(mem, mustPattern(t, "0F 05"), sink).Run([]physical.Range{page(0x1000), page(0x5000)})

	assert.Equal(t, []physical.PhysicalAddress{0x1020, 0x1040, 0x5020, 0x5040}, addrs)
}

func TestRun_ContextCapturedBeforePatch(t *testing.T) {
	mem := physical_blob.NewSparse()
	mem.Map(0x1000, physical.PageSize4K)
	mem.Write(0x1000, []byte{0x11, 0x22, 0xDE, 0xAD, 0x33})

	var sink Collector
	New(mem, mustPattern(t, "DE AD"), &sink, WithPatch([]byte{0x90, 0x90}), WithContext(4)).
		Run([]physical.Range{page(0x1000)})

	require.Len(t, sink.Results, 1)
	r := sink.Results[0]
	// clamped at the start of the range
	assert.Equal(t, physical.PhysicalAddress(0x1000), r.ContextBase)
	assert.Equal(t, []byte{0x11, 0x22, 0xDE, 0xAD, 0x33, 0, 0, 0}, r.Context)
	assert.True(t, r.Patched)
}
