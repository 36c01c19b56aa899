package page_walker

import (
	"encoding/binary"
	"testing"

	"guestpatch/physical"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntry_AddressMasks(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		level Level
		want  physical.PhysicalAddress
		leaf  bool
	}{
		{"pml4 ignores flags and NX", Entry(0x8000000012345067), LevelPML4, 0x12345000, false},
		{"pdpt table", Entry(0x0000000076543003), LevelPDPT, 0x76543000, false},
		{"pdpt 1G leaf drops PAT bit", Entry(0x00000000C0001083), LevelPDPT, 0xC0000000, true},
		{"pd 2M leaf drops PAT bit", Entry(0x0000000000A01083), LevelPD, 0xA00000, true},
		{"pt leaf keeps bit 12", Entry(0x8000000000001083), LevelPT, 0x1000, true},
		{"high physical bits", Entry(0x000FFFFFFFFFF001), LevelPT, 0x000FFFFFFFFFF000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Address(tt.level))
			assert.Equal(t, tt.leaf, tt.entry.IsLeaf(tt.level))
		})
	}
}

func TestEntry_Usable(t *testing.T) {
	assert.False(t, Entry(0x1).Usable(LevelPML4), "present with zero address")
	assert.False(t, Entry(0x5000).Usable(LevelPT), "not present")
	assert.True(t, Entry(0x5001).Usable(LevelPT))
	// a 2M leaf whose only address bits are below bit 21 has a zero frame
	assert.False(t, Entry(0x1000|0x81).Usable(LevelPD))
}

func TestLevel_Index(t *testing.T) {
	va := uint64(0xFFFFF78000000000)
	assert.Equal(t, 0x1EF, LevelPML4.Index(va))
	assert.Equal(t, 0, LevelPDPT.Index(va))
	assert.Equal(t, 0, LevelPD.Index(va))
	assert.Equal(t, 0, LevelPT.Index(va))

	assert.Equal(t, 3, LevelPT.Index(0x3000))
	assert.Equal(t, "PDPT", LevelPDPT.String())
}

func TestDecodeTable(t *testing.T) {
	_, err := DecodeTable(make([]byte, TableSize-1))
	assert.Error(t, err)

	raw := make([]byte, TableSize)
	binary.LittleEndian.PutUint64(raw[8*511:], 0xDEADB000|1)
	table, err := DecodeTable(raw)
	require.NoError(t, err)
	assert.Equal(t, Entry(0xDEADB001), table[511])
	assert.Equal(t, Entry(0), table[0])
}
