package page_walker

import (
	"fmt"

	"guestpatch/physical"
)

// Table is one decoded paging structure
type Table [EntriesPerTable]Entry

// DecodeTable decodes a raw 4 KiB paging structure. The buffer length is validated before any
// entry is extracted.
func DecodeTable(data []byte) (*Table, error) {
	if len(data) != TableSize {
		return nil, fmt.Errorf("page table must be %d bytes, got %d", TableSize, len(data))
	}
	raw, err := physical.DecodeUINT64Array(data, EntriesPerTable)
	if err != nil {
		return nil, err
	}
	var t Table
	for i, v := range raw {
		t[i] = Entry(v)
	}
	return &t, nil
}

// ReadTable reads and decodes the paging structure at addr with a single physical read.
func ReadTable(mem physical.PhysicalReader, addr physical.PhysicalAddress) (*Table, error) {
	data, err := physical.ReadExact(mem, addr, TableSize)
	if err != nil {
		return nil, err
	}
	return DecodeTable(data)
}
