// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidre/pebliss/buffer"
)

func sectionHeaderBytes(name string, virtAddr, virtSize, ptrRaw, sizeRaw uint32) []byte {
	var hdr ImageSectionHeader
	copy(hdr.Name[:], name)
	hdr.VirtualAddress = virtAddr
	hdr.VirtualSize = virtSize
	hdr.PointerToRawData = ptrRaw
	hdr.SizeOfRawData = sizeRaw
	hdr.Characteristics = ImageScnMemRead | ImageScnCntCode

	var buf bytes.Buffer
	_ = binary.Write(&buf, binary.LittleEndian, hdr)
	return buf.Bytes()
}

func TestParseSectionTable(t *testing.T) {
	const tableOffset = 0x200
	const textRaw = 0x400
	const textSize = 0x100
	const dataRaw = 0x600
	const dataSize = 0x100

	var table bytes.Buffer
	table.Write(sectionHeaderBytes(".text", 0x1000, 0x100, textRaw, textSize))
	table.Write(sectionHeaderBytes(".data", 0x2000, 0x300, dataRaw, dataSize))

	data := make([]byte, dataRaw+dataSize)
	copy(data[tableOffset:], table.Bytes())
	for i := 0; i < textSize; i++ {
		data[textRaw+i] = 0xFF
	}
	buf := buffer.NewMemory(data)

	d, err := ParseSectionTable(buf, tableOffset, 2, uint64(len(data)), 0x200, false)
	require.NoError(t, err)
	require.Len(t, d.Sections, 2)
	assert.False(t, d.HasErrors())

	text, ok := d.SectionByName(".text")
	require.True(t, ok)
	assert.Equal(t, ".text", text.Name())

	entropy, err := text.Entropy()
	require.NoError(t, err)
	assert.InDelta(t, 0, entropy, 1e-9) // uniform 0xFF bytes: zero entropy

	dataSec, ok := d.SectionByName(".data")
	require.True(t, ok)
	assert.True(t, dataSec.Contains(0x2050, 0x1000))
	assert.False(t, dataSec.Contains(0x5000, 0x1000))
}

func TestParseSectionTableVirtualTail(t *testing.T) {
	const tableOffset = 0x200
	const rawPtr = 0x400
	const sizeRaw = 0x10
	const virtSize = 0x100

	table := sectionHeaderBytes(".bss", 0x3000, virtSize, rawPtr, sizeRaw)
	data := make([]byte, rawPtr+sizeRaw)
	copy(data[tableOffset:], table)
	buf := buffer.NewMemory(data)

	d, err := ParseSectionTable(buf, tableOffset, 1, uint64(len(data)), 0x200, false)
	require.NoError(t, err)
	require.Len(t, d.Sections, 1)

	sec := d.Sections[0]
	require.NotNil(t, sec.Raw)
	assert.EqualValues(t, sizeRaw, sec.Raw.Buffer().Size())
	assert.EqualValues(t, virtSize, sec.Raw.Buffer().TotalSize())
}

func TestParseSectionTableRawPastEOF(t *testing.T) {
	const tableOffset = 0x40
	table := sectionHeaderBytes(".text", 0x1000, 0x100, 0x1000, 0x1000)
	data := make([]byte, tableOffset+len(table))
	copy(data[tableOffset:], table)
	buf := buffer.NewMemory(data)

	d, err := ParseSectionTable(buf, tableOffset, 1, uint64(len(data)), 0x200, false)
	require.NoError(t, err)
	assert.True(t, d.HasErrors())
}

func TestSortedByVirtualAddress(t *testing.T) {
	const tableOffset = 0
	var table bytes.Buffer
	table.Write(sectionHeaderBytes(".data", 0x2000, 0x10, 0x200, 0x10))
	table.Write(sectionHeaderBytes(".text", 0x1000, 0x10, 0x300, 0x10))
	data := make([]byte, 0x400)
	copy(data[tableOffset:], table.Bytes())
	buf := buffer.NewMemory(data)

	d, err := ParseSectionTable(buf, tableOffset, 2, uint64(len(data)), 0x200, false)
	require.NoError(t, err)

	sorted := d.SortedByVirtualAddress()
	require.Len(t, sorted, 2)
	assert.Equal(t, ".text", sorted[0].Name())
	assert.Equal(t, ".data", sorted[1].Name())
}
