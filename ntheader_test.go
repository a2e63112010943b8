// Copyright 2021 Saferwall. All rights reserved.
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

// buildNTImage assembles a minimal in-memory image containing only a valid
// "PE\0\0" signature, COFF file header, and optional header (PE32 or
// PE32+, selected by magic), starting at elfanew.
func buildNTImage(elfanew uint32, magic uint16, imageBase uint64) []byte {
	var body bytes.Buffer
	body.Write([]byte{'P', 'E', 0, 0})

	var sizeOfOptional uint16
	var optBuf bytes.Buffer
	if magic == ImageNtOptionalHeader64Magic {
		oh := ImageOptionalHeader64{
			Magic:               magic,
			ImageBase:           imageBase,
			SectionAlignment:    0x1000,
			FileAlignment:       0x200,
			SizeOfImage:         0x3000,
			SizeOfHeaders:       0x400,
			NumberOfRvaAndSizes: 16,
		}
		_ = binary.Write(&optBuf, binary.LittleEndian, oh)
		sizeOfOptional = uint16(binary.Size(oh))
	} else {
		oh := ImageOptionalHeader32{
			Magic:               magic,
			ImageBase:           uint32(imageBase),
			SectionAlignment:    0x1000,
			FileAlignment:       0x200,
			SizeOfImage:         0x3000,
			SizeOfHeaders:       0x400,
			NumberOfRvaAndSizes: 16,
		}
		_ = binary.Write(&optBuf, binary.LittleEndian, oh)
		sizeOfOptional = uint16(binary.Size(oh))
	}

	fh := ImageFileHeader{
		Machine:              ImageFileMachineAMD64,
		NumberOfSections:     2,
		SizeOfOptionalHeader: sizeOfOptional,
	}
	_ = binary.Write(&body, binary.LittleEndian, fh)
	body.Write(optBuf.Bytes())

	out := make([]byte, elfanew)
	out = append(out, body.Bytes()...)
	return out
}

func TestParseNTHeaderPE32(t *testing.T) {
	const elfanew = 0x80
	data := buildNTImage(elfanew, ImageNtOptionalHeader32Magic, 0x400000)
	buf := buffer.NewMemory(data)

	nt, err := ParseNTHeader(buf, elfanew, false)
	require.NoError(t, err)
	assert.False(t, nt.Is64)
	assert.EqualValues(t, ImageNTSignature, nt.Signature)
	assert.EqualValues(t, 2, nt.FileHeader.NumberOfSections)
	assert.EqualValues(t, 0x400000, nt.ImageBase())
	assert.EqualValues(t, 0x3000, nt.SizeOfImage())
	assert.EqualValues(t, 0x1000, nt.SectionAlignment())
	assert.EqualValues(t, 0x200, nt.FileAlignment())
	assert.EqualValues(t, 0x400, nt.SizeOfHeaders())
}

func TestParseNTHeaderPE32Plus(t *testing.T) {
	const elfanew = 0x80
	data := buildNTImage(elfanew, ImageNtOptionalHeader64Magic, 0x140000000)
	buf := buffer.NewMemory(data)

	nt, err := ParseNTHeader(buf, elfanew, false)
	require.NoError(t, err)
	assert.True(t, nt.Is64)
	assert.EqualValues(t, 0x140000000, nt.ImageBase())
}

func TestParseNTHeaderBadSignature(t *testing.T) {
	const elfanew = 0x80
	data := buildNTImage(elfanew, ImageNtOptionalHeader32Magic, 0x400000)
	data[elfanew] = 'X'
	buf := buffer.NewMemory(data)

	_, err := ParseNTHeader(buf, elfanew, false)
	assert.ErrorIs(t, err, ErrInvalidPESignature)
}

func TestParseNTHeaderBadOptionalMagic(t *testing.T) {
	const elfanew = 0x80
	data := buildNTImage(elfanew, 0x999, 0x400000)
	buf := buffer.NewMemory(data)

	_, err := ParseNTHeader(buf, elfanew, false)
	assert.ErrorIs(t, err, ErrInvalidOptionalHeader)
}

func TestParseNTHeaderMisalignedImageBase(t *testing.T) {
	const elfanew = 0x80
	data := buildNTImage(elfanew, ImageNtOptionalHeader32Magic, 0x400001)
	buf := buffer.NewMemory(data)

	_, err := ParseNTHeader(buf, elfanew, false)
	assert.ErrorIs(t, err, ErrInvalidOptionalHeader)
}

func TestNTHeaderDataDirectories(t *testing.T) {
	const elfanew = 0x80
	data := buildNTImage(elfanew, ImageNtOptionalHeader32Magic, 0x400000)
	buf := buffer.NewMemory(data)

	nt, err := ParseNTHeader(buf, elfanew, false)
	require.NoError(t, err)
	dirs := nt.DataDirectories()
	assert.Len(t, dirs, 16)
}
