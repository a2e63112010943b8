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
)

// buildMinimalPEImage assembles a complete, loader-plausible PE32 image:
// a 64-byte DOS header, a COFF file header and PE32 optional header, and
// a single ".text" section with real backing bytes, laid out with
// 0x200-byte file alignment.
func buildMinimalPEImage() []byte {
	const (
		elfanew       = 0x80
		fileAlignment = 0x200
		sectionRVA    = 0x1000
		sectionSize   = 0x50
	)

	dos := make([]byte, elfanew)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[0x3c:], elfanew)

	var opt ImageOptionalHeader32
	opt.Magic = ImageNtOptionalHeader32Magic
	opt.AddressOfEntryPoint = sectionRVA
	opt.ImageBase = 0x400000
	opt.SectionAlignment = 0x1000
	opt.FileAlignment = fileAlignment
	opt.MajorSubsystemVersion = 5
	opt.SizeOfImage = 0x2000
	opt.SizeOfHeaders = fileAlignment
	opt.NumberOfRvaAndSizes = 16

	var optBuf bytes.Buffer
	_ = binary.Write(&optBuf, binary.LittleEndian, opt)

	fh := ImageFileHeader{
		Machine:              ImageFileMachineI386,
		NumberOfSections:     1,
		TimeDateStamp:        1_600_000_000,
		SizeOfOptionalHeader: uint16(optBuf.Len()),
	}

	var nt bytes.Buffer
	nt.Write([]byte{'P', 'E', 0, 0})
	_ = binary.Write(&nt, binary.LittleEndian, fh)
	nt.Write(optBuf.Bytes())

	var sec ImageSectionHeader
	copy(sec.Name[:], ".text")
	sec.VirtualAddress = sectionRVA
	sec.VirtualSize = sectionSize
	sec.PointerToRawData = fileAlignment
	sec.SizeOfRawData = fileAlignment
	sec.Characteristics = ImageScnMemRead | ImageScnMemExecute | ImageScnCntCode
	_ = binary.Write(&nt, binary.LittleEndian, sec)

	image := make([]byte, elfanew+nt.Len())
	copy(image, dos)
	copy(image[elfanew:], nt.Bytes())

	total := make([]byte, fileAlignment*2)
	copy(total, image)
	for i := 0; i < sectionSize; i++ {
		total[fileAlignment+i] = byte(i)
	}
	return total
}

func TestImageParseEndToEnd(t *testing.T) {
	data := buildMinimalPEImage()
	img, err := NewBytes(data, &Options{Fast: true})
	require.NoError(t, err)

	err = img.Parse()
	require.NoError(t, err)

	assert.EqualValues(t, ImageDOSSignature, img.DOSHeader.Header.Magic)
	assert.EqualValues(t, ImageNTSignature, img.NTHeader.Signature)
	require.Len(t, img.Sections.Sections, 1)
	assert.Equal(t, ".text", img.Sections.Sections[0].Name())

	off, err := img.AddressMap.RVAToFileOffset(0x1010)
	require.NoError(t, err)
	assert.EqualValues(t, 0x210, off)
}

func TestImageParseRejectsTooSmall(t *testing.T) {
	img, err := NewBytes(make([]byte, 10), &Options{})
	require.NoError(t, err)

	err = img.Parse()
	assert.ErrorIs(t, err, ErrInvalidPESize)
}

func TestImageParseRejectsBadMagic(t *testing.T) {
	data := buildMinimalPEImage()
	data[0] = 'X'
	img, err := NewBytes(data, &Options{Fast: true})
	require.NoError(t, err)

	err = img.Parse()
	assert.ErrorIs(t, err, ErrDOSMagicNotFound)
}

func TestImageParseNonFastSkipsAbsentDirectories(t *testing.T) {
	data := buildMinimalPEImage()
	img, err := NewBytes(data, &Options{})
	require.NoError(t, err)

	err = img.Parse()
	require.NoError(t, err)
	assert.Nil(t, img.Resources)
	assert.Empty(t, img.Certificates.Entries)
}
