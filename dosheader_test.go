// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidre/pebliss/buffer"
)

// minimalDOSHeader returns a DOS header with the given e_lfanew, padded
// with a zero stub so the buffer reaches e_lfanew when it lies past the
// 64-byte header.
func minimalDOSHeader(elfanew uint32) []byte {
	h := make([]byte, max(64, elfanew))
	h[0], h[1] = 'M', 'Z'
	putU32(h[0x3c:], elfanew)
	return h
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func TestParseDOSHeaderValid(t *testing.T) {
	data := minimalDOSHeader(0x80)
	buf := buffer.NewMemory(data)

	d, err := ParseDOSHeader(buf, false)
	require.NoError(t, err)
	assert.EqualValues(t, ImageDOSSignature, d.Header.Magic)
	assert.EqualValues(t, 0x80, d.Header.AddressOfNewEXEHeader)
	assert.False(t, d.HasErrors())
}

func TestParseDOSHeaderBadMagic(t *testing.T) {
	data := minimalDOSHeader(0x80)
	data[0], data[1] = 'X', 'X'
	buf := buffer.NewMemory(data)

	_, err := ParseDOSHeader(buf, false)
	assert.ErrorIs(t, err, ErrDOSMagicNotFound)
}

func TestParseDOSHeaderUnalignedElfanew(t *testing.T) {
	data := minimalDOSHeader(0x81)
	buf := buffer.NewMemory(data)

	_, err := ParseDOSHeader(buf, false)
	assert.ErrorIs(t, err, ErrUnalignedElfanew)
}

func TestParseDOSHeaderOutOfRangeElfanew(t *testing.T) {
	data := minimalDOSHeader(0x4)
	// e_lfanew within [4, 10MiB] but past the tiny buffer's total size.
	putU32(data[0x3c:], 0x10000)
	buf := buffer.NewMemory(data)

	_, err := ParseDOSHeader(buf, false)
	assert.ErrorIs(t, err, ErrInvalidElfanew)
}

func TestParseDOSHeaderOverlapAnomaly(t *testing.T) {
	data := minimalDOSHeader(0x3c)
	buf := buffer.NewMemory(data)

	d, err := ParseDOSHeader(buf, false)
	require.NoError(t, err)
	assert.True(t, d.HasErrors())
}

func TestDOSHeaderStub(t *testing.T) {
	data := minimalDOSHeader(0x80)
	buf := buffer.NewMemory(data)

	d, err := ParseDOSHeader(buf, false)
	require.NoError(t, err)

	stub, err := d.Stub(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 0x80-64, stub.Size())
}

func TestDOSHeaderStubTinyPEHasNoStub(t *testing.T) {
	data := minimalDOSHeader(0x3c)
	buf := buffer.NewMemory(data)

	d, err := ParseDOSHeader(buf, false)
	require.NoError(t, err)

	stub, err := d.Stub(buf)
	require.NoError(t, err)
	assert.EqualValues(t, 0, stub.Size())
}
