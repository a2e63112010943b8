// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidre/pebliss/buffer"
)

func TestOverlayPastLastSection(t *testing.T) {
	data := make([]byte, 0x200)
	copy(data[0x180:], []byte("overlay-bytes"))

	img := &Image{
		buf: buffer.NewMemory(data),
		Sections: SectionTableDetails{
			Sections: []Section{
				{Header: ImageSectionHeader{PointerToRawData: 0x100, SizeOfRawData: 0x80}},
			},
		},
	}

	overlay, err := img.Overlay()
	require.NoError(t, err)
	require.NotNil(t, overlay)
	assert.EqualValues(t, 0x200-0x180, overlay.Size())

	raw, err := buffer.ReadAll(overlay)
	require.NoError(t, err)
	assert.Equal(t, []byte("overlay-bytes"), raw[:len("overlay-bytes")])
}

func TestOverlayNoneWhenSectionsCoverEOF(t *testing.T) {
	data := make([]byte, 0x100)
	img := &Image{
		buf: buffer.NewMemory(data),
		Sections: SectionTableDetails{
			Sections: []Section{
				{Header: ImageSectionHeader{PointerToRawData: 0, SizeOfRawData: 0x100}},
			},
		},
	}

	overlay, err := img.Overlay()
	require.NoError(t, err)
	assert.Nil(t, overlay)
}

func TestOverlayAccountsForCertificateTable(t *testing.T) {
	data := make([]byte, 0x300)
	var nt NTHeaderDetails
	nt.OptionalHeader32.DataDirectory[ImageDirectoryEntryCertificate] = DataDirectory{
		VirtualAddress: 0x200,
		Size:           0x50,
	}

	img := &Image{
		buf:      buffer.NewMemory(data),
		NTHeader: nt,
		Sections: SectionTableDetails{
			Sections: []Section{
				{Header: ImageSectionHeader{PointerToRawData: 0x50, SizeOfRawData: 0x50}},
			},
		},
	}

	overlay, err := img.Overlay()
	require.NoError(t, err)
	require.NotNil(t, overlay)
	assert.EqualValues(t, 0x300-0x250, overlay.Size())
}
