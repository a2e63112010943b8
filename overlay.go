// Copyright 2022 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import "github.com/corvidre/pebliss/buffer"

// Overlay returns the bytes appended past the end of the last section's
// raw data or the end of the certificate table, whichever is later
// (common for self-extracting installers), or nil if the image has none.
// The certificate table itself is never part of the returned overlay.
func (img *Image) Overlay() (buffer.Buffer, error) {
	end := img.overlayOffset()
	total := img.buf.Size()
	if uint64(end) >= total {
		return nil, nil
	}
	return img.buf.Slice(uint64(end), total-uint64(end))
}

func (img *Image) overlayOffset() uint64 {
	var end uint64
	for _, s := range img.Sections.Sections {
		secEnd := uint64(s.Header.PointerToRawData) + uint64(s.Header.SizeOfRawData)
		if secEnd > end {
			end = secEnd
		}
	}
	if certEnd := img.certificateTableEnd(); certEnd > end {
		end = certEnd
	}
	return end
}

func (img *Image) certificateTableEnd() uint64 {
	dirs := img.NTHeader.DataDirectories()
	d := dirs[ImageDirectoryEntryCertificate]
	if d.Size == 0 {
		return 0
	}
	return uint64(d.VirtualAddress) + uint64(d.Size)
}
