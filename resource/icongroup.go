// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package resource

import (
	"bytes"
	"encoding/binary"

	"github.com/corvidre/pebliss/buffer"
	"github.com/corvidre/pebliss/errlist"
)

// Icon/cursor resources: a RT_GROUP_ICON or RT_GROUP_CURSOR resource
// holds a GroupHeader plus one GroupEntry per image, each entry's ID
// field naming a sibling RT_ICON/RT_CURSOR resource that holds the
// actual bitmap bytes.

// Group header Type field values: 1 for an icon group, 2 for a cursor
// group, matching the RT_GROUP_ICON/RT_GROUP_CURSOR resource's on-disk
// NEWHEADER.
const (
	groupTypeIcon   = 1
	groupTypeCursor = 2
)

// GroupHeader is the NEWHEADER preceding a resource group's entry array.
type GroupHeader struct {
	Reserved uint16
	Type     uint16
	Count    uint16
}

// GroupEntry is one RESDIR row inside an icon or cursor group resource:
// it describes one image's dimensions and names the RT_ICON/RT_CURSOR
// resource ID holding its bytes.
type GroupEntry struct {
	Width      uint8
	Height     uint8
	ColorCount uint8
	Reserved   uint8
	Planes     uint16
	BitCount   uint16
	BytesInRes uint32
	ID         uint16
}

// Image is one decoded icon or cursor frame: its group entry plus the
// raw bitmap bytes from the matching RT_ICON/RT_CURSOR leaf, and, for
// cursors, the hotspot lifted out of the front of that leaf's data.
type Image struct {
	Entry    GroupEntry
	HotspotX uint16
	HotspotY uint16
	Bitmap   []byte
	IsCursor bool

	// Resolved reports whether a sibling RT_ICON/RT_CURSOR leaf matching
	// Entry.ID was found and its bytes copied into Bitmap. ToFileFormat
	// refuses to serialize a Group where this is false for any image,
	// since the resulting file would have a directory entry with no
	// backing data.
	Resolved bool
}

// Group is a decoded icon or cursor group: the parsed images in on-disk
// order.
type Group struct {
	Header ImageResourceDataEntry
	Images []Image
	errlist.List
}

// ParseIconGroup decodes an RT_GROUP_ICON resource's data entry
// (groupData) and resolves each GroupEntry.ID against the sibling
// RT_ICON directory (icons, keyed by the numeric resource ID Windows
// assigns each RT_ICON leaf).
func ParseIconGroup(groupData buffer.Buffer, icons *Directory) (Group, error) {
	return parseGroup(groupData, icons, false)
}

// ParseCursorGroup is ParseIconGroup's RT_GROUP_CURSOR/RT_CURSOR
// counterpart. Each resolved leaf's first 4 bytes are the hotspot
// (xHotspot, yHotspot as little-endian uint16 pairs), lifted off the
// front of Bitmap into Image.HotspotX/HotspotY. The on-disk Height field
// in a cursor's GRPCURSORDIRENTRY is the DIB's doubled height (color
// plane plus AND mask); Entry.Height here retains that doubled value
// exactly as read, and it is ToFileFormat's job to halve it back down to
// the displayable height when writing a standalone .cur file.
func ParseCursorGroup(groupData buffer.Buffer, cursors *Directory) (Group, error) {
	return parseGroup(groupData, cursors, true)
}

func parseGroup(groupData buffer.Buffer, leaves *Directory, isCursor bool) (Group, error) {
	var g Group

	raw, err := buffer.ReadAll(groupData)
	if err != nil {
		return g, err
	}
	if len(raw) < 6 {
		g.List.Add(errlist.InvalidResourceDirectory, "icon/cursor group header truncated")
		return g, nil
	}

	var hdr GroupHeader
	hdr.Reserved = binary.LittleEndian.Uint16(raw[0:2])
	hdr.Type = binary.LittleEndian.Uint16(raw[2:4])
	hdr.Count = binary.LittleEndian.Uint16(raw[4:6])

	wantType := uint16(groupTypeIcon)
	if isCursor {
		wantType = groupTypeCursor
	}
	if hdr.Type != wantType {
		g.List.Add(errlist.InvalidResourceDirectory, "unexpected group Type field")
	}

	const entrySize = 14
	pos := 6
	entries := make([]GroupEntry, 0, hdr.Count)
	for i := uint16(0); i < hdr.Count; i++ {
		if pos+entrySize > len(raw) {
			g.List.Add(errlist.DifferentNumberOfHeadersAndData, "fewer group entries than Count declares")
			break
		}
		e := GroupEntry{
			Width:      raw[pos],
			Height:     raw[pos+1],
			ColorCount: raw[pos+2],
			Reserved:   raw[pos+3],
			Planes:     binary.LittleEndian.Uint16(raw[pos+4 : pos+6]),
			BitCount:   binary.LittleEndian.Uint16(raw[pos+6 : pos+8]),
			BytesInRes: binary.LittleEndian.Uint32(raw[pos+8 : pos+12]),
			ID:         binary.LittleEndian.Uint16(raw[pos+12 : pos+14]),
		}
		entries = append(entries, e)
		pos += entrySize
	}

	if len(entries) != int(hdr.Count) {
		g.List.Add(errlist.DifferentNumberOfHeadersAndData, "")
	}

	for _, e := range entries {
		img := Image{Entry: e, IsCursor: isCursor}

		if leaves != nil {
			if leafEntry, ok := leaves.EntryByID(uint32(e.ID)); ok && leafEntry.Kind == KindData && leafEntry.Data.Data != nil {
				bitmap, err := buffer.ReadAll(leafEntry.Data.Data)
				if err == nil {
					if isCursor {
						if len(bitmap) < 4 {
							g.List.Add(errlist.InvalidHotspot, "cursor resource shorter than its hotspot field")
						} else {
							img.HotspotX = binary.LittleEndian.Uint16(bitmap[0:2])
							img.HotspotY = binary.LittleEndian.Uint16(bitmap[2:4])
							bitmap = bitmap[4:]
							img.Resolved = true
						}
					} else {
						img.Resolved = true
					}
					img.Bitmap = bitmap
				}
			} else {
				g.List.Add(errlist.EntryDoesNotExist, "")
			}
		}

		g.Images = append(g.Images, img)
	}

	return g, nil
}

// ToFileFormat re-serializes a decoded Group into the bytes of a
// standalone .ico or .cur file: an ICONDIR/CURSORDIR header, one
// ICONDIRENTRY/CURSORDIRENTRY per image (with, for cursors, the hotspot
// re-packed into the entry's Planes/BitCount fields, the on-disk
// convention .cur files use since ICONDIRENTRY itself has no hotspot
// fields), followed by each image's raw bitmap bytes back-to-back. It
// fails if any group entry's sibling RT_ICON/RT_CURSOR leaf was never
// resolved, since the header and data arrays would then disagree on
// length.
func (g Group) ToFileFormat() ([]byte, error) {
	resolved := 0
	for _, img := range g.Images {
		if img.Resolved {
			resolved++
		}
	}
	if resolved != len(g.Images) {
		return nil, errlist.Entry{Kind: errlist.DifferentNumberOfHeadersAndData}
	}

	var out bytes.Buffer

	fileType := uint16(1)
	if len(g.Images) > 0 && g.Images[0].IsCursor {
		fileType = 2
	}

	writeU16 := func(v uint16) { binary.Write(&out, binary.LittleEndian, v) }
	writeU32 := func(v uint32) { binary.Write(&out, binary.LittleEndian, v) }

	writeU16(0)
	writeU16(fileType)
	writeU16(uint16(len(g.Images)))

	offset := uint32(6 + 16*len(g.Images))
	for _, img := range g.Images {
		height := img.Entry.Height
		if img.IsCursor {
			height /= 2
		}
		out.WriteByte(img.Entry.Width)
		out.WriteByte(height)
		out.WriteByte(img.Entry.ColorCount)
		out.WriteByte(img.Entry.Reserved)
		if img.IsCursor {
			writeU16(img.HotspotX)
			writeU16(img.HotspotY)
		} else {
			writeU16(img.Entry.Planes)
			writeU16(img.Entry.BitCount)
		}
		writeU32(uint32(len(img.Bitmap)))
		writeU32(offset)
		offset += uint32(len(img.Bitmap))
	}

	for _, img := range g.Images {
		out.Write(img.Bitmap)
	}

	return out.Bytes(), nil
}
