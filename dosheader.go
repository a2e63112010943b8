// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"github.com/corvidre/pebliss/buffer"
	"github.com/corvidre/pebliss/errlist"
	"github.com/corvidre/pebliss/packed"
)

// ImageDOSHeader is the 64-byte MS-DOS stub header every PE image begins
// with.
type ImageDOSHeader struct {
	Magic                    uint16
	BytesOnLastPageOfFile    uint16
	PagesInFile              uint16
	Relocations              uint16
	SizeOfHeader             uint16
	MinExtraParagraphsNeeded uint16
	MaxExtraParagraphsNeeded uint16
	InitialSS                uint16
	InitialSP                uint16
	Checksum                 uint16
	InitialIP                uint16
	InitialCS                uint16
	AddressOfRelocationTable uint16
	OverlayNumber            uint16
	ReservedWords1           [4]uint16
	OEMIdentifier            uint16
	OEMInformation           uint16
	ReservedWords2           [10]uint16
	AddressOfNewEXEHeader    uint32
}

// DOSHeaderDetails is the "details form" of ImageDOSHeader: the struct
// plus its bind-point view and an error list.
type DOSHeaderDetails struct {
	Header ImageDOSHeader
	View   packed.View
	errlist.List
}

// AnoPEHeaderOverlapDOSHeader is reported when e_lfanew places the NT
// headers inside (or overlapping) the 64-byte DOS header.
const AnoPEHeaderOverlapDOSHeader = "the PE header overlaps the DOS header"

// ParseDOSHeader parses the DOS header stub at the start of buf. Unlike
// the recoverable faults recorded via errlist, a bad magic or an
// out-of-range e_lfanew leaves the image unusable and is returned as a
// plain error.
func ParseDOSHeader(buf buffer.Buffer, allowVirtual bool) (DOSHeaderDetails, error) {
	var d DOSHeaderDetails
	view, err := packed.Deserialize(buf, 0, &d.Header, allowVirtual)
	if err != nil {
		return d, err
	}
	d.View = view

	// It can be ZM on a (non-PE) EXE; these still run under XP via ntvdm.
	if d.Header.Magic != ImageDOSSignature && d.Header.Magic != ImageDOSZMSignature {
		return d, ErrDOSMagicNotFound
	}

	if d.Header.AddressOfNewEXEHeader%4 != 0 {
		return d, ErrUnalignedElfanew
	}

	const maxElfanew = 10 * 1024 * 1024
	if d.Header.AddressOfNewEXEHeader < 4 || d.Header.AddressOfNewEXEHeader > maxElfanew ||
		uint64(d.Header.AddressOfNewEXEHeader) > buf.TotalSize() {
		return d, ErrInvalidElfanew
	}

	// A tiny PE has e_lfanew == 4, overlapping the DOS header itself.
	if d.Header.AddressOfNewEXEHeader <= 0x3c {
		d.List.Add(errlist.InvalidDirectorySize, AnoPEHeaderOverlapDOSHeader)
	}

	return d, nil
}

// Stub returns the DOS stub: the bytes between the end of the 64-byte DOS
// header and the PE signature at AddressOfNewEXEHeader. A tiny PE whose
// e_lfanew falls inside (or before) the DOS header itself has no stub to
// return.
func (d DOSHeaderDetails) Stub(buf buffer.Buffer) (buffer.Buffer, error) {
	const dosHeaderSize = 64
	if uint64(d.Header.AddressOfNewEXEHeader) <= dosHeaderSize {
		return buf.Slice(dosHeaderSize, 0)
	}
	length := uint64(d.Header.AddressOfNewEXEHeader) - dosHeaderSize
	return buf.Slice(dosHeaderSize, length)
}
