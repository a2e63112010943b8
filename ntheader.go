// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"github.com/corvidre/pebliss/buffer"
	"github.com/corvidre/pebliss/packed"
)

// ImageFileHeader is the COFF file header: the general
// characteristics applicable to both object and executable files.
type ImageFileHeader struct {
	Machine              uint16
	NumberOfSections     uint16
	TimeDateStamp        uint32
	PointerToSymbolTable uint32
	NumberOfSymbols      uint32
	SizeOfOptionalHeader uint16
	Characteristics      uint16
}

// DataDirectory is one entry of the optional header's 16-slot data
// directory array: the RVA and size of a table the loader cares about.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

// ImageOptionalHeader32 is the PE32 optional header.
type ImageOptionalHeader32 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	BaseOfData                  uint32
	ImageBase                   uint32
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint32
	SizeOfStackCommit           uint32
	SizeOfHeapReserve           uint32
	SizeOfHeapCommit            uint32
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]DataDirectory
}

// ImageOptionalHeader64 is the PE32+ optional header.
type ImageOptionalHeader64 struct {
	Magic                       uint16
	MajorLinkerVersion          uint8
	MinorLinkerVersion          uint8
	SizeOfCode                  uint32
	SizeOfInitializedData       uint32
	SizeOfUninitializedData     uint32
	AddressOfEntryPoint         uint32
	BaseOfCode                  uint32
	ImageBase                   uint64
	SectionAlignment            uint32
	FileAlignment               uint32
	MajorOperatingSystemVersion uint16
	MinorOperatingSystemVersion uint16
	MajorImageVersion           uint16
	MinorImageVersion           uint16
	MajorSubsystemVersion       uint16
	MinorSubsystemVersion       uint16
	Win32VersionValue           uint32
	SizeOfImage                 uint32
	SizeOfHeaders               uint32
	CheckSum                    uint32
	Subsystem                   uint16
	DllCharacteristics          uint16
	SizeOfStackReserve          uint64
	SizeOfStackCommit           uint64
	SizeOfHeapReserve           uint64
	SizeOfHeapCommit            uint64
	LoaderFlags                 uint32
	NumberOfRvaAndSizes         uint32
	DataDirectory               [16]DataDirectory
}

// NTHeaderDetails is the decoded COFF file header plus optional header,
// whichever width the image carries.
type NTHeaderDetails struct {
	Signature  uint32
	FileHeader ImageFileHeader
	FileView   packed.View

	// Is64 reports the optional header is PE32+; otherwise it is PE32.
	Is64 bool

	OptionalHeader32 ImageOptionalHeader32
	OptionalHeader64 ImageOptionalHeader64
	OptionalView     packed.View
}

// DataDirectories returns the 16-entry data directory array of whichever
// optional header width the image carries.
func (n NTHeaderDetails) DataDirectories() [16]DataDirectory {
	if n.Is64 {
		return n.OptionalHeader64.DataDirectory
	}
	return n.OptionalHeader32.DataDirectory
}

// ImageBase returns the preferred load address, widened to 64 bits
// regardless of the optional header's native width.
func (n NTHeaderDetails) ImageBase() uint64 {
	if n.Is64 {
		return n.OptionalHeader64.ImageBase
	}
	return uint64(n.OptionalHeader32.ImageBase)
}

// SizeOfImage returns the OptionalHeader's SizeOfImage field.
func (n NTHeaderDetails) SizeOfImage() uint32 {
	if n.Is64 {
		return n.OptionalHeader64.SizeOfImage
	}
	return n.OptionalHeader32.SizeOfImage
}

// SectionAlignment returns the OptionalHeader's SectionAlignment field.
func (n NTHeaderDetails) SectionAlignment() uint32 {
	if n.Is64 {
		return n.OptionalHeader64.SectionAlignment
	}
	return n.OptionalHeader32.SectionAlignment
}

// FileAlignment returns the OptionalHeader's FileAlignment field.
func (n NTHeaderDetails) FileAlignment() uint32 {
	if n.Is64 {
		return n.OptionalHeader64.FileAlignment
	}
	return n.OptionalHeader32.FileAlignment
}

// SizeOfHeaders returns the OptionalHeader's SizeOfHeaders field.
func (n NTHeaderDetails) SizeOfHeaders() uint32 {
	if n.Is64 {
		return n.OptionalHeader64.SizeOfHeaders
	}
	return n.OptionalHeader32.SizeOfHeaders
}

// ParseNTHeader parses the IMAGE_NT_HEADERS structure: the "PE\0\0"
// signature, the COFF file header, and the PE32 or PE32+ optional header,
// located at elfanew (the DOS header's AddressOfNewEXEHeader field).
//
// A bad signature or unsupported optional header magic leaves the image
// unusable and is returned as a plain error, not recorded on an errlist.
func ParseNTHeader(buf buffer.Buffer, elfanew uint32, allowVirtual bool) (NTHeaderDetails, error) {
	var n NTHeaderDetails

	sigBuf := make([]byte, 4)
	if _, err := buf.Read(uint64(elfanew), sigBuf); err != nil {
		return n, ErrInvalidFileHeader
	}
	n.Signature = uint32(sigBuf[0]) | uint32(sigBuf[1])<<8 | uint32(sigBuf[2])<<16 | uint32(sigBuf[3])<<24
	if n.Signature != ImageNTSignature {
		return n, ErrInvalidPESignature
	}

	fileHeaderOffset := uint64(elfanew) + 4
	fileView, err := packed.Deserialize(buf, fileHeaderOffset, &n.FileHeader, allowVirtual)
	if err != nil {
		return n, ErrInvalidFileHeader
	}
	n.FileView = fileView

	optHeaderOffset := fileHeaderOffset + fileView.PackedSize

	magicBuf := make([]byte, 2)
	if _, err := buf.Read(optHeaderOffset, magicBuf); err != nil {
		return n, ErrInvalidOptionalHeader
	}
	magic := uint16(magicBuf[0]) | uint16(magicBuf[1])<<8

	switch magic {
	case ImageNtOptionalHeader64Magic:
		view, err := packed.Deserialize(buf, optHeaderOffset, &n.OptionalHeader64, allowVirtual)
		if err != nil {
			return n, ErrInvalidOptionalHeader
		}
		n.Is64 = true
		n.OptionalView = view
	case ImageNtOptionalHeader32Magic:
		view, err := packed.Deserialize(buf, optHeaderOffset, &n.OptionalHeader32, allowVirtual)
		if err != nil {
			return n, ErrInvalidOptionalHeader
		}
		n.OptionalView = view
	default:
		return n, ErrInvalidOptionalHeader
	}

	if (n.Is64 && n.OptionalHeader64.ImageBase%0x10000 != 0) ||
		(!n.Is64 && n.OptionalHeader32.ImageBase%0x10000 != 0) {
		return n, ErrInvalidOptionalHeader
	}

	return n, nil
}
