// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import "errors"

// Fatal header faults: these leave the image
// fundamentally unusable, so the loader returns them as plain errors
// instead of recording them on an errlist.List.
var (
	// ErrInvalidPESize is returned when the input is smaller than the
	// smallest possible PE file.
	ErrInvalidPESize = errors.New("not a PE file: smaller than the tiny PE size")

	// ErrDOSMagicNotFound is returned when the DOS header magic is
	// neither "MZ" nor "ZM".
	ErrDOSMagicNotFound = errors.New("dos header magic not found")

	// ErrUnalignedElfanew is returned when e_lfanew is not 4-byte
	// aligned.
	ErrUnalignedElfanew = errors.New("unaligned e_lfanew")

	// ErrInvalidElfanew is returned when e_lfanew is out of the
	// [4, 10 MiB] range, or points past the input.
	ErrInvalidElfanew = errors.New("invalid e_lfanew value")

	// ErrInvalidPESignature is returned when the 4 bytes at e_lfanew are
	// not "PE\x00\x00".
	ErrInvalidPESignature = errors.New("invalid PE signature")

	// ErrInvalidFileHeader is returned when the PE signature or the COFF
	// file header cannot be read.
	ErrInvalidFileHeader = errors.New("invalid COFF file header")

	// ErrInvalidOptionalHeader is returned when the optional header
	// cannot be read, when its magic is neither PE32 (0x10b) nor PE32+
	// (0x20b), or when its ImageBase is not a multiple of 64 KiB.
	ErrInvalidOptionalHeader = errors.New("invalid optional header magic")

	// ErrInvalidSectionTable is returned when the section table cannot
	// be read in full.
	ErrInvalidSectionTable = errors.New("invalid section table")

	// ErrRVANotInImage is returned when no section (nor the headers
	// region, if included) covers a requested RVA.
	ErrRVANotInImage = errors.New("rva not in image")

	// ErrOffsetNotInImage is returned when no section covers a
	// requested file offset.
	ErrOffsetNotInImage = errors.New("file offset not in image")

	// ErrRVARangeStraddlesSections is returned when a requested
	// [rva, rva+size) range is not entirely contained in one section.
	ErrRVARangeStraddlesSections = errors.New("rva range straddles sections")
)
