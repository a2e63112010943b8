// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

// Executable format signatures.
const (
	// ImageDOSSignature is the "MZ" magic of a DOS MZ executable.
	ImageDOSSignature = 0x5A4D

	// ImageDOSZMSignature is the "ZM" magic accepted by some loaders.
	ImageDOSZMSignature = 0x4D5A

	// ImageNTSignature is "PE\x00\x00" read as a little-endian dword.
	ImageNTSignature = 0x00004550
)

// Optional header magic values.
const (
	ImageNtOptionalHeader32Magic = 0x10b
	ImageNtOptionalHeader64Magic = 0x20b
)

// Image file machine types (the subset the core cares about; the full
// Microsoft table is much larger and is out of scope here).
const (
	ImageFileMachineUnknown = uint16(0x0)
	ImageFileMachineI386    = uint16(0x14c)
	ImageFileMachineAMD64   = uint16(0x8664)
	ImageFileMachineARM     = uint16(0x1c0)
	ImageFileMachineARM64   = uint16(0xaa64)
	ImageFileMachineARMNT   = uint16(0x1c4)
	ImageFileMachineIA64    = uint16(0x200)
)

// ImageDirectoryEntry indexes the optional header's data-directory array.
type ImageDirectoryEntry int

// Data directory slots.
const (
	ImageDirectoryEntryExport ImageDirectoryEntry = iota
	ImageDirectoryEntryImport
	ImageDirectoryEntryResource
	ImageDirectoryEntryException
	ImageDirectoryEntryCertificate
	ImageDirectoryEntryBaseReloc
	ImageDirectoryEntryDebug
	ImageDirectoryEntryArchitecture
	ImageDirectoryEntryGlobalPtr
	ImageDirectoryEntryTLS
	ImageDirectoryEntryLoadConfig
	ImageDirectoryEntryBoundImport
	ImageDirectoryEntryIAT
	ImageDirectoryEntryDelayImport
	ImageDirectoryEntryCLR
	ImageDirectoryEntryReserved
	ImageNumberOfDirectoryEntries
)

var directoryEntryNames = map[ImageDirectoryEntry]string{
	ImageDirectoryEntryExport:       "Export",
	ImageDirectoryEntryImport:       "Import",
	ImageDirectoryEntryResource:     "Resource",
	ImageDirectoryEntryException:    "Exception",
	ImageDirectoryEntryCertificate:  "Security",
	ImageDirectoryEntryBaseReloc:    "Relocation",
	ImageDirectoryEntryDebug:        "Debug",
	ImageDirectoryEntryArchitecture: "Architecture",
	ImageDirectoryEntryGlobalPtr:    "GlobalPtr",
	ImageDirectoryEntryTLS:          "TLS",
	ImageDirectoryEntryLoadConfig:   "LoadConfig",
	ImageDirectoryEntryBoundImport:  "BoundImport",
	ImageDirectoryEntryIAT:          "IAT",
	ImageDirectoryEntryDelayImport:  "DelayImport",
	ImageDirectoryEntryCLR:          "CLR",
	ImageDirectoryEntryReserved:     "Reserved",
}

// String stringifies the data directory entry kind.
func (entry ImageDirectoryEntry) String() string {
	return directoryEntryNames[entry]
}

// TinyPESize is the smallest possible PE file size (Windows XP x86).
const TinyPESize = 97

// FileAlignmentHardcodedValue is the minimum PointerToRawData value below
// which loaders round the field to zero.
const FileAlignmentHardcodedValue = 0x200
