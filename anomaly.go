// Copyright 2021 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

// Heuristic anomalies: traits that do not stop the Windows loader from
// running the image, but are unusual enough to be worth surfacing to a
// malware analyst.
const (
	AnoPETimeStampNull                = "file header timestamp set to 0"
	AnoPETimeStampFuture              = "file header timestamp set in the future"
	AnoNumberOfSections10Plus         = "number of sections is 10+"
	AnoNumberOfSectionsNull           = "number of sections is 0"
	AnoSizeOfOptionalHeaderNull       = "size of optional header is 0"
	AnoAddressOfEntryPointNull        = "address of entry point is 0"
	AnoAddressOfEPLessSizeOfHeaders   = "address of entry point is smaller than size of headers"
	AnoImageBaseNull                  = "image base is 0"
	AnoImageBaseOverflow              = "image base plus size of image overflows the address space"
	AnoInvalidSizeOfImage             = "size of image is not a multiple of section alignment"
	AnoMajorSubsystemVersion          = "major subsystem version is outside the 3-6 boundary"
	AnoWin32VersionValue              = "win32 version value is a reserved field, must be zero"
	AnoNumberOfRvaAndSizes            = "number of rva and sizes is different than 16"
	AnoReservedDataDirectoryEntry     = "last data directory entry is reserved, must be zero"
)

// Anomalies inspects a parsed NT header (and, for the timestamp checks,
// is given the current Unix time explicitly since this package never
// calls time.Now() itself - callers own wall-clock access, keeping the
// analysis pure and reproducible in tests) and returns the heuristic
// anomalies it finds. Unlike errlist faults, these never prevent the
// loader from running the image.
func Anomalies(nt NTHeaderDetails, nowUnix uint32) []string {
	var out []string

	fh := nt.FileHeader
	if fh.NumberOfSections >= 10 {
		out = append(out, AnoNumberOfSections10Plus)
	}
	if fh.NumberOfSections == 0 {
		out = append(out, AnoNumberOfSectionsNull)
	}
	if fh.TimeDateStamp == 0 {
		out = append(out, AnoPETimeStampNull)
	} else if fh.TimeDateStamp > nowUnix+86400 {
		out = append(out, AnoPETimeStampFuture)
	}
	if fh.SizeOfOptionalHeader == 0 {
		out = append(out, AnoSizeOfOptionalHeaderNull)
	}

	entryPoint := nt.OptionalHeader32.AddressOfEntryPoint
	sizeOfHeaders := nt.OptionalHeader32.SizeOfHeaders
	sectionAlignment := nt.OptionalHeader32.SectionAlignment
	sizeOfImage := nt.OptionalHeader32.SizeOfImage
	majorSubsystem := nt.OptionalHeader32.MajorSubsystemVersion
	win32VersionValue := nt.OptionalHeader32.Win32VersionValue
	numberOfRvaAndSizes := nt.OptionalHeader32.NumberOfRvaAndSizes
	if nt.Is64 {
		entryPoint = nt.OptionalHeader64.AddressOfEntryPoint
		sizeOfHeaders = nt.OptionalHeader64.SizeOfHeaders
		sectionAlignment = nt.OptionalHeader64.SectionAlignment
		sizeOfImage = nt.OptionalHeader64.SizeOfImage
		majorSubsystem = nt.OptionalHeader64.MajorSubsystemVersion
		win32VersionValue = nt.OptionalHeader64.Win32VersionValue
		numberOfRvaAndSizes = nt.OptionalHeader64.NumberOfRvaAndSizes
	}

	if entryPoint == 0 {
		out = append(out, AnoAddressOfEntryPointNull)
	} else if entryPoint < sizeOfHeaders {
		out = append(out, AnoAddressOfEPLessSizeOfHeaders)
	}
	if nt.ImageBase() == 0 {
		out = append(out, AnoImageBaseNull)
	}
	if sectionAlignment != 0 && sizeOfImage%sectionAlignment != 0 {
		out = append(out, AnoInvalidSizeOfImage)
	}
	if majorSubsystem < 3 || majorSubsystem > 6 {
		out = append(out, AnoMajorSubsystemVersion)
	}
	if win32VersionValue != 0 {
		out = append(out, AnoWin32VersionValue)
	}
	if numberOfRvaAndSizes != 16 {
		out = append(out, AnoNumberOfRvaAndSizes)
	}

	dirs := nt.DataDirectories()
	if dirs[ImageDirectoryEntryReserved].VirtualAddress != 0 || dirs[ImageDirectoryEntryReserved].Size != 0 {
		out = append(out, AnoReservedDataDirectoryEntry)
	}

	return out
}
