// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"math"
	"sort"
	"strings"

	"github.com/corvidre/pebliss/buffer"
	"github.com/corvidre/pebliss/errlist"
	"github.com/corvidre/pebliss/packed"
)

// Section characteristic flags, the subset commonly
// inspected by tooling; the full Microsoft table also defines a handful of
// reserved/obsolete bits this core has no use for.
const (
	ImageScnCntCode               = 0x00000020
	ImageScnCntInitializedData    = 0x00000040
	ImageScnCntUninitializedData  = 0x00000080
	ImageScnLnkInfo               = 0x00000200
	ImageScnLnkRemove             = 0x00000800
	ImageScnLnkComdat             = 0x00001000
	ImageScnGpRel                 = 0x00008000
	ImageScnMemDiscardable        = 0x02000000
	ImageScnMemNotCached          = 0x04000000
	ImageScnMemNotPaged           = 0x08000000
	ImageScnMemShared             = 0x10000000
	ImageScnMemExecute            = 0x20000000
	ImageScnMemRead               = 0x40000000
	ImageScnMemWrite              = 0x80000000
)

// ImageSectionHeader is one 40-byte row of the section table.
type ImageSectionHeader struct {
	Name                 [8]uint8
	VirtualSize          uint32
	VirtualAddress       uint32
	SizeOfRawData        uint32
	PointerToRawData     uint32
	PointerToRelocations uint32
	PointerToLineNumbers uint32
	NumberOfRelocations  uint16
	NumberOfLineNumbers  uint16
	Characteristics      uint32
}

// Section is a parsed section header, plus a RefBuffer over its raw data
// and the data's lazily computed Shannon entropy.
type Section struct {
	Header ImageSectionHeader
	Raw    *buffer.RefBuffer
}

// Name returns the section's null-trimmed 8-byte name.
func (s Section) Name() string {
	return strings.TrimRight(string(s.Header.Name[:]), "\x00")
}

// Entropy computes the Shannon entropy, in bits, of the section's raw
// physical bytes. An empty section has zero entropy.
func (s Section) Entropy() (float64, error) {
	if s.Raw == nil {
		return 0, nil
	}
	buf := s.Raw.Buffer()
	data := make([]byte, buf.Size())
	n, err := buf.Read(0, data)
	if err != nil {
		return 0, err
	}
	data = data[:n]
	if len(data) == 0 {
		return 0, nil
	}

	var frequencies [256]uint64
	for _, v := range data {
		frequencies[v]++
	}

	size := float64(len(data))
	var entropy float64
	for _, n := range frequencies {
		if n > 0 {
			freq := float64(n) / size
			entropy += freq * math.Log2(freq)
		}
	}
	return -entropy, nil
}

// Contains reports whether rva falls within this section's virtual
// extent.
func (s Section) Contains(rva uint32, sectionAlignment uint32) bool {
	size := s.Header.VirtualSize
	if size == 0 {
		size = s.Header.SizeOfRawData
	}
	size = alignUp(size, sectionAlignment)
	return rva >= s.Header.VirtualAddress && rva < s.Header.VirtualAddress+size
}

func alignUp(v, align uint32) uint32 {
	if align == 0 {
		return v
	}
	if v%align == 0 {
		return v
	}
	return v + (align - v%align)
}

// SectionTableDetails is the decoded section table plus its faults.
type SectionTableDetails struct {
	Sections []Section
	errlist.List
}

// ParseSectionTable reads numberOfSections consecutive ImageSectionHeader
// rows starting at offset, building each one's Raw buffer as a slice of
// buf (capturing the file's own virtual-tail semantics: SizeOfRawData
// physical bytes followed by zero-fill up to VirtualSize when the section
// is loaded).
func ParseSectionTable(buf buffer.Buffer, offset uint64, numberOfSections uint16, fileSize uint64, fileAlignment uint32, allowVirtual bool) (SectionTableDetails, error) {
	var d SectionTableDetails

	pos := offset
	for i := uint16(0); i < numberOfSections; i++ {
		var hdr ImageSectionHeader
		_, err := packed.Deserialize(buf, pos, &hdr, allowVirtual)
		if err != nil {
			return d, ErrInvalidSectionTable
		}
		pos += packed.Size(hdr)

		sec := Section{Header: hdr}
		name := sec.Name()

		if hdr.SizeOfRawData > 0 {
			rawEnd := uint64(hdr.PointerToRawData) + uint64(hdr.SizeOfRawData)
			if rawEnd > fileSize {
				d.List.Add(errlist.InvalidDirectorySize, "section `"+name+"` raw data extends past end of file")
			}
			rawBuf, err := buf.Slice(uint64(hdr.PointerToRawData), uint64(hdr.SizeOfRawData))
			if err == nil {
				if hdr.VirtualSize > hdr.SizeOfRawData {
					rawBuf = buffer.NewVirtualTail(rawBuf, uint64(hdr.VirtualSize-hdr.SizeOfRawData))
				}
				sec.Raw = buffer.NewReference(rawBuf)
			}
		} else if hdr.VirtualSize > 0 {
			empty, err := buf.Slice(uint64(hdr.PointerToRawData), 0)
			if err == nil {
				sec.Raw = buffer.NewReference(buffer.NewVirtualTail(empty, uint64(hdr.VirtualSize)))
			}
		}

		if fileAlignment != 0 && hdr.PointerToRawData%fileAlignment != 0 {
			d.List.Add(errlist.InvalidDirectorySize, "section `"+name+"` PointerToRawData is not a multiple of FileAlignment")
		}

		d.Sections = append(d.Sections, sec)
	}

	return d, nil
}

// SectionByRVA returns the section containing rva, or false if none does.
func (d SectionTableDetails) SectionByRVA(rva uint32, sectionAlignment uint32) (Section, bool) {
	for _, s := range d.Sections {
		if s.Contains(rva, sectionAlignment) {
			return s, true
		}
	}
	return Section{}, false
}

// SectionByName returns the first section whose name matches, or false.
func (d SectionTableDetails) SectionByName(name string) (Section, bool) {
	for _, s := range d.Sections {
		if s.Name() == name {
			return s, true
		}
	}
	return Section{}, false
}

// byVirtualAddress sorts sections by VirtualAddress, used to detect
// overlapping or out-of-order section layouts in malformed images.
type byVirtualAddress []Section

func (s byVirtualAddress) Len() int      { return len(s) }
func (s byVirtualAddress) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s byVirtualAddress) Less(i, j int) bool {
	return s[i].Header.VirtualAddress < s[j].Header.VirtualAddress
}

// SortedByVirtualAddress returns a copy of d.Sections sorted by
// VirtualAddress.
func (d SectionTableDetails) SortedByVirtualAddress() []Section {
	out := make([]Section, len(d.Sections))
	copy(out, d.Sections)
	sort.Sort(byVirtualAddress(out))
	return out
}
