// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import "github.com/corvidre/pebliss/buffer"

// AddressMap translates between RVAs, file offsets, and section-local
// buffers over a fixed section table. Every lookup returns a typed
// sentinel error instead of a ^uint32(0) failure value, and
// RVAToBuffer hands back a buffer.Buffer that already carries
// the section's virtual-tail zero-fill.
type AddressMap struct {
	sections         []Section
	sectionAlignment uint32
	fileAlignment    uint32
	headers          buffer.Buffer
	sizeOfHeaders    uint32
}

// NewAddressMap builds an AddressMap over sections, given the image's
// section/file alignment and the raw header region (covering everything
// up to SizeOfHeaders, addressable at RVA 0 before the first section).
func NewAddressMap(sections []Section, sectionAlignment, fileAlignment, sizeOfHeaders uint32, headers buffer.Buffer) AddressMap {
	return AddressMap{
		sections:         sections,
		sectionAlignment: sectionAlignment,
		fileAlignment:    fileAlignment,
		headers:          headers,
		sizeOfHeaders:    sizeOfHeaders,
	}
}

func (m AddressMap) sectionFor(rva uint32) (Section, bool) {
	for _, s := range m.sections {
		size := s.Header.VirtualSize
		if size == 0 {
			size = s.Header.SizeOfRawData
		}
		size = alignUp(size, m.sectionAlignment)
		if rva >= s.Header.VirtualAddress && rva < s.Header.VirtualAddress+size {
			return s, true
		}
	}
	return Section{}, false
}

// RVAToFileOffset converts an RVA to an absolute file offset. RVAs inside
// the header region (below SizeOfHeaders, outside every section) map
// identity; RVAs inside a section map through PointerToRawData.
func (m AddressMap) RVAToFileOffset(rva uint32) (uint32, error) {
	if sec, ok := m.sectionFor(rva); ok {
		delta := rva - sec.Header.VirtualAddress
		return sec.Header.PointerToRawData + delta, nil
	}
	if rva < m.sizeOfHeaders {
		return rva, nil
	}
	return 0, ErrRVANotInImage
}

// FileOffsetToRVA converts an absolute file offset to an RVA.
func (m AddressMap) FileOffsetToRVA(offset uint32) (uint32, error) {
	for _, s := range m.sections {
		if offset >= s.Header.PointerToRawData && offset < s.Header.PointerToRawData+s.Header.SizeOfRawData {
			return s.Header.VirtualAddress + (offset - s.Header.PointerToRawData), nil
		}
	}
	if offset < m.sizeOfHeaders {
		return offset, nil
	}
	return 0, ErrOffsetNotInImage
}

// RVAToBuffer returns a Buffer over [rva, rva+size) of whichever section
// contains it, honoring that section's virtual-tail zero-fill. It fails
// with ErrRVARangeStraddlesSections if the range is not entirely
// contained within a single section (or the header region).
func (m AddressMap) RVAToBuffer(rva, size uint32) (buffer.Buffer, error) {
	if sec, ok := m.sectionFor(rva); ok {
		secSize := sec.Header.VirtualSize
		if secSize == 0 {
			secSize = sec.Header.SizeOfRawData
		}
		secSize = alignUp(secSize, m.sectionAlignment)
		delta := rva - sec.Header.VirtualAddress
		if uint64(delta)+uint64(size) > uint64(secSize) {
			return nil, ErrRVARangeStraddlesSections
		}
		if sec.Raw == nil {
			return buffer.NewMemory(nil), nil
		}
		return sec.Raw.Buffer().Slice(uint64(delta), uint64(size))
	}
	if m.headers != nil && rva < m.sizeOfHeaders {
		if uint64(rva)+uint64(size) > uint64(m.sizeOfHeaders) {
			return nil, ErrRVANotInImage
		}
		return m.headers.Slice(uint64(rva), uint64(size))
	}
	return nil, ErrRVANotInImage
}
