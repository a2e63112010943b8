// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"fmt"

	"github.com/corvidre/pebliss/errlist"
)

const (
	// DansSignature ('DanS' as a little-endian dword) marks the start
	// of the Rich region once decoded.
	DansSignature = 0x536E6144

	// RichSignature marks the end of the Rich region, in clear text.
	RichSignature = "Rich"

	dosHeaderSize = 64
	elfanewOffset = 0x3C
)

// CompID is one `@comp.id` record: a toolchain contribution to the
// binary, as recorded by the MSVC linker.
type CompID struct {
	// MinorCV is the minor compiler version.
	MinorCV uint16

	// ProdID identifies the tool (see ProductName).
	ProdID uint16

	// Count is how many times this tool contributed an object.
	Count uint32

	// Unmasked is the raw (decoded, still combined) first dword:
	// MinorCV | (ProdID << 16). Kept because the checksum algorithm
	// rotates this combined value, not its two halves separately.
	Unmasked uint32
}

// RichHeaderDetails is the decoded Rich header plus its error list.
type RichHeaderDetails struct {
	// XORKey is the checksum recovered from the file, used to mask
	// every preceding dword.
	XORKey uint32

	// CompIDs are the decoded toolchain records, in on-disk order.
	CompIDs []CompID

	// DansOffset is the absolute file offset of the "DanS" marker.
	DansOffset int

	// RichOffset is the absolute file offset of the "Rich" marker.
	RichOffset int

	// Raw is the on-disk (still masked) bytes from DansOffset through
	// the end of the checksum dword that follows "Rich".
	Raw []byte

	errlist.List
}

// IsValid reports whether a DanS marker was found and at least one
// CompID record was decoded.
func (r RichHeaderDetails) IsValid() bool {
	return r.DansOffset >= 0 && len(r.CompIDs) > 0
}

func rotl32(v, k uint32) uint32 {
	k %= 32
	if k == 0 {
		return v
	}
	return (v << k) | (v >> (32 - k))
}

// rotl32Byte rotates a single byte (widened to uint32) left within a
// 32-bit word. The "&0xff" mask on the wrap term looks unusual for a
// general rotate, but it is correct here: b only ever has its low 8 bits
// set, so the bits that wrap around from a 32-bit rotation of a
// byte-sized value never exceed a byte either.
func rotl32Byte(b uint32, i int) uint32 {
	k := uint32(i % 32)
	return (b << k) | ((b >> (32 - k)) & 0xff)
}

// DecodeRichHeader scans data (a whole PE file image) for a Rich header
// embedded in the DOS stub ending at elfanew. It returns found=false,
// with no error, when no "Rich" marker exists at all (e.g. most .NET
// binaries, whose linker never writes one).
func DecodeRichHeader(data []byte, elfanew uint32) (rh RichHeaderDetails, found bool, err error) {
	rh.DansOffset = -1

	if uint32(len(data)) < elfanew {
		return rh, false, nil
	}
	stub := data[:elfanew]
	richIdx := bytes.LastIndex(stub, []byte(RichSignature))
	if richIdx < 0 {
		return rh, false, nil
	}
	if richIdx+8 > len(data) {
		rh.List.Add(errlist.InvalidRichHeaderOffset, "Rich marker truncated")
		return rh, true, nil
	}

	rh.RichOffset = richIdx
	rh.XORKey = binary.LittleEndian.Uint32(data[richIdx+4 : richIdx+8])

	// Scan backwards in 4-byte steps from just before "Rich", XOR-ing
	// each dword with the checksum, until the decoded value is DanS.
	var decoded []uint32
	dansOffset := -1
	for pos := richIdx - 4; pos >= 0; pos -= 4 {
		dw := binary.LittleEndian.Uint32(data[pos : pos+4])
		dec := dw ^ rh.XORKey
		if dec == DansSignature {
			dansOffset = pos
			break
		}
		decoded = append(decoded, dec)
	}

	if dansOffset < 0 {
		rh.List.Add(errlist.MissingDansMarker, "")
		return rh, true, nil
	}
	rh.DansOffset = dansOffset
	rh.Raw = data[dansOffset : richIdx+8]

	// decoded was appended scanning backward; reverse it into file order.
	for i, j := 0, len(decoded)-1; i < j; i, j = i+1, j-1 {
		decoded[i], decoded[j] = decoded[j], decoded[i]
	}

	// The three dwords following DanS are padding, stored on disk as the
	// checksum itself (so they decode to zero).
	if len(decoded) < 3 || decoded[0] != 0 || decoded[1] != 0 || decoded[2] != 0 {
		rh.List.Add(errlist.InvalidRichHeaderOffset, "non-zero padding after DanS")
	}

	body := decoded
	if len(body) >= 3 {
		body = body[3:]
	}
	if len(body)%2 != 0 {
		rh.List.Add(errlist.MisalignedCompIDRegion, "")
		body = body[:len(body)-len(body)%2]
	}

	for i := 0; i+1 < len(body); i += 2 {
		rh.CompIDs = append(rh.CompIDs, CompID{
			MinorCV:  uint16(body[i] & 0xFFFF),
			ProdID:   uint16(body[i] >> 16),
			Count:    body[i+1],
			Unmasked: body[i],
		})
	}

	return rh, true, nil
}

// RichHeaderChecksum computes the checksum: the Rich region's file
// offset, plus a rotated sum over the DOS header (e_lfanew zeroed) and
// the leading stub bytes, plus a rotated sum over each CompID record.
func RichHeaderChecksum(data []byte, dansOffset int, compIDs []CompID) uint32 {
	checksum := uint32(dansOffset)

	for i := 0; i < dansOffset; i++ {
		if i >= elfanewOffset && i < elfanewOffset+4 {
			continue
		}
		b := uint32(data[i])
		checksum += rotl32Byte(b, i)
	}

	for _, c := range compIDs {
		checksum += rotl32(c.Unmasked, c.Count)
	}

	return checksum
}

// EncodeRichHeader re-serializes a Rich header into the bytes from the
// masked DanS marker through the checksum dword that follows "Rich". It
// adds no padding and does not align the result; placing the bytes in the
// stub is left to the caller. When recalculateChecksum
// is false, the original XORKey is reused and the byte-for-byte result
// reproduces the input; when true, the checksum is recomputed against
// data/dansOffset.
func EncodeRichHeader(data []byte, rh RichHeaderDetails, recalculateChecksum bool) []byte {
	checksum := rh.XORKey
	if recalculateChecksum {
		checksum = RichHeaderChecksum(data, rh.DansOffset, rh.CompIDs)
	}

	var out bytes.Buffer
	dword := make([]byte, 4)

	binary.LittleEndian.PutUint32(dword, uint32(DansSignature)^checksum)
	out.Write(dword)
	for i := 0; i < 3; i++ {
		binary.LittleEndian.PutUint32(dword, checksum)
		out.Write(dword)
	}
	for _, c := range rh.CompIDs {
		binary.LittleEndian.PutUint32(dword, c.Unmasked^checksum)
		out.Write(dword)
		binary.LittleEndian.PutUint32(dword, c.Count^checksum)
		out.Write(dword)
	}
	out.WriteString(RichSignature)
	binary.LittleEndian.PutUint32(dword, checksum)
	out.Write(dword)

	return out.Bytes()
}

// prodIDToName maps a CompID.ProdID to the MSVC-internal tool name it
// identifies. Not exhaustive: it holds a few early import/linker/cvtres
// ids plus the C and C++ compiler ids from Visual C++ 6 through Visual
// Studio 2015; any other id returns "".
var prodIDToName = map[uint16]string{
	0x0001: "Import0",
	0x0002: "Linker510",
	0x0004: "Linker600",
	0x0006: "Cvtres500",
	0x0009: "Utc12_Basic",
	0x000a: "Utc12_C",
	0x000b: "Utc12_CPP",
	0x0019: "Implib700",
	0x001c: "Utc13_C",
	0x001d: "Utc13_CPP",
	0x005a: "Utc1310_C",
	0x005b: "Utc1310_CPP",
	0x006d: "Utc1400_C",
	0x006e: "Utc1400_CPP",
	0x0083: "Utc1500_C",
	0x0084: "Utc1500_CPP",
	0x0098: "Utc1600_C",
	0x0099: "Utc1600_CPP",
	0x00b5: "Utc1610_C",
	0x00b6: "Utc1610_CPP",
	0x00c7: "Utc1700_C",
	0x00c8: "Utc1700_CPP",
	0x00d9: "Utc1800_C",
	0x00da: "Utc1800_CPP",
	0x00fd: "Utc1900_C",
	0x00fe: "Utc1900_CPP",
}

// ProductName maps a CompID.ProdID to the MSVC-internal tool name
// recorded in it, or "" when the id is outside the known range.
func ProductName(prodID uint16) string {
	if name, ok := prodIDToName[prodID]; ok {
		return name
	}
	return ""
}

// VisualStudioVersion maps a CompID.ProdID to the Visual Studio release
// whose toolchain produced it, or "" when the id is outside the known
// range.
func VisualStudioVersion(prodID uint16) string {
	switch {
	case prodID > 0x010e:
		return ""
	case prodID >= 0x00fd:
		return "Visual Studio 2015 14.00"
	case prodID >= 0x00eb:
		return "Visual Studio 2013 12.10"
	case prodID >= 0x00d9:
		return "Visual Studio 2013 12.00"
	case prodID >= 0x00c7:
		return "Visual Studio 2012 11.00"
	case prodID >= 0x00b5:
		return "Visual Studio 2010 10.10"
	case prodID >= 0x0098:
		return "Visual Studio 2010 10.00"
	case prodID >= 0x0083:
		return "Visual Studio 2008 09.00"
	case prodID >= 0x006d:
		return "Visual Studio 2005 08.00"
	case prodID >= 0x005a:
		return "Visual Studio 2003 07.10"
	case prodID == 1:
		return "Visual Studio"
	default:
		return ""
	}
}

// Hash returns the MD5 of the Rich region's cleartext (unmasked) bytes,
// a stable fingerprint of the toolchain mix independent of the checksum.
func (r RichHeaderDetails) Hash() string {
	if !r.IsValid() || len(r.Raw) < 8 {
		return ""
	}
	richIdx := bytes.Index(r.Raw, []byte(RichSignature))
	if richIdx < 0 {
		return ""
	}
	key := make([]byte, 4)
	binary.LittleEndian.PutUint32(key, r.XORKey)

	masked := r.Raw[:richIdx]
	clear := make([]byte, len(masked))
	for i, b := range masked {
		clear[i] = b ^ key[i%4]
	}
	return fmt.Sprintf("%x", md5.Sum(clear))
}
