// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"github.com/corvidre/pebliss/buffer"
	"github.com/corvidre/pebliss/errlist"
	"github.com/corvidre/pebliss/packed"
	"go.mozilla.org/pkcs7"
)

// WIN_CERTIFICATE revision values.
const (
	WinCertRevision1_0 = 0x0100
	WinCertRevision2_0 = 0x0200
)

// WIN_CERTIFICATE certificate-type values.
const (
	WinCertTypeX509           = 0x0001
	WinCertTypePKCSSignedData = 0x0002
)

// WinCertificate is the fixed header preceding each entry in the
// certificate table: the IMAGE_DIRECTORY_ENTRY_CERTIFICATE data
// directory's VirtualAddress is, unusually, a raw file offset rather
// than an RVA.
type WinCertificate struct {
	Length          uint32
	Revision        uint16
	CertificateType uint16
}

// CertificateEntry is one WIN_CERTIFICATE table row: its header plus the
// still-undecoded PKCS#7 SignedData blob that follows it. Signature
// verification is out of scope; Decode parses the blob's ASN.1 structure
// far enough to expose cert.Accessor's surface, and nothing more.
type CertificateEntry struct {
	Header WinCertificate
	Raw    []byte
}

// Decode parses e.Raw as a PKCS#7 SignedData structure. It performs no
// trust-chain or signature verification; callers that need verification
// should use the returned *pkcs7.PKCS7's own Verify method directly and
// own that decision themselves.
func (e CertificateEntry) Decode() (*pkcs7.PKCS7, error) {
	return pkcs7.Parse(e.Raw)
}

// CertificateTableDetails is the decoded certificate table.
type CertificateTableDetails struct {
	Entries []CertificateEntry
	errlist.List
}

// ParseCertificateTable reads consecutive WIN_CERTIFICATE entries
// starting at fileOffset (the certificate data directory's
// VirtualAddress, interpreted as a file offset) through fileOffset+size.
// Each entry is 8-byte aligned, per the Microsoft PE/COFF specification.
func ParseCertificateTable(buf buffer.Buffer, fileOffset, size uint32) (CertificateTableDetails, error) {
	var d CertificateTableDetails

	pos := uint64(fileOffset)
	end := uint64(fileOffset) + uint64(size)

	for pos < end {
		var hdr WinCertificate
		view, err := packed.Deserialize(buf, pos, &hdr, false)
		if err != nil {
			d.List.Add(errlist.InvalidDirectorySize, "certificate table entry header truncated")
			break
		}
		if hdr.Length < uint32(view.PackedSize) {
			d.List.Add(errlist.InvalidDirectorySize, "certificate entry length smaller than its own header")
			break
		}

		payloadLen := uint64(hdr.Length) - view.PackedSize
		payloadBuf, err := buf.Slice(pos+view.PackedSize, payloadLen)
		if err != nil {
			d.List.Add(errlist.InvalidDirectorySize, "certificate entry payload out of bounds")
			break
		}
		raw, err := buffer.ReadAll(payloadBuf)
		if err != nil {
			break
		}

		d.Entries = append(d.Entries, CertificateEntry{Header: hdr, Raw: raw})

		entryLen := uint64(hdr.Length)
		if pad := entryLen % 8; pad != 0 {
			entryLen += 8 - pad
		}
		pos += entryLen
	}

	return d, nil
}
