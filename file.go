// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package pebliss

import (
	"os"
	"time"

	mmap "github.com/edsrzf/mmap-go"

	"github.com/corvidre/pebliss/buffer"
	"github.com/corvidre/pebliss/log"
	"github.com/corvidre/pebliss/resource"
)

// Options configures parsing.
type Options struct {
	// Fast parses only the headers and section table, skipping data
	// directories (resource tree, certificate table).
	Fast bool

	// AllowVirtualData permits deserializing a packed struct whose
	// declared size extends past the buffer's physical bytes, treating
	// the shortfall as loader zero-fill instead of an error. Headers read
	// from an on-disk file should leave this false; a buffer that already
	// represents a loaded (virtual) image should set it true.
	AllowVirtualData bool

	// MaxResourceEntries caps how many directory entries one resource
	// table level will read before giving up, guarding against a
	// NumberOfNamedEntries+NumberOfIDEntries value engineered to exhaust
	// memory. Zero uses the package default.
	MaxResourceEntries uint32

	// Logger receives structured parse diagnostics. Defaults to a
	// filtered stdout logger at LevelError.
	Logger log.Logger
}

// Image is a parsed PE/COFF executable.
type Image struct {
	DOSHeader       DOSHeaderDetails
	RichHeader      RichHeaderDetails
	RichHeaderFound bool
	NTHeader        NTHeaderDetails
	Sections        SectionTableDetails
	Resources       *resource.Directory
	Certificates    CertificateTableDetails
	Anomalies       []string
	AddressMap      AddressMap

	buf    buffer.Buffer
	data   mmap.MMap
	f      *os.File
	opts   *Options
	logger *log.Helper
}

func newOptions(opts *Options) *Options {
	if opts == nil {
		return &Options{}
	}
	o := *opts
	return &o
}

func newLogger(opts *Options) *log.Helper {
	if opts.Logger != nil {
		return log.NewHelper(opts.Logger)
	}
	stdLogger := log.NewStdLogger(os.Stdout)
	return log.NewHelper(log.NewFilter(stdLogger, log.FilterLevel(log.LevelError)))
}

// Open memory-maps name and returns an unparsed Image; call Parse to
// decode it.
func Open(name string, opts *Options) (*Image, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}

	data, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, err
	}

	img := &Image{
		opts: newOptions(opts),
		data: data,
		f:    f,
	}
	img.logger = newLogger(img.opts)
	img.buf = buffer.NewMemory([]byte(data))
	return img, nil
}

// NewBytes wraps an in-memory image, without copying data. The caller
// must not mutate data while the returned Image is in use.
func NewBytes(data []byte, opts *Options) (*Image, error) {
	img := &Image{opts: newOptions(opts)}
	img.logger = newLogger(img.opts)
	img.buf = buffer.NewMemory(data)
	return img, nil
}

// Close releases the memory mapping (if any) and the underlying file
// handle opened by Open. It is a no-op for an Image built with NewBytes.
func (img *Image) Close() error {
	if img.data != nil {
		_ = img.data.Unmap()
	}
	if img.f != nil {
		return img.f.Close()
	}
	return nil
}

// Parse decodes the DOS header, Rich header, NT header, and section
// table, then (unless Options.Fast) the resource tree and certificate
// table. A fault in the DOS header, NT header or section table leaves the
// image unusable and is returned as a plain error. A Rich header that
// fails to decode is logged and left unset, and parsing continues. A data
// directory that fails to parse is logged and left unset, and parsing
// continues with the remaining directories.
func (img *Image) Parse() error {
	if img.buf.Size() < TinyPESize {
		return ErrInvalidPESize
	}

	dos, err := ParseDOSHeader(img.buf, img.opts.AllowVirtualData)
	if err != nil {
		return err
	}
	img.DOSHeader = dos

	rh, found, err := DecodeRichHeader(mustReadAll(img.buf), dos.Header.AddressOfNewEXEHeader)
	if err != nil {
		img.logger.Errorf("rich header parsing failed: %v", err)
	} else {
		img.RichHeader = rh
		img.RichHeaderFound = found
	}

	nt, err := ParseNTHeader(img.buf, dos.Header.AddressOfNewEXEHeader, img.opts.AllowVirtualData)
	if err != nil {
		return err
	}
	img.NTHeader = nt

	sectionOffset := uint64(dos.Header.AddressOfNewEXEHeader) + 4 + nt.FileView.PackedSize + nt.OptionalView.PackedSize
	sections, err := ParseSectionTable(img.buf, sectionOffset, nt.FileHeader.NumberOfSections,
		img.buf.Size(), nt.FileAlignment(), img.opts.AllowVirtualData)
	if err != nil {
		return err
	}
	img.Sections = sections

	headers, err := img.buf.Slice(0, uint64(nt.SizeOfHeaders()))
	if err == nil {
		img.AddressMap = NewAddressMap(sections.Sections, nt.SectionAlignment(), nt.FileAlignment(), nt.SizeOfHeaders(), headers)
	} else {
		img.AddressMap = NewAddressMap(sections.Sections, nt.SectionAlignment(), nt.FileAlignment(), nt.SizeOfHeaders(), img.buf)
	}

	img.Anomalies = Anomalies(nt, uint32(time.Now().Unix()))

	if img.opts.Fast {
		return nil
	}

	dirs := nt.DataDirectories()

	if d := dirs[ImageDirectoryEntryResource]; d.VirtualAddress != 0 {
		dir, err := resource.Parse(img.AddressMap, d.VirtualAddress, d.Size, img.opts.MaxResourceEntries)
		if err != nil {
			img.logger.Warnf("resource directory parsing failed: %v", err)
		} else {
			img.Resources = dir
		}
	}

	if d := dirs[ImageDirectoryEntryCertificate]; d.VirtualAddress != 0 {
		certs, err := ParseCertificateTable(img.buf, d.VirtualAddress, d.Size)
		if err != nil {
			img.logger.Warnf("certificate table parsing failed: %v", err)
		} else {
			img.Certificates = certs
		}
	}

	return nil
}

func mustReadAll(buf buffer.Buffer) []byte {
	data, err := buffer.ReadAll(buf)
	if err != nil {
		return nil
	}
	return data
}
