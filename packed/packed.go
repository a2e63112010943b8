// Package packed implements a fixed-layout little-endian struct view bound
// to a buffer position, exposing the three-way packed/physical/data size
// split instead of silently truncating or erroring on a short read.
//
// Deserialize/Serialize operate through reflection over encoding/binary,
// generalized to read through a buffer.Buffer instead of a raw byte slice
// so the physical/virtual split is visible to the caller.
package packed

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"github.com/corvidre/pebliss/buffer"
)

// ErrInsufficientPhysicalBytes is returned by Deserialize when
// allowVirtual is false and fewer than the struct's packed size is
// physically present at the bind point.
var ErrInsufficientPhysicalBytes = errors.New("packed: insufficient physical bytes")

// View describes the three-way size split and bind point of a
// deserialized struct.
type View struct {
	// PackedSize is the sum of the struct's field widths.
	PackedSize uint64

	// PhysicalSize is min(PackedSize, bytes physically available at the
	// bind point).
	PhysicalSize uint64

	// DataSize is PackedSize when fully within the buffer's total size,
	// otherwise the portion that exists (physical plus any virtual
	// bytes actually consumed).
	DataSize uint64

	// AbsoluteOffset is the buffer's absolute position at bind time.
	AbsoluteOffset uint64
}

// FullyVirtual reports whether no physical bytes backed this view.
func (v View) FullyVirtual() bool { return v.PhysicalSize == 0 }

// Deserialize binds dst (a pointer to a fixed-layout struct of exported,
// fixed-width fields) to buf at pos, little-endian. If allowVirtual is
// false and fewer than the struct's packed size are physically available,
// it fails with ErrInsufficientPhysicalBytes instead of silently zero-
// filling. Otherwise any bytes beyond the buffer's physical size but
// within its total size are zero-extended.
func Deserialize(buf buffer.Buffer, pos uint64, dst interface{}, allowVirtual bool) (View, error) {
	packedSize := uint64(binary.Size(dst))
	total := buf.TotalSize()
	if pos > total {
		return View{}, buffer.ErrOutOfBounds
	}

	remaining := total - pos
	dataSize := packedSize
	if dataSize > remaining {
		dataSize = remaining
	}

	size := buf.Size()
	var physAvail uint64
	if pos < size {
		physAvail = size - pos
	}
	physicalSize := physAvail
	if physicalSize > dataSize {
		physicalSize = dataSize
	}

	if !allowVirtual && physicalSize < packedSize {
		return View{}, ErrInsufficientPhysicalBytes
	}

	raw := make([]byte, packedSize)
	if dataSize > 0 {
		if _, err := buf.ReadVirtual(pos, raw[:dataSize]); err != nil {
			return View{}, err
		}
	}

	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, dst); err != nil {
		return View{}, err
	}

	return View{
		PackedSize:     packedSize,
		PhysicalSize:   physicalSize,
		DataSize:       dataSize,
		AbsoluteOffset: buf.AbsoluteOffset() + pos,
	}, nil
}

// Serialize writes src's fields little-endian to w. If truncateToSize is
// non-negative, only that many leading bytes of the packed form are
// written (used to drop a virtual tail that was never physically
// present); a negative value writes the full packed size.
func Serialize(w io.Writer, src interface{}, truncateToSize int64) error {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, src); err != nil {
		return err
	}
	out := buf.Bytes()
	if truncateToSize >= 0 && int64(len(out)) > truncateToSize {
		out = out[:truncateToSize]
	}
	_, err := w.Write(out)
	return err
}

// Size returns the packed size in bytes of a struct value (or pointer to
// one) of fixed-width exported fields.
func Size(v interface{}) uint64 {
	return uint64(binary.Size(v))
}
