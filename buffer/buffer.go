// Package buffer is the addressing substrate every loader in pebliss
// reads through: a polymorphic byte-buffer abstraction that separates a
// region's physical extent (bytes that really exist on disk or in
// memory) from its virtual extent (zero-filled bytes the PE loader
// contributes at load time), with zero-copy slicing that preserves
// absolute file position across slices.
//
// The closed family of variants (memory, container, stream, sliced,
// virtual-tail) is modeled as concrete types behind the Buffer interface
// rather than through reflection or an open plugin registry: every
// variant is a plain struct, so AbsoluteOffset and Slice never allocate
// more than the returned Buffer itself.
package buffer

import (
	"errors"
	"io"
)

// ErrOutOfBounds is returned by Read/ReadVirtual/Slice when pos exceeds
// the extent the call is allowed to address.
var ErrOutOfBounds = errors.New("buffer: read out of bounds")

// Buffer is a logical byte region addressable by the four properties below.
type Buffer interface {
	// Size is the physical size in bytes: data that really exists.
	Size() uint64

	// VirtualSize is the count of additional zero-bytes the loader
	// contributes beyond Size.
	VirtualSize() uint64

	// TotalSize is Size()+VirtualSize().
	TotalSize() uint64

	// AbsoluteOffset is this buffer's position in the root source
	// buffer, preserved across slicing.
	AbsoluteOffset() uint64

	// RelativeOffset is this buffer's position within its immediate
	// parent buffer (0 for a root buffer).
	RelativeOffset() uint64

	// Read copies min(len(p), Size()-pos) bytes starting at pos into p
	// and returns the count actually copied. It fails if pos > Size().
	Read(pos uint64, p []byte) (int, error)

	// ReadVirtual behaves like Read but additionally zero-fills bytes
	// in [Size(), TotalSize()). It fails only if pos > TotalSize().
	ReadVirtual(pos uint64, p []byte) (int, error)

	// Slice returns a Buffer over [pos, pos+length) of this buffer,
	// sharing the same absolute addressing origin. The physical extent
	// is capped at Size(); requested length past Size() but within
	// TotalSize() stays virtual, and length past TotalSize() is dropped.
	Slice(pos, length uint64) (Buffer, error)
}

// plain is the concrete variant shared by Memory and Container buffers:
// both are just a byte slice with virtual-tail, absolute- and
// relative-offset bookkeeping. They differ only in how the slice was
// obtained (externally owned vs a private copy), which is a construction
// detail, not a runtime behavior difference required by the interface.
type plain struct {
	data        []byte
	virtualSize uint64
	absOffset   uint64
	relOffset   uint64
}

// NewMemory wraps an externally-owned byte span without copying it. The
// caller must not mutate data while the Buffer (or any slice derived from
// it) is in use.
func NewMemory(data []byte) Buffer {
	return &plain{data: data}
}

// NewContainer copies data into a privately owned byte vector.
func NewContainer(data []byte) Buffer {
	owned := make([]byte, len(data))
	copy(owned, data)
	return &plain{data: owned}
}

func (b *plain) Size() uint64        { return uint64(len(b.data)) }
func (b *plain) VirtualSize() uint64 { return b.virtualSize }
func (b *plain) TotalSize() uint64   { return b.Size() + b.virtualSize }
func (b *plain) AbsoluteOffset() uint64 { return b.absOffset }
func (b *plain) RelativeOffset() uint64 { return b.relOffset }

func (b *plain) Read(pos uint64, p []byte) (int, error) {
	size := b.Size()
	if pos > size {
		return 0, ErrOutOfBounds
	}
	n := copy(p, b.data[pos:])
	return n, nil
}

func (b *plain) ReadVirtual(pos uint64, p []byte) (int, error) {
	total := b.TotalSize()
	if pos > total {
		return 0, ErrOutOfBounds
	}
	size := b.Size()
	n := 0
	if pos < size {
		n = copy(p, b.data[pos:])
	}
	if n < len(p) {
		// Zero-fill the virtual remainder, capped at total size.
		remaining := total - (pos + uint64(n))
		zeroLen := uint64(len(p) - n)
		if zeroLen > remaining {
			zeroLen = remaining
		}
		for i := uint64(0); i < zeroLen; i++ {
			p[n+int(i)] = 0
		}
		n += int(zeroLen)
	}
	return n, nil
}

func (b *plain) Slice(pos, length uint64) (Buffer, error) {
	total := b.TotalSize()
	if pos > total {
		return nil, ErrOutOfBounds
	}
	end := pos + length
	if end > total {
		end = total
	}
	size := b.Size()

	var physEnd uint64
	if end > size {
		physEnd = size
	} else {
		physEnd = end
	}
	var physStart uint64
	if pos > size {
		physStart = size
	} else {
		physStart = pos
	}

	sliceLen := physEnd - physStart
	out := &plain{
		data:        b.data[physStart : physStart+sliceLen],
		virtualSize: end - physEnd,
		absOffset:   b.absOffset + pos,
		relOffset:   pos,
	}
	return out, nil
}

// virtualTail decorates any Buffer, attaching additional zero-filled
// bytes past its existing total size. Used when a section's raw data is
// shorter than its declared virtual size: the physical bytes come from
// the inner Buffer, the extension is pure zero-fill.
type virtualTail struct {
	inner Buffer
	extra uint64
}

// NewVirtualTail attaches extra zero-bytes beyond inner's existing total
// size.
func NewVirtualTail(inner Buffer, extra uint64) Buffer {
	return &virtualTail{inner: inner, extra: extra}
}

func (v *virtualTail) Size() uint64          { return v.inner.Size() }
func (v *virtualTail) VirtualSize() uint64   { return v.inner.VirtualSize() + v.extra }
func (v *virtualTail) TotalSize() uint64     { return v.inner.TotalSize() + v.extra }
func (v *virtualTail) AbsoluteOffset() uint64 { return v.inner.AbsoluteOffset() }
func (v *virtualTail) RelativeOffset() uint64 { return v.inner.RelativeOffset() }

func (v *virtualTail) Read(pos uint64, p []byte) (int, error) {
	return v.inner.Read(pos, p)
}

func (v *virtualTail) ReadVirtual(pos uint64, p []byte) (int, error) {
	total := v.TotalSize()
	if pos > total {
		return 0, ErrOutOfBounds
	}
	if avail := total - pos; uint64(len(p)) > avail {
		p = p[:avail]
	}
	innerTotal := v.inner.TotalSize()
	if pos+uint64(len(p)) <= innerTotal {
		return v.inner.ReadVirtual(pos, p)
	}
	n := 0
	if pos < innerTotal {
		innerLen := innerTotal - pos
		if innerLen > uint64(len(p)) {
			innerLen = uint64(len(p))
		}
		var err error
		n, err = v.inner.ReadVirtual(pos, p[:innerLen])
		if err != nil {
			return n, err
		}
	}
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (v *virtualTail) Slice(pos, length uint64) (Buffer, error) {
	total := v.TotalSize()
	if pos > total {
		return nil, ErrOutOfBounds
	}
	end := pos + length
	if end > total {
		end = total
	}
	innerTotal := v.inner.TotalSize()
	if end <= innerTotal {
		return v.inner.Slice(pos, end-pos)
	}
	if pos >= innerTotal {
		// Entirely within the attached virtual extension: represent as
		// a zero-size plain buffer decorated with the right amount of
		// virtual tail, anchored at the right absolute offset.
		return &virtualTail{
			inner: &plain{
				data:      nil,
				absOffset: v.inner.AbsoluteOffset() + pos,
				relOffset: pos,
			},
			extra: end - pos,
		}, nil
	}
	innerPart, err := v.inner.Slice(pos, innerTotal-pos)
	if err != nil {
		return nil, err
	}
	return &virtualTail{inner: innerPart, extra: end - innerTotal}, nil
}

// Stream wraps an os-level seekable, readable source (typically a
// memory-mapped file via mmap-go, whose MMap type is itself a []byte) so
// large inputs can be addressed without a second, private copy. It reads
// on demand through io.ReaderAt rather than assuming the whole extent is
// resident, which is the behavioral difference from Memory/Container that
// earns it a distinct variant.
type Stream struct {
	r           io.ReaderAt
	size        uint64
	virtualSize uint64
	absOffset   uint64
	relOffset   uint64
}

// NewStream wraps r, which is assumed to expose exactly size physical
// bytes starting at absolute position 0.
func NewStream(r io.ReaderAt, size uint64) *Stream {
	return &Stream{r: r, size: size}
}

func (s *Stream) Size() uint64          { return s.size }
func (s *Stream) VirtualSize() uint64   { return s.virtualSize }
func (s *Stream) TotalSize() uint64     { return s.size + s.virtualSize }
func (s *Stream) AbsoluteOffset() uint64 { return s.absOffset }
func (s *Stream) RelativeOffset() uint64 { return s.relOffset }

func (s *Stream) Read(pos uint64, p []byte) (int, error) {
	if pos > s.size {
		return 0, ErrOutOfBounds
	}
	avail := s.size - pos
	want := uint64(len(p))
	if want > avail {
		want = avail
	}
	if want == 0 {
		return 0, nil
	}
	n, err := s.r.ReadAt(p[:want], int64(s.relOffset+pos))
	if err != nil && err != io.EOF {
		return n, err
	}
	return n, nil
}

func (s *Stream) ReadVirtual(pos uint64, p []byte) (int, error) {
	total := s.TotalSize()
	if pos > total {
		return 0, ErrOutOfBounds
	}
	if avail := total - pos; uint64(len(p)) > avail {
		p = p[:avail]
	}
	n := 0
	if pos < s.size {
		var err error
		n, err = s.Read(pos, p)
		if err != nil {
			return n, err
		}
	}
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func (s *Stream) Slice(pos, length uint64) (Buffer, error) {
	total := s.TotalSize()
	if pos > total {
		return nil, ErrOutOfBounds
	}
	end := pos + length
	if end > total {
		end = total
	}
	var physEnd, physStart uint64
	if end > s.size {
		physEnd = s.size
	} else {
		physEnd = end
	}
	if pos > s.size {
		physStart = s.size
	} else {
		physStart = pos
	}
	return &Stream{
		r:           s.r,
		size:        physEnd - physStart,
		virtualSize: end - physEnd,
		absOffset:   s.absOffset + pos,
		relOffset:   s.relOffset + physStart,
	}, nil
}

// ReadAll materializes the full total extent of buf (physical bytes
// followed by zero-filled virtual bytes) into a new owned byte slice.
// Used by RefBuffer.CopyReferenced and by callers that need a plain
// []byte to hand to an external API (e.g. image/png decoding an icon's
// resource payload).
func ReadAll(buf Buffer) ([]byte, error) {
	total := buf.TotalSize()
	out := make([]byte, total)
	if total == 0 {
		return out, nil
	}
	n, err := buf.ReadVirtual(0, out)
	if err != nil {
		return nil, err
	}
	return out[:n], nil
}
