package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySliceComposition(t *testing.T) {
	// Slice composition preserves absolute offset and caps size at what
	// the parent can actually provide.
	data := []byte("0123456789abcdef")
	root := NewMemory(data)

	s, err := root.Slice(4, 6)
	require.NoError(t, err)
	assert.EqualValues(t, 4, s.AbsoluteOffset())
	assert.EqualValues(t, 6, s.Size())

	// Slicing past the end caps physical size at what remains.
	tail, err := root.Slice(12, 100)
	require.NoError(t, err)
	assert.EqualValues(t, 4, tail.Size())
	assert.EqualValues(t, 12, tail.AbsoluteOffset())
	assert.EqualValues(t, 0, tail.VirtualSize())

	nested, err := s.Slice(2, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 6, nested.AbsoluteOffset())
}

func TestVirtualReadZeroFill(t *testing.T) {
	// ReadVirtual zero-fills for positions in [physical_size, total_size).
	data := []byte{1, 2, 3, 4}
	buf := NewVirtualTail(NewMemory(data), 8)
	require.EqualValues(t, 12, buf.TotalSize())

	out := make([]byte, 4)
	n, err := buf.ReadVirtual(4, out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0, 0, 0, 0}, out)

	// Straddling the physical/virtual boundary mixes real and zero
	// bytes.
	out2 := make([]byte, 4)
	n, err = buf.ReadVirtual(2, out2)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{3, 4, 0, 0}, out2)

	// Reading past total size fails.
	_, err = buf.ReadVirtual(13, make([]byte, 1))
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestReadPastPhysicalWithinTotalYieldsZero(t *testing.T) {
	buf := NewVirtualTail(NewMemory([]byte{0xAA}), 4)
	out := make([]byte, 2)
	n, err := buf.Read(1, out)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSliceIntoVirtualTail(t *testing.T) {
	buf := NewVirtualTail(NewMemory([]byte{1, 2, 3, 4}), 4)
	// Entirely inside the physical range.
	s, err := buf.Slice(0, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.Size())
	assert.EqualValues(t, 0, s.VirtualSize())

	// Straddling physical/virtual boundary.
	s, err = buf.Slice(2, 4)
	require.NoError(t, err)
	assert.EqualValues(t, 2, s.Size())
	assert.EqualValues(t, 2, s.VirtualSize())

	// Entirely inside the virtual extension.
	s, err = buf.Slice(5, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 0, s.Size())
	assert.EqualValues(t, 2, s.VirtualSize())
	assert.EqualValues(t, 5, s.AbsoluteOffset())
}

func TestRefBufferCopyOnDemand(t *testing.T) {
	root := NewMemory([]byte("hello world"))
	sliced, err := root.Slice(0, 5)
	require.NoError(t, err)

	ref := NewReference(sliced)
	assert.False(t, ref.IsOwned())

	owned, err := ref.CopyReferenced()
	require.NoError(t, err)
	assert.True(t, owned.IsOwned())

	data, err := ReadAll(owned.Buffer())
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestStreamBuffer(t *testing.T) {
	data := []byte("the quick brown fox")
	s := NewStream(byteReaderAt(data), uint64(len(data)))

	sliced, err := s.Slice(4, 5)
	require.NoError(t, err)
	out := make([]byte, 5)
	n, err := sliced.Read(0, out)
	require.NoError(t, err)
	assert.Equal(t, "quick", string(out[:n]))
	assert.EqualValues(t, 4, sliced.AbsoluteOffset())
}

type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off >= int64(len(b)) {
		return 0, nil
	}
	n := copy(p, b[off:])
	return n, nil
}
