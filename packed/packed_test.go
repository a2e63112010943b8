package packed

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidre/pebliss/buffer"
)

type sample struct {
	A uint16
	B uint32
}

func TestDeserializeRoundTrip(t *testing.T) {
	// Deserialize/Serialize round-trip when physical coverage equals
	// the packed size.
	raw := []byte{0x34, 0x12, 0xEF, 0xBE, 0xAD, 0xDE}
	buf := buffer.NewMemory(raw)

	var s sample
	view, err := Deserialize(buf, 0, &s, false)
	require.NoError(t, err)
	assert.EqualValues(t, 6, view.PackedSize)
	assert.EqualValues(t, 6, view.PhysicalSize)
	assert.False(t, view.FullyVirtual())
	assert.EqualValues(t, 0x1234, s.A)
	assert.EqualValues(t, 0xDEADBEEF, s.B)

	var out bytes.Buffer
	require.NoError(t, Serialize(&out, &s, -1))
	assert.Equal(t, raw, out.Bytes())
}

func TestDeserializeRejectsShortPhysicalWithoutVirtual(t *testing.T) {
	buf := buffer.NewMemory([]byte{0x01, 0x02, 0x03})
	var s sample
	_, err := Deserialize(buf, 0, &s, false)
	assert.ErrorIs(t, err, ErrInsufficientPhysicalBytes)
}

func TestDeserializeAllowsVirtualExtension(t *testing.T) {
	inner := buffer.NewMemory([]byte{0x01, 0x02, 0x03})
	buf := buffer.NewVirtualTail(inner, 4)

	var s sample
	view, err := Deserialize(buf, 0, &s, true)
	require.NoError(t, err)
	assert.EqualValues(t, 6, view.PackedSize)
	assert.EqualValues(t, 3, view.PhysicalSize)
	assert.EqualValues(t, 6, view.DataSize)
	assert.True(t, view.PhysicalSize < view.PackedSize)
	assert.False(t, view.FullyVirtual())
}

func TestDeserializeFullyVirtual(t *testing.T) {
	buf := buffer.NewVirtualTail(buffer.NewMemory(nil), 8)
	var s sample
	view, err := Deserialize(buf, 0, &s, true)
	require.NoError(t, err)
	assert.True(t, view.FullyVirtual())
	assert.EqualValues(t, 0, s.A)
	assert.EqualValues(t, 0, s.B)
}

func TestDeserializePastTotalSizeFails(t *testing.T) {
	buf := buffer.NewMemory([]byte{0x01, 0x02})
	var s sample
	_, err := Deserialize(buf, 10, &s, true)
	assert.ErrorIs(t, err, buffer.ErrOutOfBounds)
}

func TestSerializeTruncatesVirtualTail(t *testing.T) {
	s := sample{A: 0x1234, B: 0xDEADBEEF}
	var out bytes.Buffer
	require.NoError(t, Serialize(&out, &s, 2))
	assert.Equal(t, []byte{0x34, 0x12}, out.Bytes())
}
