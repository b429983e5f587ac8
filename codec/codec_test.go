package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUint32LittleEndian(t *testing.T) {
	b := []byte{0xff, 0x78, 0x56, 0x34, 0x12}

	v, err := Uint32(b, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), v)
}

func TestUint16LittleEndian(t *testing.T) {
	v, err := Uint16([]byte{0x34, 0x12}, 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), v)
}

func TestOutOfRange(t *testing.T) {
	tests := []struct {
		name string
		fn   func() error
	}{
		{"uint32 short", func() error { _, err := Uint32([]byte{1, 2, 3}, 0); return err }},
		{"uint32 past end", func() error { _, err := Uint32([]byte{1, 2, 3, 4}, 1); return err }},
		{"uint32 negative", func() error { _, err := Uint32([]byte{1, 2, 3, 4}, -1); return err }},
		{"uint16 short", func() error { _, err := Uint16([]byte{1}, 0); return err }},
		{"uint16 past end", func() error { _, err := Uint16([]byte{1, 2}, 2); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.fn(), ErrOutOfRange)
		})
	}
}

func TestOrDefaults(t *testing.T) {
	assert.Equal(t, uint32(0), Uint32Or([]byte{1, 2}, 0))
	assert.Equal(t, uint16(0), Uint16Or(nil, 4))
	assert.Equal(t, uint16(0x0201), Uint16Or([]byte{1, 2}, 0))
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "000000ff", Hex(0xff, 8))
	assert.Equal(t, "5678", Hex(0x12345678, 4))
	assert.Equal(t, "   42", PadInt(42, 5))
	assert.Equal(t, "12345", PadInt(12345, 3))
}

func TestTextWindows1252(t *testing.T) {
	assert.Equal(t, "plain ascii", Text([]byte("plain ascii")))
	assert.Equal(t, "café “q”", Text([]byte{'c', 'a', 'f', 0xe9, ' ', 0x93, 'q', 0x94}))
}

func TestLegacy(t *testing.T) {
	assert.Equal(t, []byte{'c', 'a', 'f', 0xe9}, Legacy("café"))
	assert.Equal(t, []byte("a\x1ab"), Legacy("a☃b"))
	assert.Equal(t, "café “q”", Text(Legacy("café “q”")))
}
