package content

import (
	"bytes"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflaterDecodesOnDrain(t *testing.T) {
	text := strings.Repeat("chunked deflate stream ", 500)
	var packed bytes.Buffer
	w, err := flate.NewWriter(&packed, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = w.Write([]byte(text))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	var f inflater
	data := packed.Bytes()
	for len(data) > 0 {
		n := min(3, len(data))
		f.feed(data[:n])
		data = data[n:]
	}

	out, err := f.drain()
	require.NoError(t, err)
	assert.Equal(t, text, string(out))

	out, err = f.drain()
	require.NoError(t, err)
	assert.Empty(t, out, "a second drain has nothing new")
}

func TestInflaterReportsCorruptStreamOnce(t *testing.T) {
	var f inflater
	f.feed([]byte{0xff, 0xff, 0xff})
	_, err := f.drain()
	require.Error(t, err)

	f.feed([]byte{0x00})
	out, err := f.drain()
	assert.NoError(t, err)
	assert.Empty(t, out)
}
