package block

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitRecoversFramedBodies(t *testing.T) {
	bodies := [][]byte{
		{},
		[]byte("x"),
		[]byte("hello block"),
		bytes.Repeat([]byte{0xAB}, 4096),
	}

	for _, body := range bodies {
		got := Split(Frame(body))
		require.Len(t, got, 1)
		assert.Equal(t, body, got[0])
	}
}

func TestSplitWithoutEndMarker(t *testing.T) {
	body := []byte("no trailer")
	framed := Frame(body)
	framed = framed[:len(framed)-len(EndMarker)]

	got := Split(framed)
	require.Len(t, got, 1)
	assert.Equal(t, body, got[0])
}

func TestSplitMultipleBlocksAndTrailingBytes(t *testing.T) {
	var content []byte
	content = append(content, Frame([]byte("one"))...)
	content = append(content, Frame([]byte("two"))...)
	content = append(content, []byte("JUNKJUNK")...)

	got := Split(content)
	require.Len(t, got, 2)
	assert.Equal(t, "one", string(got[0]))
	assert.Equal(t, "two", string(got[1]))
}

func TestSplitStopsOnBadFrames(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"empty", nil},
		{"short", []byte("AOL")},
		{"wrong marker", []byte("XXXX\x10\x00\x00\x00abcdAOLF")},
		{"length below overhead", []byte("AOLH\x04\x00\x00\x00")},
		{"body past end", []byte("AOLH\xff\x00\x00\x00abc")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, Split(tt.content))
		})
	}
}

func TestParseSubItemsWidths(t *testing.T) {
	var body []byte
	body = Append(body, SubItem{ID: 1, Type: 1, Data: []byte{7}})
	body = Append(body, SubItem{ID: 2, Type: 2, Data: []byte{1, 2}})
	body = Append(body, SubItem{ID: 3, Type: 3, Data: []byte{3, 4}})
	body = Append(body, SubItem{ID: 4, Type: 4, Data: []byte{1, 2, 3, 4}})
	body = Append(body, SubItem{ID: 10, Type: 9, Data: []byte("Subject")})
	body = Append(body, SubItem{ID: 11, Type: 0, Data: nil})

	items, err := ParseSubItems(body)
	require.NoError(t, err)
	require.Len(t, items, 6)

	assert.Equal(t, SubItem{ID: 1, Type: 1, Data: []byte{7}}, items[0])
	assert.Equal(t, []byte{1, 2}, items[1].Data)
	assert.Equal(t, []byte{3, 4}, items[2].Data)
	assert.Equal(t, []byte{1, 2, 3, 4}, items[3].Data)
	assert.Equal(t, uint16(10), items[4].ID)
	assert.Equal(t, "Subject", string(items[4].Data))
	assert.Empty(t, items[5].Data)
}

func TestParseSubItemsTruncated(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"short header", []byte{1, 0}},
		{"fixed payload past end", []byte{1, 0, 4, 1, 2}},
		{"missing length field", []byte{1, 0, 9, 5, 0}},
		{"declared length past end", []byte{1, 0, 9, 0xff, 0xff, 0xff, 0xff, 'a'}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSubItems(tt.body)
			assert.ErrorIs(t, err, ErrTruncatedSubItem)
		})
	}
}

func TestParseSubItemsDoesNotReadNeighbours(t *testing.T) {
	backing := Append(nil, SubItem{ID: 1, Type: 9, Data: []byte("abcdef")})
	// The last payload byte exists in the backing array but not in the slice.
	visible := backing[:len(backing)-1]

	_, err := ParseSubItems(visible)
	assert.ErrorIs(t, err, ErrTruncatedSubItem)
}

func TestFirst(t *testing.T) {
	body := Append(nil, SubItem{ID: 1, Type: 2, Data: []byte{0, 0}})
	body = append(body, 0xff) // trailing garbage is ignored by First

	item, err := First(body)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), item.ID)
	assert.Equal(t, uint8(2), item.Type)
}

func TestDecode(t *testing.T) {
	content := Frame(Append(nil, SubItem{ID: 6, Type: 9, Data: []byte("a@x.com")}))
	content = append(content, Frame(Append(nil, SubItem{ID: 10, Type: 9, Data: []byte("Hi")}))...)

	blocks, err := Decode(content)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, "a@x.com", string(blocks[0][0].Data))
	assert.Equal(t, "Hi", string(blocks[1][0].Data))

	bad := Frame([]byte{1, 0, 9, 0xff, 0, 0, 0})
	_, err = Decode(bad)
	assert.ErrorIs(t, err, ErrTruncatedSubItem)
}
