// Package block splits Filing Cabinet data records into their AOLH/AOLF
// framed blocks and decodes the tagged subitems inside each block body.
package block

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dhcgn/pfc-export/codec"
)

const (
	// StartMarker opens every block and every data record.
	StartMarker = "AOLH"
	// EndMarker closes a block. It is trimmed by the length arithmetic, never matched.
	EndMarker = "AOLF"

	// frameOverhead covers the start marker, the length field and the end marker.
	frameOverhead = 12
	headerSize    = 8
)

var startMarker = []byte(StartMarker)

// ErrTruncatedSubItem is returned when a subitem header or payload runs past its block.
var ErrTruncatedSubItem = errors.New("block: truncated subitem")

// Split returns the bodies of the framed blocks in content, in order.
// Scanning stops without error at the first position that does not hold a
// complete block; legacy records are known to carry trailing bytes.
func Split(content []byte) [][]byte {
	var blocks [][]byte
	pos := 0
	for pos+headerSize <= len(content) {
		if !bytes.Equal(content[pos:pos+4], startMarker) {
			break
		}
		length := int64(codec.Uint32Or(content, pos+4))
		if length < frameOverhead {
			break
		}
		bodyEnd := int64(pos) + headerSize + length - frameOverhead
		if bodyEnd > int64(len(content)) {
			break
		}

		body := make([]byte, bodyEnd-int64(pos+headerSize))
		copy(body, content[pos+headerSize:bodyEnd])
		blocks = append(blocks, body)

		next := int64(pos) + length
		if next > int64(len(content)) {
			break
		}
		pos = int(next)
	}
	return blocks
}

// Frame wraps body in a start marker, total length and end marker, the
// inverse of Split for a single block.
func Frame(body []byte) []byte {
	out := make([]byte, 0, len(body)+frameOverhead)
	out = append(out, startMarker...)
	n := uint32(len(body) + frameOverhead)
	out = append(out, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	out = append(out, body...)
	return append(out, EndMarker...)
}

// SubItem is one tagged field inside a block body.
type SubItem struct {
	ID   uint16
	Type uint8
	Data []byte
}

// String renders the subitem for debug logs.
func (s SubItem) String() string {
	return fmt.Sprintf("subitem id=%d type=%d len=%d", s.ID, s.Type, len(s.Data))
}

// payloadLayout returns where the payload starts relative to the header and
// how long it is. For variable types the length field is read from b.
func payloadLayout(b []byte, pos int, typ uint8) (offset int, length int64, err error) {
	switch typ {
	case 1:
		return 3, 1, nil
	case 2, 3:
		return 3, 2, nil
	case 4:
		return 3, 4, nil
	default:
		n, err := codec.Uint32(b, pos+3)
		if err != nil {
			return 0, 0, fmt.Errorf("length field at %d: %w", pos+3, ErrTruncatedSubItem)
		}
		return 7, int64(n), nil
	}
}

// ParseSubItems decodes every subitem in a block body, preserving order.
func ParseSubItems(body []byte) ([]SubItem, error) {
	var items []SubItem
	pos := 0
	for pos < len(body) {
		item, next, err := parseOne(body, pos)
		if err != nil {
			return items, err
		}
		items = append(items, item)
		pos = next
	}
	return items, nil
}

// First decodes only the leading subitem of a block body.
func First(body []byte) (SubItem, error) {
	item, _, err := parseOne(body, 0)
	return item, err
}

func parseOne(body []byte, pos int) (SubItem, int, error) {
	if len(body)-pos < 3 {
		return SubItem{}, pos, fmt.Errorf("header at %d: %w", pos, ErrTruncatedSubItem)
	}
	id := codec.Uint16Or(body, pos)
	typ := body[pos+2]

	offset, length, err := payloadLayout(body, pos, typ)
	if err != nil {
		return SubItem{}, pos, err
	}
	start := int64(pos + offset)
	end := start + length
	if end > int64(len(body)) {
		return SubItem{}, pos, fmt.Errorf("subitem %d declares %d bytes, %d remain: %w",
			id, length, int64(len(body))-start, ErrTruncatedSubItem)
	}

	data := make([]byte, length)
	copy(data, body[start:end])
	return SubItem{ID: id, Type: typ, Data: data}, int(end), nil
}

// Decode splits content into blocks and decodes the subitems of each block.
func Decode(content []byte) ([][]SubItem, error) {
	bodies := Split(content)
	out := make([][]SubItem, 0, len(bodies))
	for i, body := range bodies {
		items, err := ParseSubItems(body)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		out = append(out, items)
	}
	return out, nil
}

// Append encodes item onto dst using the fixed widths for types 1-4 and a
// length field for every other type. It is the inverse of ParseSubItems.
func Append(dst []byte, item SubItem) []byte {
	dst = append(dst, byte(item.ID), byte(item.ID>>8), item.Type)
	switch item.Type {
	case 1, 2, 3, 4:
	default:
		n := uint32(len(item.Data))
		dst = append(dst, byte(n), byte(n>>8), byte(n>>16), byte(n>>24))
	}
	return append(dst, item.Data...)
}
