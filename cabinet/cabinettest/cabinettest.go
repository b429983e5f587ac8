// Package cabinettest builds synthetic Filing Cabinet files for tests.
package cabinettest

import (
	"encoding/binary"

	"github.com/dhcgn/pfc-export/block"
	"github.com/dhcgn/pfc-export/cabinet"
)

const indexStart = 32

// Envelope describes a 126-byte envelope record.
type Envelope struct {
	Kind   uint16
	Folder bool
	System bool
	Flags  cabinet.Flags
	Label  string

	Data   cabinet.Index
	Next   cabinet.Index
	Prev   cabinet.Index
	Parent cabinet.Index
	Child  cabinet.Index
}

// Bytes encodes the envelope.
func (e Envelope) Bytes() []byte {
	b := make([]byte, cabinet.EnvelopeSize)
	binary.LittleEndian.PutUint16(b[0:], e.Kind)
	var bits uint16
	if e.Folder {
		bits |= 0x0001
	}
	if e.System {
		bits |= 0x0100
	}
	binary.LittleEndian.PutUint16(b[2:], bits)
	b[14] = byte(e.Flags)
	copy(b[18:105], e.Label)
	binary.LittleEndian.PutUint32(b[106:], uint32(e.Data))
	binary.LittleEndian.PutUint32(b[110:], uint32(e.Next))
	binary.LittleEndian.PutUint32(b[114:], uint32(e.Prev))
	binary.LittleEndian.PutUint32(b[118:], uint32(e.Parent))
	binary.LittleEndian.PutUint32(b[122:], uint32(e.Child))
	return b
}

// Data encodes a data record: one framed block per subitem list.
func Data(blocks ...[]block.SubItem) []byte {
	var out []byte
	for _, items := range blocks {
		var body []byte
		for _, item := range items {
			body = block.Append(body, item)
		}
		out = append(out, block.Frame(body)...)
	}
	return out
}

// Str is a variable length subitem holding s.
func Str(id uint16, s string) block.SubItem {
	return block.SubItem{ID: id, Type: 9, Data: []byte(s)}
}

// Short is a type 2 subitem holding v.
func Short(id uint16, v uint16) block.SubItem {
	return block.SubItem{ID: id, Type: 2, Data: []byte{byte(v), byte(v >> 8)}}
}

// MailMarker is the leading subitem that classifies a data record as mail.
func MailMarker() block.SubItem {
	return Short(1, 0)
}

// Builder lays out a cabinet file. Record i is the i-th Add call.
type Builder struct {
	contents [][]byte
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Add appends a record and returns its index. A nil content adds an empty slot.
func (b *Builder) Add(content []byte) cabinet.Index {
	b.contents = append(b.contents, content)
	return cabinet.Index(len(b.contents) - 1)
}

// Set replaces the content of record idx.
func (b *Builder) Set(idx cabinet.Index, content []byte) {
	b.contents[idx] = content
}

// Bytes encodes the cabinet. The index lives at offset 32 and the records
// follow it in order.
func (b *Builder) Bytes() []byte {
	n := len(b.contents)
	indexLength := 4 + 4*n
	recordsStart := indexStart + 12 + 4*n
	if recordsStart < indexStart+20 {
		recordsStart = indexStart + 20
	}

	out := make([]byte, recordsStart)
	copy(out, cabinet.Identity)
	binary.LittleEndian.PutUint32(out[16:], indexStart)
	binary.LittleEndian.PutUint32(out[indexStart+4:], uint32(indexLength))
	binary.LittleEndian.PutUint32(out[indexStart+8:], uint32(n))

	for i, content := range b.contents {
		if content == nil {
			continue
		}
		addr := len(out)
		binary.LittleEndian.PutUint32(out[indexStart+12+4*i:], uint32(addr))

		header := make([]byte, 8)
		binary.LittleEndian.PutUint32(header[4:], uint32(len(content)))
		out = append(out, header...)
		out = append(out, content...)
	}
	return out
}
