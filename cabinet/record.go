package cabinet

import (
	"bytes"
	"strings"

	"github.com/dhcgn/pfc-export/block"
	"github.com/dhcgn/pfc-export/codec"
)

// EnvelopeSize is the content length of every envelope record.
const EnvelopeSize = 126

// Envelope field offsets.
const (
	offKind       = 0
	offFlagBits   = 2
	offMailFlags  = 14
	offLabel      = 18
	offLabelLimit = 98
	offData       = 106
	offNext       = 110
	offPrev       = 114
	offParent     = 118
	offChild      = 122
)

const (
	folderBit       = 0x0001
	systemFolderBit = 0x0100
)

// RecordType classifies a record.
type RecordType int

const (
	Unknown RecordType = iota
	Folder
	FavoriteEnvelope
	FileFolder
	FileEnvelope
	FlashEnvelope
	MailEnvelope
	AddressEnvelope
	GroupEnvelope
	PostEnvelope
	MailData
	AddressData
)

var recordTypeNames = map[RecordType]string{
	Unknown:          "unknown",
	Folder:           "folder",
	FavoriteEnvelope: "favorite",
	FileFolder:       "file-folder",
	FileEnvelope:     "file",
	FlashEnvelope:    "flash",
	MailEnvelope:     "mail",
	AddressEnvelope:  "address",
	GroupEnvelope:    "group",
	PostEnvelope:     "post",
	MailData:         "mail-data",
	AddressData:      "address-data",
}

func (t RecordType) String() string {
	if name, ok := recordTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// kindTypes maps the envelope kind code to a record type.
var kindTypes = map[uint16]RecordType{
	2:  FavoriteEnvelope,
	3:  FileFolder,
	4:  FileFolder,
	5:  FileEnvelope,
	6:  FileEnvelope,
	7:  MailEnvelope,
	8:  MailEnvelope,
	9:  FlashEnvelope,
	12: MailEnvelope,
	14: PostEnvelope,
	15: PostEnvelope,
	17: AddressEnvelope,
	18: GroupEnvelope,
	20: PostEnvelope,
}

// Flags are the mail status bits of an envelope.
type Flags uint8

const (
	FlagSeen Flags = 0x01
	FlagSent Flags = 0x04
)

// Has reports whether every bit of f2 is set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Index identifies a record by its position in the container. None marks an
// absent pointer.
type Index uint32

// None is the zero pointer.
const None Index = 0

// Pointers are the graph edges stored in an envelope.
type Pointers struct {
	Data   Index
	Next   Index
	Prev   Index
	Parent Index
	Child  Index
}

// Record is one decoded container entry. Records handed out by a Container
// are shared and must be treated as read-only.
type Record struct {
	Index        int
	Address      uint32
	Type         RecordType
	Envelope     bool
	Folder       bool
	SystemFolder bool
	Flags        Flags
	Pointers     Pointers

	content []byte
}

// DecodeRecord classifies raw record content. It never fails: fields that
// short content cannot supply are left at their zero value.
func DecodeRecord(content []byte) Record {
	rec := Record{content: content}

	switch {
	case bytes.HasPrefix(content, []byte(block.StartMarker)):
		rec.Type = sniffData(content)
	case len(content) == EnvelopeSize:
		decodeEnvelope(&rec, content)
	}

	return rec
}

// Offsets of the first subitem of the first block of a data record.
const (
	offSniffID   = 8
	offSniffType = 10
	offSniffData = 11
	sniffSize    = 13
)

// sniffData reads the first subitem header straight from the record bytes,
// without framing the block: id 1 holding a zero short marks mail, id 1 with
// a type 5 field marks an address.
func sniffData(content []byte) RecordType {
	if len(content) < sniffSize {
		return Unknown
	}
	if codec.Uint16Or(content, offSniffID) != 1 {
		return Unknown
	}
	switch content[offSniffType] {
	case 2:
		if codec.Uint16Or(content, offSniffData) == 0 {
			return MailData
		}
	case 5:
		return AddressData
	}
	return Unknown
}

func decodeEnvelope(rec *Record, content []byte) {
	rec.Envelope = true

	kind := codec.Uint16Or(content, offKind)
	bits := codec.Uint16Or(content, offFlagBits)

	if bits&folderBit != 0 {
		rec.Folder = true
		rec.Type = Folder
	}
	if bits&systemFolderBit != 0 {
		rec.SystemFolder = true
	}
	if t, ok := kindTypes[kind]; ok {
		rec.Type = t
	}

	rec.Flags = Flags(content[offMailFlags])
	rec.Pointers = Pointers{
		Data:   Index(codec.Uint32Or(content, offData)),
		Next:   Index(codec.Uint32Or(content, offNext)),
		Prev:   Index(codec.Uint32Or(content, offPrev)),
		Parent: Index(codec.Uint32Or(content, offParent)),
		Child:  Index(codec.Uint32Or(content, offChild)),
	}
}

// Content returns the raw record bytes. The slice is shared.
func (r *Record) Content() []byte {
	return r.content
}

// Len returns the raw content length.
func (r *Record) Len() int {
	return len(r.content)
}

// Outgoing reports whether a mail envelope is marked as sent.
func (r *Record) Outgoing() bool {
	return r.Flags.Has(FlagSent)
}

// Label returns the envelope label, or "" for data records.
func (r *Record) Label() string {
	if !r.Envelope {
		return ""
	}
	return cString(r.content, offLabel, len(r.content))
}

// Columns splits the envelope label into its tab separated display fields:
// date, from/to and subject for mail and file envelopes; name and email for
// addresses; the name alone for favorites and groups.
func (r *Record) Columns() []string {
	if !r.Envelope {
		return nil
	}
	label := cString(r.content, offLabel, offLabelLimit)

	switch r.Type {
	case MailEnvelope, FileEnvelope:
		return splitColumns(label, 3)
	case AddressEnvelope:
		return splitColumns(label, 2)
	case FavoriteEnvelope, GroupEnvelope:
		return []string{label}
	}
	return nil
}

func splitColumns(label string, n int) []string {
	cols := strings.SplitN(label, "\t", n)
	for len(cols) < n {
		cols = append(cols, "")
	}
	return cols
}

// cString returns the text from start up to a NUL or limit.
func cString(b []byte, start, limit int) string {
	if limit > len(b) {
		limit = len(b)
	}
	if start >= limit {
		return ""
	}
	field := b[start:limit]
	if i := bytes.IndexByte(field, 0); i >= 0 {
		field = field[:i]
	}
	return codec.Text(field)
}
