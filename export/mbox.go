package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/content"
)

// AsctimeLayout is the date layout of Eudora TOC entries.
const AsctimeLayout = "Mon Jan 02 15:04:05 2006"

// mboxSender is the envelope sender written to every From line.
const mboxSender = "-"

// Mbox writes mail messages to a single Unix mbox file. The folder
// structure is flattened.
type Mbox struct {
	path string
	file *os.File
	size int64
}

// NewMbox returns an mbox exporter writing to path. The file is created by
// Open and truncated if it exists.
func NewMbox(path string) *Mbox {
	return &Mbox{path: path}
}

// Path returns the mbox file path.
func (m *Mbox) Path() string {
	return m.path
}

// Size returns the number of bytes written so far.
func (m *Mbox) Size() int64 {
	return m.size
}

func (m *Mbox) Exportable(env *cabinet.Record) bool {
	return env != nil && env.Type == cabinet.MailEnvelope && env.Pointers.Data != cabinet.None
}

func (m *Mbox) Open() error {
	file, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("create mbox: %w", err)
	}
	m.file = file
	m.size = 0
	return nil
}

func (m *Mbox) OpenFolder(*cabinet.Record) error  { return nil }
func (m *Mbox) CloseFolder(*cabinet.Record) error { return nil }

func (m *Mbox) Export(env, data *cabinet.Record) error {
	_, err := m.export(data)
	return err
}

// export appends the mail in data and returns the parsed message.
func (m *Mbox) export(data *cabinet.Record) (*content.MailMessage, error) {
	msg, err := content.ParseMail(data.Content())
	if err != nil {
		return nil, &RecordError{Index: data.Index, Err: err}
	}
	if err := m.write(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (m *Mbox) write(msg *content.MailMessage) error {
	if m.file == nil {
		return fmt.Errorf("mbox %s: not open", m.path)
	}

	raw, err := MboxEntry(msg)
	if err != nil {
		return err
	}
	n, err := m.file.Write(raw)
	m.size += int64(n)
	if err != nil {
		return fmt.Errorf("write mbox: %w", err)
	}
	return nil
}

func (m *Mbox) Close() error {
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil
	if err != nil {
		return fmt.Errorf("close mbox: %w", err)
	}
	return nil
}

// MboxEntry renders msg as one complete mbox entry: the From line, the
// stored or synthesized header, an optional attachment line and the
// readable body.
func MboxEntry(msg *content.MailMessage) ([]byte, error) {
	date, ok := msg.Date()
	if !ok {
		date = time.Unix(0, 0).UTC()
	}

	var buf bytes.Buffer
	w := mboxlib.NewWriter(&buf)
	mw, err := w.CreateMessage(mboxSender, date)
	if err != nil {
		return nil, fmt.Errorf("create mbox entry: %w", err)
	}

	header := msg.Header()
	if !strings.HasSuffix(header, "\n") {
		header += "\n"
	}
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	if msg.HasAttachment() {
		b.WriteString("[" + msg.Attachment + "]\n")
	}
	b.WriteString(msg.BodyText())
	b.WriteString("\n")

	if _, err := io.WriteString(mw, b.String()); err != nil {
		return nil, fmt.Errorf("write mbox entry: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close mbox entry: %w", err)
	}
	return buf.Bytes(), nil
}

// asctime formats the message date for TOC entries, or returns the raw date
// string when it cannot be parsed.
func asctime(msg *content.MailMessage) (string, time.Time) {
	if t, ok := msg.Date(); ok {
		return t.Format(AsctimeLayout), t
	}
	return msg.DateString, time.Time{}
}
