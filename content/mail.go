package content

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dhcgn/pfc-export/block"
	"github.com/dhcgn/pfc-export/codec"
)

// HeaderLine separates the body from the full header in Text output.
const HeaderLine = "----------------------- Headers --------------------------------"

// Mail subitem ids.
const (
	idCheck      = 3
	idDate       = 5
	idFrom       = 6
	idTo         = 7
	idCc         = 8
	idBcc        = 9
	idSubject    = 10
	idScreenName = 11
	idReplyTo    = 16
	idRecipient  = 17
)

// Extended types of mail id 13 subitems.
const (
	extLegacyText  extType = 0
	extAttachment  extType = 1
	extV7Header    extType = 5
	extV7Body      extType = 256
	extV7Start     extType = 257
	extV7End       extType = 260
	attachmentSkip         = 14
	v7LineBreak            = 0x7f
)

var (
	headerMarker    = []byte("----- Headers -----")
	headerMarkerEnd = []byte("-----\r\n")
)

// MailMessage is a mail item rebuilt from its data record.
type MailMessage struct {
	Check      []byte
	DateString string
	From       string
	To         string
	Cc         string
	Bcc        string
	Subject    string
	ScreenName string
	ReplyTo    string
	Recipient  string
	Attachment string
	Body       string

	// EmbeddedHeader is the header text stored with the message, if any.
	EmbeddedHeader string
}

// ParseMail rebuilds a mail message from data record content. A subitem
// overrunning its block fails the whole record with block.ErrTruncatedSubItem.
func ParseMail(content []byte) (*MailMessage, error) {
	p := &mailParser{first: true}
	if err := dispatch(content, p); err != nil {
		return nil, fmt.Errorf("mail: %w", err)
	}
	p.flush()

	m := &p.msg
	m.Body = p.body.String()
	m.EmbeddedHeader = p.header.String()
	if m.From == "" {
		m.From = m.ScreenName
	}
	return m, nil
}

type mailParser struct {
	msg    MailMessage
	body   strings.Builder
	header strings.Builder

	v7        bool
	oldHeader bool
	first     bool
	inflate   inflater
}

func (p *mailParser) standard(item block.SubItem) {
	m := &p.msg
	switch item.ID {
	case idCheck:
		m.Check = item.Data
	case idDate:
		m.DateString = text(item.Data)
	case idFrom:
		m.From = text(item.Data)
	case idTo:
		m.To = text(item.Data)
	case idCc:
		m.Cc = text(item.Data)
	case idBcc:
		m.Bcc = text(item.Data)
	case idSubject:
		m.Subject = text(item.Data)
	case idScreenName:
		m.ScreenName = text(item.Data)
	case idReplyTo:
		m.ReplyTo = text(item.Data)
	case idRecipient:
		m.Recipient = text(item.Data)
	}
}

func (p *mailParser) extended(t extType, item block.SubItem) {
	data := item.Data
	switch t {
	case extLegacyText:
		if p.v7 {
			return
		}
		if i := bytes.Index(data, headerMarker); i >= 0 {
			// Once the separator is seen the rest of the record is header.
			p.oldHeader = true
			if j := bytes.Index(data[i:], headerMarkerEnd); j >= 0 {
				p.header.WriteString(codec.Text(data[i+j+len(headerMarkerEnd):]))
			}
			return
		}
		if p.oldHeader {
			p.header.WriteString(codec.Text(data))
			return
		}
		p.flush()
		p.body.WriteString(codec.Text(data))

	case extAttachment:
		p.msg.Attachment = ""
		if len(data) > attachmentSkip {
			p.msg.Attachment = text(data[attachmentSkip:])
		}

	case extV7Header:
		p.header.WriteString(strings.ReplaceAll(codec.Text(data), string(rune(v7LineBreak)), "\n"))

	case extV7Body:
		// The first compressed chunk of a record is a placeholder.
		if p.first {
			p.first = false
			return
		}
		p.inflate.feed(data)

	case extV7Start:
		p.v7 = true

	case extV7End:
		p.v7 = false
		p.flush()
	}
}

// flush appends the compressed body collected so far.
func (p *mailParser) flush() {
	out, err := p.inflate.drain()
	p.body.WriteString(codec.Text(out))
	if err != nil {
		p.body.WriteString("\n[decompression failed: " + err.Error() + "]")
	}
}

// HasAttachment reports whether the message names an attachment.
func (m *MailMessage) HasAttachment() bool {
	return m.Attachment != ""
}

// IsHTML reports whether the body contains an <html> tag.
func (m *MailMessage) IsHTML() bool {
	return strings.Contains(strings.ToLower(m.Body), "<html>")
}

// Header returns the embedded header, or a Date/To/From/Subject block built
// from the message fields when none was stored.
func (m *MailMessage) Header() string {
	if strings.TrimSpace(m.EmbeddedHeader) != "" {
		return m.EmbeddedHeader
	}

	var b strings.Builder
	b.WriteString("Date: " + m.HeaderDate() + "\n")
	b.WriteString("To: " + m.To + "\n")
	b.WriteString("From: " + m.From + "\n")
	b.WriteString("Subject: " + m.Subject + "\n")
	return b.String()
}

// HeaderDate formats the message date for a mail header, or returns the raw
// date string when it cannot be parsed.
func (m *MailMessage) HeaderDate() string {
	if t, ok := m.Date(); ok {
		return t.Format(HeaderDateLayout)
	}
	return m.DateString
}

// Summary returns the short head shown next to a message list.
func (m *MailMessage) Summary(outgoing bool) string {
	var b strings.Builder
	b.WriteString("Date: " + m.DateString + "\n")
	if outgoing {
		b.WriteString("To: " + m.To + "\n")
	} else {
		b.WriteString("From: " + m.From + "\n")
	}
	b.WriteString("Subject: " + m.Subject + "\n")
	if m.HasAttachment() {
		b.WriteString("Attachment: " + m.Attachment)
	}
	return b.String()
}

// Text returns the readable body, optionally followed by the full header.
func (m *MailMessage) Text(showHeader bool) string {
	var b strings.Builder
	b.WriteString(m.BodyText())
	b.WriteString("\n")
	if showHeader {
		b.WriteString("\n")
		b.WriteString(HeaderLine + "\n")
		b.WriteString(m.Header())
		b.WriteString("\n")
	}
	return b.String()
}
