// Package convert renders rebuilt cabinet mail as RFC 5322 messages.
package convert

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-message/mail"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/content"
	"github.com/dhcgn/pfc-export/model"
)

// MessageIDDomain is the right hand side of generated Message-Id values.
const MessageIDDomain = "pfc-export.invalid"

// ID returns the stable upload id of a cabinet record.
func ID(rec *cabinet.Record) string {
	return fmt.Sprintf("pfc-%d", rec.Index)
}

// Render writes msg as a single part RFC 5322 message. HTML bodies are kept
// as text/html; everything else goes out as text/plain with <BR> and
// entities resolved.
func Render(msg *content.MailMessage, messageID string) ([]byte, error) {
	var h mail.Header
	if t, ok := msg.Date(); ok {
		h.SetDate(t)
	} else if msg.DateString != "" {
		h.SetText("X-PFC-Date", msg.DateString)
	}
	setAddresses(&h, "From", msg.From)
	setAddresses(&h, "To", msg.To)
	setAddresses(&h, "Cc", msg.Cc)
	setAddresses(&h, "Bcc", msg.Bcc)
	setAddresses(&h, "Reply-To", msg.ReplyTo)
	h.SetSubject(msg.Subject)
	h.SetMessageID(messageID)
	if msg.HasAttachment() {
		h.SetText("X-PFC-Attachment", msg.Attachment)
	}

	body := msg.BodyText()
	contentType := "text/plain"
	if msg.IsHTML() {
		body = msg.Body
		contentType = "text/html"
	}
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create message writer: %w", err)
	}
	if msg.HasAttachment() {
		if _, err := io.WriteString(w, "["+msg.Attachment+"]\r\n"); err != nil {
			return nil, fmt.Errorf("write attachment line: %w", err)
		}
	}
	if _, err := io.WriteString(w, body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// Message renders the mail behind rec for upload. rec is the mail envelope
// when one is known, otherwise the data record itself; its flags decide the
// seen state.
func Message(rec *cabinet.Record, msg *content.MailMessage, folder string) (model.Message, error) {
	id := ID(rec)
	raw, err := Render(msg, messageID(rec, msg))
	if err != nil {
		return model.Message{}, fmt.Errorf("render %s: %w", id, err)
	}

	sum := sha256.Sum256(raw)
	out := model.Message{
		ID:     id,
		Hash:   base64.StdEncoding.EncodeToString(sum[:]),
		Folder: folder,
		Seen:   rec.Envelope && (rec.Flags.Has(cabinet.FlagSeen) || rec.Outgoing()),
		Size:   int64(len(raw)),
		Raw:    raw,
	}
	if t, ok := msg.Date(); ok {
		out.ReceivedAt = t
	}
	return out, nil
}

// messageID derives a Message-Id from the record index and the message
// fields so that rerenders of the same record agree.
func messageID(rec *cabinet.Record, msg *content.MailMessage) string {
	h := sha256.New()
	for _, s := range []string{msg.DateString, msg.From, msg.To, msg.Subject, msg.Body} {
		io.WriteString(h, s)
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%d.%s@%s", rec.Index, hex.EncodeToString(h.Sum(nil)[:8]), MessageIDDomain)
}

// setAddresses writes an address header. AOL screen names are not valid
// addresses and are written as plain text instead.
func setAddresses(h *mail.Header, key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	if addrs, err := mail.ParseAddressList(value); err == nil && len(addrs) > 0 {
		h.SetAddressList(key, addrs)
		return
	}
	h.SetText(key, value)
}
