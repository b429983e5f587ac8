package convert_test

import (
	"bytes"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/cabinet/cabinettest"
	"github.com/dhcgn/pfc-export/content"
	"github.com/dhcgn/pfc-export/convert"
)

func readBack(t *testing.T, raw []byte) (*mail.Reader, string) {
	t.Helper()
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	return mr, string(body)
}

func TestRenderPlain(t *testing.T) {
	msg := &content.MailMessage{
		DateString: "12/2/01",
		From:       "a@x.com",
		To:         "b@y.com, c@y.com",
		Subject:    "Hi",
		Body:       "line one<BR>line &amp; two",
	}
	raw, err := convert.Render(msg, "1.abc@"+convert.MessageIDDomain)
	require.NoError(t, err)

	mr, body := readBack(t, raw)

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Hi", subject)

	from, err := mr.Header.AddressList("From")
	require.NoError(t, err)
	require.Len(t, from, 1)
	assert.Equal(t, "a@x.com", from[0].Address)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	assert.Len(t, to, 2)

	date, err := mr.Header.Date()
	require.NoError(t, err)
	assert.True(t, date.Equal(time.Date(2001, 12, 2, 0, 0, 0, 0, time.UTC)))

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.Equal(t, "1.abc@"+convert.MessageIDDomain, id)

	assert.Equal(t, "line one\nline & two", strings.ReplaceAll(body, "\r\n", "\n"))
}

func TestRenderScreenNameAndHTML(t *testing.T) {
	msg := &content.MailMessage{
		From:       "Buddy Name",
		DateString: "whenever",
		Subject:    "html",
		Body:       "<html><b>x</b><BR></html>",
		Attachment: "file.zip",
	}
	raw, err := convert.Render(msg, "2.def@"+convert.MessageIDDomain)
	require.NoError(t, err)

	mr, body := readBack(t, raw)
	assert.Equal(t, "Buddy Name", mr.Header.Get("From"))
	assert.Equal(t, "whenever", mr.Header.Get("X-Pfc-Date"))
	assert.Equal(t, "file.zip", mr.Header.Get("X-Pfc-Attachment"))

	ct, _, err := mr.Header.ContentType()
	require.NoError(t, err)
	assert.Equal(t, "text/html", ct)
	assert.Contains(t, body, "[file.zip]")
	assert.Contains(t, body, "<html><b>x</b><BR></html>")
}

func TestMessageIsStable(t *testing.T) {
	rec := cabinet.DecodeRecord(cabinettest.Envelope{Kind: 7, Flags: cabinet.FlagSeen}.Bytes())
	rec.Index = 42
	msg := &content.MailMessage{DateString: "12/2/01", From: "a@x.com", Subject: "Hi", Body: "b"}

	first, err := convert.Message(&rec, msg, "Inbox")
	require.NoError(t, err)
	second, err := convert.Message(&rec, msg, "Inbox")
	require.NoError(t, err)

	assert.Equal(t, "pfc-42", first.ID)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Raw, second.Raw)
	assert.True(t, first.Seen)
	assert.Equal(t, "Inbox", first.Folder)
	assert.Equal(t, int64(len(first.Raw)), first.Size)
	assert.True(t, first.ReceivedAt.Equal(time.Date(2001, 12, 2, 0, 0, 0, 0, time.UTC)))

	msg.Subject = "changed"
	third, err := convert.Message(&rec, msg, "Inbox")
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, third.Hash)
}

func TestMessageUnseen(t *testing.T) {
	rec := cabinet.DecodeRecord(cabinettest.Envelope{Kind: 7}.Bytes())
	msg := &content.MailMessage{Subject: "x"}

	out, err := convert.Message(&rec, msg, "")
	require.NoError(t, err)
	assert.False(t, out.Seen)
	assert.True(t, out.ReceivedAt.IsZero())
}
