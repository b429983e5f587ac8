package content_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/pfc-export/block"
	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/cabinet/cabinettest"
	"github.com/dhcgn/pfc-export/content"
)

func addressRecord() []byte {
	return cabinettest.Data([]block.SubItem{
		{ID: 1, Type: 5, Data: []byte("Jane")},
		cabinettest.Str(2, "Doe"),
		cabinettest.Str(3, "jane@example.com"),
		cabinettest.Str(4, "met at the fair"),
	})
}

func TestParseAddress(t *testing.T) {
	a, err := content.ParseAddress(addressRecord())
	require.NoError(t, err)

	assert.Equal(t, "Jane", a.FirstName())
	assert.Equal(t, "Jane", a.LastName(), "LastName mirrors the first name")
	assert.Equal(t, "Doe", a.Surname())
	assert.Equal(t, "jane@example.com", a.Email())
	assert.Equal(t, "met at the fair", a.Remarks())
	assert.Equal(t, "First Name: Jane\nLast Name: Doe", a.Summary())
	assert.Equal(t, "jane@example.com", a.Text())
}

func TestParseGroup(t *testing.T) {
	tests := []struct {
		name   string
		emails string
		want   []string
	}{
		{"terminated", "a@x.com\r\nb@y.com\r\n", []string{"a@x.com", "b@y.com"}},
		{"trailing fragment", "a@x.com\r\nb@y.com", []string{"a@x.com", "b@y.com"}},
		{"single", "a@x.com", []string{"a@x.com"}},
		{"empty entry", "a@x.com\r\n\r\nb@y.com", []string{"a@x.com", "", "b@y.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := cabinettest.Data([]block.SubItem{
				cabinettest.Str(1, "g\x00"),
				cabinettest.Str(2, tt.emails),
			})
			g, err := content.ParseGroup(raw)
			require.NoError(t, err)
			assert.Equal(t, "g", g.Name)
			assert.Equal(t, tt.want, g.Emails)
		})
	}
}

func TestGroupText(t *testing.T) {
	g := &content.AddressGroup{Name: "g", Emails: []string{"a@x.com", "b@y.com"}}
	assert.Equal(t, "Group Name: g\n", g.Summary())
	assert.Equal(t, "a@x.com\nb@y.com\n", g.Text())
}

func TestParseFavorite(t *testing.T) {
	assert.Equal(t, "http://example.com/", content.ParseFavorite([]byte("http://example.com/\x00\x01\x02")).URL)
	assert.Equal(t, "http://example.com/", content.ParseFavorite([]byte("http://example.com/")).URL)
	assert.Equal(t, "", content.ParseFavorite(nil).URL)
}

func TestReconstructDispatch(t *testing.T) {
	b := cabinettest.New()
	b.Add(nil)
	root := b.Add(nil)
	mailEnv := b.Add(nil)
	mailData := b.Add(cabinettest.Data([]block.SubItem{cabinettest.MailMarker(), cabinettest.Str(10, "Hi")}))
	favEnv := b.Add(nil)
	favData := b.Add([]byte("http://example.com/\x00"))
	addrData := b.Add(addressRecord())
	folderEnv := b.Add(nil)

	b.Set(root, cabinettest.Envelope{Folder: true, Label: "root", Child: mailEnv}.Bytes())
	b.Set(mailEnv, cabinettest.Envelope{Kind: 7, Data: mailData, Next: favEnv, Parent: root}.Bytes())
	b.Set(favEnv, cabinettest.Envelope{Kind: 2, Data: favData, Parent: root}.Bytes())
	b.Set(folderEnv, cabinettest.Envelope{Folder: true}.Bytes())

	raw := b.Bytes()
	c, err := cabinet.Read(context.Background(), bytes.NewReader(raw), int64(len(raw)), cabinet.Options{})
	require.NoError(t, err)

	env, err := c.Record(int(mailEnv))
	require.NoError(t, err)
	v, err := content.Load(c, env)
	require.NoError(t, err)
	require.IsType(t, &content.MailMessage{}, v)
	assert.Equal(t, "Hi", v.(*content.MailMessage).Subject)

	msg, err := content.LoadMail(c, env)
	require.NoError(t, err)
	assert.Equal(t, "Hi", msg.Subject)

	data, err := c.Record(int(mailData))
	require.NoError(t, err)
	msg, err = content.LoadMail(c, data)
	require.NoError(t, err)
	assert.Equal(t, "Hi", msg.Subject)

	fav, err := c.Record(int(favEnv))
	require.NoError(t, err)
	v, err = content.Load(c, fav)
	require.NoError(t, err)
	assert.Equal(t, &content.Favorite{URL: "http://example.com/"}, v)

	_, err = content.LoadMail(c, fav)
	require.ErrorIs(t, err, content.ErrUnsupported)

	addr, err := c.Record(int(addrData))
	require.NoError(t, err)
	v, err = content.Reconstruct(nil, addr)
	require.NoError(t, err)
	require.IsType(t, &content.AddressEntry{}, v)

	folder, err := c.Record(int(folderEnv))
	require.NoError(t, err)
	_, err = content.Load(c, folder)
	require.ErrorIs(t, err, content.ErrNoData)

	_, err = content.Reconstruct(nil, nil)
	require.ErrorIs(t, err, content.ErrNoData)

	_, err = content.Reconstruct(folder, addr)
	require.ErrorIs(t, err, content.ErrUnsupported)
}
