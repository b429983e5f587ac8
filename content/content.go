// Package content rebuilds mail messages, address book entries, address
// groups and favorites from the raw data records of a cabinet.
package content

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dhcgn/pfc-export/block"
	"github.com/dhcgn/pfc-export/cabinet"
	"github.com/dhcgn/pfc-export/codec"
)

var (
	// ErrUnsupported is returned for record types without a content decoder.
	ErrUnsupported = errors.New("content: unsupported record type")
	// ErrNoData is returned when an envelope carries no data record.
	ErrNoData = errors.New("content: envelope has no data record")
)

// Subitem ids shared by every block encoded record.
const (
	idExtType = 12
	idExtData = 13
)

// extType is the extended type announced by an id 12 subitem. It applies to
// the next id 13 subitem of the same block only.
type extType int32

const extNone extType = -1

// handler consumes the subitems of one record.
type handler interface {
	// standard receives every subitem with a non-empty payload.
	standard(item block.SubItem)
	// extended receives every id 13 subitem with the pending extended type.
	extended(t extType, item block.SubItem)
}

func dispatch(content []byte, h handler) error {
	blocks, err := block.Decode(content)
	if err != nil {
		return err
	}
	for _, items := range blocks {
		pending := extNone
		for _, item := range items {
			if len(item.Data) > 0 {
				h.standard(item)
			}
			switch item.ID {
			case idExtType:
				pending = extNone
				if v, err := codec.Uint16(item.Data, 0); err == nil {
					pending = extType(v)
				}
			case idExtData:
				h.extended(pending, item)
				pending = extNone
			}
		}
	}
	return nil
}

// text decodes a payload up to its first NUL.
func text(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return codec.Text(b)
}

// Reconstruct decodes the content an envelope links to. env may be nil when
// only the data record is known; the data record type then decides. The
// result is a *MailMessage, *AddressEntry, *AddressGroup or *Favorite.
func Reconstruct(env, data *cabinet.Record) (any, error) {
	if data == nil {
		return nil, ErrNoData
	}

	t := data.Type
	if env != nil {
		t = env.Type
	}

	switch t {
	case cabinet.MailEnvelope, cabinet.MailData:
		return ParseMail(data.Content())
	case cabinet.AddressEnvelope, cabinet.AddressData:
		return ParseAddress(data.Content())
	case cabinet.GroupEnvelope:
		return ParseGroup(data.Content())
	case cabinet.FavoriteEnvelope:
		return ParseFavorite(data.Content()), nil
	}
	return nil, fmt.Errorf("%s record %d: %w", t, data.Index, ErrUnsupported)
}

// Load resolves the data record of env and reconstructs it.
func Load(c *cabinet.Container, env *cabinet.Record) (any, error) {
	data, err := c.Data(env)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, fmt.Errorf("record %d: %w", env.Index, ErrNoData)
	}
	return Reconstruct(env, data)
}

// LoadMail resolves and reconstructs the mail message behind a mail
// envelope or a mail data record.
func LoadMail(c *cabinet.Container, rec *cabinet.Record) (*MailMessage, error) {
	var (
		v   any
		err error
	)
	if rec.Envelope {
		v, err = Load(c, rec)
	} else {
		v, err = Reconstruct(nil, rec)
	}
	if err != nil {
		return nil, err
	}
	msg, ok := v.(*MailMessage)
	if !ok {
		return nil, fmt.Errorf("%s record %d is not mail: %w", rec.Type, rec.Index, ErrUnsupported)
	}
	return msg, nil
}
