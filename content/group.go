package content

import (
	"fmt"
	"strings"

	"github.com/dhcgn/pfc-export/block"
)

// AddressGroup is a named list of email addresses.
type AddressGroup struct {
	Name   string
	Emails []string
}

const (
	idGroupName   = 1
	idGroupEmails = 2
)

// ParseGroup rebuilds an address group from data record content.
func ParseGroup(content []byte) (*AddressGroup, error) {
	g := &AddressGroup{}
	if err := dispatch(content, g); err != nil {
		return nil, fmt.Errorf("group: %w", err)
	}
	return g, nil
}

func (g *AddressGroup) standard(item block.SubItem) {
	switch item.ID {
	case idGroupName:
		g.Name = text(item.Data)
	case idGroupEmails:
		g.Emails = append(g.Emails, splitCRLF(text(item.Data))...)
	}
}

func (g *AddressGroup) extended(extType, block.SubItem) {}

// splitCRLF splits on CRLF and keeps an unterminated trailing entry.
func splitCRLF(s string) []string {
	parts := strings.Split(s, "\r\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}

// Summary returns the group name head.
func (g *AddressGroup) Summary() string {
	return "Group Name: " + g.Name + "\n"
}

// Text lists the addresses one per line.
func (g *AddressGroup) Text() string {
	var b strings.Builder
	for _, e := range g.Emails {
		b.WriteString(e + "\n")
	}
	return b.String()
}
