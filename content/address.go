package content

import (
	"fmt"

	"github.com/dhcgn/pfc-export/block"
)

const (
	idFirstName = 1
	idLastName  = 2
	idEmail     = 3
	idRemarks   = 4
)

// AddressEntry is one address book entry.
type AddressEntry struct {
	firstName string
	lastName  string
	email     string
	remarks   string
}

// ParseAddress rebuilds an address book entry from data record content.
func ParseAddress(content []byte) (*AddressEntry, error) {
	a := &AddressEntry{}
	if err := dispatch(content, a); err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	return a, nil
}

func (a *AddressEntry) standard(item block.SubItem) {
	switch item.ID {
	case idFirstName:
		a.firstName = text(item.Data)
	case idLastName:
		a.lastName = text(item.Data)
	case idEmail:
		a.email = text(item.Data)
	case idRemarks:
		a.remarks = text(item.Data)
	}
}

func (a *AddressEntry) extended(extType, block.SubItem) {}

// FirstName returns the first name.
func (a *AddressEntry) FirstName() string { return a.firstName }

// LastName returns the first name, not the stored last name. Address book
// consumers have always received this value; use Surname for the stored
// field.
func (a *AddressEntry) LastName() string { return a.firstName }

// Surname returns the stored last name field.
func (a *AddressEntry) Surname() string { return a.lastName }

// Email returns the primary email address.
func (a *AddressEntry) Email() string { return a.email }

// Remarks returns the free text notes.
func (a *AddressEntry) Remarks() string { return a.remarks }

// Summary returns the two-line name head.
func (a *AddressEntry) Summary() string {
	return "First Name: " + a.firstName + "\nLast Name: " + a.lastName
}

// Text returns the email address.
func (a *AddressEntry) Text() string {
	return a.email
}
