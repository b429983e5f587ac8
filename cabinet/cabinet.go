// Package cabinet reads AOL Filing Cabinet container files into an indexed
// record graph and walks the folder trees stored in it.
package cabinet

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidContainer is returned when the identity literal is missing.
	ErrInvalidContainer = errors.New("cabinet: not a filing cabinet")
	// ErrTruncatedRead is returned when the file ends before a field or record.
	ErrTruncatedRead = errors.New("cabinet: truncated read")
	// ErrMalformedGraph is returned when record pointers cycle or leave the container.
	ErrMalformedGraph = errors.New("cabinet: malformed record graph")
	// ErrNoSuchChild is returned when a positional child lookup runs off the sibling chain.
	ErrNoSuchChild = errors.New("cabinet: no such child")
)

// ReadError reports a container read that stopped before completion.
type ReadError struct {
	Percent int
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("cabinet read stopped at %d%%: %v", e.Percent, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Container is a fully decoded cabinet. It is never modified after Read
// returns it, so concurrent readers need no locking.
type Container struct {
	IndexStart  uint32
	IndexLength uint32
	IndexCount  uint32
	RootAddress uint32

	records []*Record
}

// Len returns the number of records, placeholders included.
func (c *Container) Len() int {
	return len(c.records)
}

// Record returns the record at index i.
func (c *Container) Record(i int) (*Record, error) {
	if i < 0 || i >= len(c.records) {
		return nil, fmt.Errorf("record %d of %d: %w", i, len(c.records), ErrMalformedGraph)
	}
	return c.records[i], nil
}

// Resolve follows a pointer. None resolves to nil without error.
func (c *Container) Resolve(idx Index) (*Record, error) {
	if idx == None {
		return nil, nil
	}
	if uint64(idx) >= uint64(len(c.records)) {
		return nil, fmt.Errorf("pointer %d of %d records: %w", idx, len(c.records), ErrMalformedGraph)
	}
	return c.records[idx], nil
}

// Data returns the data record an envelope points to, or nil if it has none.
func (c *Container) Data(envelope *Record) (*Record, error) {
	return c.Resolve(envelope.Pointers.Data)
}

// Records returns a copy of the record list.
func (c *Container) Records() []*Record {
	out := make([]*Record, len(c.records))
	copy(out, c.records)
	return out
}

// OfType returns every record of type t in index order.
func (c *Container) OfType(t RecordType) []*Record {
	var out []*Record
	for _, rec := range c.records {
		if rec.Type == t {
			out = append(out, rec)
		}
	}
	return out
}

// Root returns the top folder: the folder stored at the root address, or
// record 1 when no folder carries that address.
func (c *Container) Root() (*Record, error) {
	for _, rec := range c.records {
		if rec.Folder && rec.Address == c.RootAddress && rec.Address != 0 {
			return rec, nil
		}
	}
	return c.Record(1)
}

// TypeCounts tallies records per type.
func (c *Container) TypeCounts() map[RecordType]int {
	counts := make(map[RecordType]int)
	for _, rec := range c.records {
		counts[rec.Type]++
	}
	return counts
}
