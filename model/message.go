package model

import "time"

// Message is one mail item rendered as an RFC 5322 message, ready for upload.
type Message struct {
	// ID is stable for a given cabinet record, e.g. "pfc-42".
	ID         string
	Hash       string
	Folder     string
	ReceivedAt time.Time
	Seen       bool
	Size       int64
	Raw        []byte
}

// Envelope wraps a message alongside an optional error encountered while
// rebuilding it. Errors are local to the record that produced them.
type Envelope struct {
	Message Message
	Err     error
}
