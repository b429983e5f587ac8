// Package codec holds the little-endian field readers shared by every
// Filing Cabinet decoder, plus a couple of padded formatters for diagnostics.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrOutOfRange is returned when a field read needs more bytes than remain.
var ErrOutOfRange = errors.New("codec: offset out of range")

// Uint32 reads a little-endian uint32 at off.
func Uint32(b []byte, off int) (uint32, error) {
	if off < 0 || len(b)-off < 4 {
		return 0, fmt.Errorf("uint32 at %d of %d bytes: %w", off, len(b), ErrOutOfRange)
	}
	return binary.LittleEndian.Uint32(b[off : off+4]), nil
}

// Uint16 reads a little-endian uint16 at off.
func Uint16(b []byte, off int) (uint16, error) {
	if off < 0 || len(b)-off < 2 {
		return 0, fmt.Errorf("uint16 at %d of %d bytes: %w", off, len(b), ErrOutOfRange)
	}
	return binary.LittleEndian.Uint16(b[off : off+2]), nil
}

// Uint32Or reads a little-endian uint32 at off, or returns 0 when the slice is too short.
func Uint32Or(b []byte, off int) uint32 {
	v, err := Uint32(b, off)
	if err != nil {
		return 0
	}
	return v
}

// Uint16Or reads a little-endian uint16 at off, or returns 0 when the slice is too short.
func Uint16Or(b []byte, off int) uint16 {
	v, err := Uint16(b, off)
	if err != nil {
		return 0
	}
	return v
}

// Hex formats v as lowercase hex, zero padded (or truncated from the left) to digits.
func Hex(v uint32, digits int) string {
	s := strconv.FormatUint(uint64(v), 16)
	if len(s) >= digits {
		return s[len(s)-digits:]
	}
	return strings.Repeat("0", digits-len(s)) + s
}

// PadInt formats v in decimal, left padded with spaces to width.
func PadInt(v, width int) string {
	s := strconv.Itoa(v)
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// Text decodes legacy client text, which is Windows-1252 rather than UTF-8.
func Text(b []byte) string {
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// Legacy encodes s as Windows-1252 for files read by legacy clients.
// Characters outside the code page become the ASCII substitute byte.
func Legacy(s string) []byte {
	out, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).Bytes([]byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}
