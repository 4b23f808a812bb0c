// Package charset provides table-driven decoders for legacy single-byte
// encodings still found in the wild on older RSS feeds. A decoder is a fixed
// 128-entry table mapping the high half of the byte range to code points;
// adding an encoding means adding a table, not logic.
package charset

import (
	"fmt"
	"strings"
)

// Mode controls how unmapped bytes are handled.
type Mode int

const (
	// ModeReplacement substitutes U+FFFD for unmapped bytes, making Decode
	// total over all inputs.
	ModeReplacement Mode = iota
	// ModeFatal fails on the first unmapped byte.
	ModeFatal
)

// DecodeError reports an unmapped byte in fatal mode.
type DecodeError struct {
	Byte byte
	Pos  int
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("unmapped byte 0x%02X at offset %d", e.Byte, e.Pos)
}

// Decoder decodes one single-byte encoding. Bytes 0x00-0x7F pass through as
// ASCII; bytes 0x80-0xFF are looked up in the table, where a zero entry marks
// an unmapped byte. Decoders are immutable and safe for concurrent use.
type Decoder struct {
	name    string
	aliases []string
	table   [128]rune
}

// NewDecoder builds a decoder from a high-half table. The table is copied, so
// the caller's slice can be discarded.
func NewDecoder(name string, aliases []string, table [128]rune) *Decoder {
	return &Decoder{name: name, aliases: aliases, table: table}
}

// Name returns the canonical encoding label.
func (d *Decoder) Name() string { return d.name }

// Aliases returns all labels this decoder answers to, canonical name first.
func (d *Decoder) Aliases() []string {
	res := make([]string, 0, len(d.aliases)+1)
	res = append(res, d.name)
	res = append(res, d.aliases...)
	return res
}

// Decode converts raw bytes to a string. In ModeReplacement it never fails;
// in ModeFatal it returns a *DecodeError on the first unmapped byte.
func (d *Decoder) Decode(b []byte, mode Mode) (string, error) {
	var sb strings.Builder
	sb.Grow(len(b))
	for i, c := range b {
		if c < 0x80 {
			sb.WriteByte(c)
			continue
		}
		r := d.table[c-0x80]
		if r == 0 {
			if mode == ModeFatal {
				return "", &DecodeError{Byte: c, Pos: i}
			}
			r = '�'
		}
		sb.WriteRune(r)
	}
	return sb.String(), nil
}

// matches reports whether label names this encoding, ignoring case and
// surrounding whitespace.
func (d *Decoder) matches(label string) bool {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == strings.ToLower(d.name) {
		return true
	}
	for _, a := range d.aliases {
		if label == strings.ToLower(a) {
			return true
		}
	}
	return false
}

// registry of known decoders, built once at init.
var decoders = []*Decoder{Windows1251}

// Lookup finds a registered decoder by any of its labels. Used by the feed
// fetcher to match a declared content-type charset.
func Lookup(label string) (*Decoder, bool) {
	for _, d := range decoders {
		if d.matches(label) {
			return d, true
		}
	}
	return nil, false
}
