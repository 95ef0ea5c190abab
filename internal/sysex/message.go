package sysex

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strings"
)

// Frame delimiters
const (
	Start byte = 0xF0
	End   byte = 0xF7
)

// Message is a single SysEx frame. The zero value is an empty message.
type Message []byte

// Parse reads hex text into a Message. Bytes may be separated by whitespace,
// commas or colons; an unseparated run such as "F00001" is read two digits
// at a time.
func Parse(text string) (Message, error) {
	fields := strings.FieldsFunc(text, isSeparator)
	msg := make(Message, 0, len(fields))
	for _, f := range fields {
		if len(f)%2 != 0 {
			return nil, fmt.Errorf("invalid hex token %q: odd number of digits", f)
		}
		b, err := hex.DecodeString(f)
		if err != nil {
			return nil, fmt.Errorf("invalid hex token %q: %w", f, err)
		}
		msg = append(msg, b...)
	}
	return msg, nil
}

// MustParse is like Parse but panics on malformed text. Use it for
// command literals only.
func MustParse(text string) Message {
	msg, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return msg
}

// FromTemplate builds a Message from a template in which each "vv" token is
// replaced, in order, by the next argument.
func FromTemplate(tmpl string, args ...byte) (Message, error) {
	fields := strings.FieldsFunc(tmpl, isSeparator)
	msg := make(Message, 0, len(fields))
	next := 0
	for _, f := range fields {
		if strings.EqualFold(f, "vv") {
			if next >= len(args) {
				return nil, fmt.Errorf("template %q needs more than %d values", tmpl, len(args))
			}
			msg = append(msg, args[next])
			next++
			continue
		}
		b, err := hex.DecodeString(f)
		if err != nil || len(b) != 1 {
			return nil, fmt.Errorf("invalid template token %q", f)
		}
		msg = append(msg, b[0])
	}
	if next != len(args) {
		return nil, fmt.Errorf("template %q takes %d values, got %d", tmpl, next, len(args))
	}
	return msg, nil
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', ',', ':':
		return true
	}
	return false
}

// String renders the message as upper-case hex bytes separated by spaces.
func (m Message) String() string {
	if len(m) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(m) * 3)
	for i, b := range m {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}

// Len returns the number of bytes in the message.
func (m Message) Len() int { return len(m) }

// IsEmpty reports whether the message carries no data.
func (m Message) IsEmpty() bool { return len(m) == 0 }

// Equal reports whether two messages hold the same bytes.
func (m Message) Equal(other Message) bool { return bytes.Equal(m, other) }

// Clone returns a copy the caller may modify freely.
func (m Message) Clone() Message {
	if m == nil {
		return nil
	}
	return append(Message(nil), m...)
}

// Complete reports whether the message is framed by F0 and F7.
func (m Message) Complete() bool {
	return len(m) >= 2 && m[0] == Start && m[len(m)-1] == End
}

// Match reports whether p matches the leading bytes of the message.
func (m Message) Match(p *Pattern) bool {
	return p.Match(m)
}

// MatchString compiles text and matches it against the message. Malformed
// patterns never match.
func (m Message) MatchString(text string) bool {
	p, err := Compile(text)
	if err != nil {
		return false
	}
	return p.Match(m)
}

// Slice returns a copy of length bytes starting at offset. Any part of the
// range lying outside the message yields an empty result.
func (m Message) Slice(offset, length int) Message {
	if offset < 0 || length <= 0 || offset > len(m) || length > len(m)-offset {
		return Message{}
	}
	return append(Message(nil), m[offset:offset+length]...)
}

// ToInt packs length bytes starting at offset into an integer, most
// significant first. Each byte contributes its low bitsPerByte bits; zero
// means all 8. The boolean is false when the range is out of bounds or the
// result would not fit in 63 bits.
func (m Message) ToInt(offset, length, bitsPerByte int) (int, bool) {
	if bitsPerByte <= 0 || bitsPerByte > 8 {
		bitsPerByte = 8
	}
	if length <= 0 || length*bitsPerByte > 63 {
		return 0, false
	}
	field := m.Slice(offset, length)
	if field.IsEmpty() {
		return 0, false
	}
	mask := byte(1<<bitsPerByte - 1)
	v := 0
	for _, b := range field {
		v = v<<bitsPerByte | int(b&mask)
	}
	return v, true
}

// ASCII interprets length bytes at offset as text. Non-printable bytes are
// shown as '.'. Out of range yields "".
func (m Message) ASCII(offset, length int) string {
	field := m.Slice(offset, length)
	out := make([]byte, len(field))
	for i, b := range field {
		if b >= 0x20 && b <= 0x7E {
			out[i] = b
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
