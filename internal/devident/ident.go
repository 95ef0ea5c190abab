// Package devident decodes MIDI Universal Identity Replies and carries the
// optional identity hints used when a link cannot deliver a full reply.
package devident

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dcontrol/midiboot/internal/sysex"
)

// ErrNotIdentity is returned when a frame is not an identity reply.
var ErrNotIdentity = errors.New("not an identity reply")

var identityReply = sysex.MustCompile("F0 7E .. 06 02")

// Manufacturer IDs are stored as a single value: one-byte IDs as-is, three
// byte IDs (leading 00) as 0x00XXYY.
const (
	// ManufacturerDamageControl is the extended ID 00 01 55.
	ManufacturerDamageControl uint32 = 0x000155
)

// Ident is a decoded identity reply.
type Ident struct {
	Channel      byte
	Manufacturer uint32
	Family       uint16
	Product      uint16
	FwVersion    string
	Raw          sysex.Message
}

// Parse decodes an identity reply. Both one-byte and three-byte
// manufacturer IDs are accepted.
func Parse(msg sysex.Message) (*Ident, error) {
	if !identityReply.Match(msg) {
		return nil, ErrNotIdentity
	}

	id := &Ident{Channel: msg[2], Raw: msg.Clone()}
	pos := 5
	if len(msg) <= pos {
		return nil, fmt.Errorf("identity reply truncated: %d bytes", len(msg))
	}
	if msg[pos] == 0x00 {
		v, ok := msg.ToInt(pos, 3, 0)
		if !ok {
			return nil, fmt.Errorf("identity reply truncated: %d bytes", len(msg))
		}
		id.Manufacturer = uint32(v)
		pos += 3
	} else {
		id.Manufacturer = uint32(msg[pos])
		pos++
	}

	// family(2) product(2) version(4), each multi-byte field LSB first
	if len(msg) < pos+8 {
		return nil, fmt.Errorf("identity reply truncated: %d bytes", len(msg))
	}
	id.Family = uint16(msg[pos]) | uint16(msg[pos+1])<<7
	id.Product = uint16(msg[pos+2]) | uint16(msg[pos+3])<<7
	id.FwVersion = formatVersion(msg.Slice(pos+4, 4))
	return id, nil
}

func formatVersion(v sysex.Message) string {
	printable := true
	for _, b := range v {
		if b < 0x20 || b > 0x7E {
			printable = false
			break
		}
	}
	if printable {
		return strings.TrimSpace(string(v))
	}
	parts := make([]string, len(v))
	for i, b := range v {
		parts[i] = fmt.Sprintf("%d", b)
	}
	return strings.Join(parts, ".")
}

// FamilyByte returns the low byte of the family code, as used in private
// commands.
func (id *Ident) FamilyByte() byte { return byte(id.Family & 0x7F) }

// ProductByte returns the low byte of the product code.
func (id *Ident) ProductByte() byte { return byte(id.Product & 0x7F) }

// PID combines family and product bytes the way the boot code reports them.
func (id *Ident) PID() int { return int(id.FamilyByte())<<8 | int(id.ProductByte()) }

// Encode renders the identity as a reply frame. Versions that are not four
// characters are padded with spaces or truncated.
func (id *Ident) Encode() sysex.Message {
	msg := sysex.Message{sysex.Start, 0x7E, id.Channel, 0x06, 0x02}
	if id.Manufacturer > 0x7F {
		msg = append(msg, byte(id.Manufacturer>>16), byte(id.Manufacturer>>8), byte(id.Manufacturer))
	} else {
		msg = append(msg, byte(id.Manufacturer))
	}
	msg = append(msg,
		byte(id.Family&0x7F), byte(id.Family>>7&0x7F),
		byte(id.Product&0x7F), byte(id.Product>>7&0x7F),
	)
	ver := []byte(fmt.Sprintf("%-4s", id.FwVersion))[:4]
	msg = append(msg, ver...)
	return append(msg, sysex.End)
}

func (id *Ident) String() string {
	if id == nil {
		return "<none>"
	}
	return fmt.Sprintf("mfr=%06X family=%02X product=%02X fw=%s", id.Manufacturer, id.Family, id.Product, id.FwVersion)
}

// Details are pre-known facts about the attached device. They come from the
// user's configuration or the device catalog and may be empty.
type Details struct {
	Ident
	Name string
	// CrippledIO marks interfaces that drop frames longer than a few bytes.
	CrippledIO bool
}

// IsEmpty reports whether the details carry no identity.
func (d *Details) IsEmpty() bool {
	return d == nil || (d.Family == 0 && d.Product == 0 && d.FwVersion == "")
}
