package sysex

import (
	"fmt"
	"strings"
)

// byteSet is the set of byte values accepted at one pattern position.
type byteSet [4]uint64

func (s *byteSet) add(b byte)     { s[b>>6] |= 1 << (b & 63) }
func (s byteSet) has(b byte) bool { return s[b>>6]&(1<<(b&63)) != 0 }

// Pattern is a compiled reply pattern. A nil *Pattern matches nothing.
type Pattern struct {
	tokens    []string
	positions []byteSet
}

// Compile parses pattern text. See the package documentation for the
// grammar.
func Compile(text string) (*Pattern, error) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty pattern")
	}
	p := &Pattern{
		tokens:    make([]string, 0, len(fields)),
		positions: make([]byteSet, 0, len(fields)),
	}
	for _, f := range fields {
		set, err := compileToken(f)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", text, err)
		}
		p.tokens = append(p.tokens, strings.ToUpper(f))
		p.positions = append(p.positions, set)
	}
	return p, nil
}

// MustCompile is like Compile but panics on malformed text.
func MustCompile(text string) *Pattern {
	p, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return p
}

// Exact returns a pattern matching exactly the bytes of m at the start of a
// message.
func Exact(m Message) *Pattern {
	p := &Pattern{
		tokens:    make([]string, len(m)),
		positions: make([]byteSet, len(m)),
	}
	for i, b := range m {
		p.tokens[i] = fmt.Sprintf("%02X", b)
		p.positions[i].add(b)
	}
	return p
}

func compileToken(tok string) (byteSet, error) {
	var set byteSet
	if strings.HasPrefix(tok, "[") && strings.HasSuffix(tok, "]") && strings.Contains(tok, ",") {
		for _, alt := range strings.Split(tok[1:len(tok)-1], ",") {
			b, err := Parse(alt)
			if err != nil || len(b) != 1 {
				return set, fmt.Errorf("invalid byte %q in group %s", alt, tok)
			}
			set.add(b[0])
		}
		return set, nil
	}

	var slots [][]byte
	for i := 0; i < len(tok); i++ {
		switch c := tok[i]; {
		case c == '.':
			all := make([]byte, 16)
			for n := range all {
				all[n] = byte(n)
			}
			slots = append(slots, all)
		case c == '[':
			end := strings.IndexByte(tok[i:], ']')
			if end < 2 {
				return set, fmt.Errorf("unterminated class in %q", tok)
			}
			var class []byte
			for _, d := range tok[i+1 : i+end] {
				n, ok := nibble(byte(d))
				if !ok {
					return set, fmt.Errorf("invalid nibble %q in %q", d, tok)
				}
				class = append(class, n)
			}
			slots = append(slots, class)
			i += end
		default:
			n, ok := nibble(c)
			if !ok {
				return set, fmt.Errorf("invalid character %q in %q", c, tok)
			}
			slots = append(slots, []byte{n})
		}
	}
	if len(slots) != 2 {
		return set, fmt.Errorf("token %q must describe exactly two nibbles", tok)
	}
	for _, hi := range slots[0] {
		for _, lo := range slots[1] {
			set.add(hi<<4 | lo)
		}
	}
	return set, nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

// Match reports whether every pattern position accepts the corresponding
// leading byte of m.
func (p *Pattern) Match(m Message) bool {
	if p == nil || len(m) < len(p.positions) {
		return false
	}
	for i, set := range p.positions {
		if !set.has(m[i]) {
			return false
		}
	}
	return true
}

// Len returns the number of byte positions the pattern compares.
func (p *Pattern) Len() int {
	if p == nil {
		return 0
	}
	return len(p.positions)
}

// Prefix returns a pattern made of the first n positions. If the pattern is
// already that short it is returned unchanged.
func (p *Pattern) Prefix(n int) *Pattern {
	if p == nil || n >= len(p.positions) {
		return p
	}
	if n < 0 {
		n = 0
	}
	return &Pattern{
		tokens:    append([]string(nil), p.tokens[:n]...),
		positions: append([]byteSet(nil), p.positions[:n]...),
	}
}

// String returns the normalised pattern text.
func (p *Pattern) String() string {
	if p == nil {
		return ""
	}
	return strings.Join(p.tokens, " ")
}
