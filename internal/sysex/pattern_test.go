package sysex

import (
	"testing"
)

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		msg     string
		want    bool
	}{
		{name: "exact", pattern: "F0 00 01 55 42 0C 00 F7", msg: "F0 00 01 55 42 0C 00 F7", want: true},
		{name: "exact mismatch", pattern: "F0 00 01 55 42 0C 00 F7", msg: "F0 00 01 55 42 0C 01 F7", want: false},
		{name: "wildcard byte", pattern: "F0 00 01 55 42 0C .. F7", msg: "F0 00 01 55 42 0C 02 F7", want: true},
		{name: "prefix of longer message", pattern: "F0 00 01 55", msg: "F0 00 01 55 42 0C 00 F7", want: true},
		{name: "message shorter than pattern", pattern: "F0 00 01 55 42", msg: "F0 00 01 55", want: false},
		{name: "nibble class first", pattern: "F0 00 01 55 42 0[89]", msg: "F0 00 01 55 42 08", want: true},
		{name: "nibble class second", pattern: "F0 00 01 55 42 0[89]", msg: "F0 00 01 55 42 09", want: true},
		{name: "nibble class excluded", pattern: "F0 00 01 55 42 0[89]", msg: "F0 00 01 55 42 0A", want: false},
		{name: "high nibble wildcard", pattern: ".5", msg: "75", want: true},
		{name: "low nibble wildcard", pattern: "4.", msg: "4F", want: true},
		{name: "low nibble wildcard mismatch", pattern: "4.", msg: "5F", want: false},
		{name: "byte group", pattern: "F0 [08,7F]", msg: "F0 7F", want: true},
		{name: "byte group excluded", pattern: "F0 [08,7F]", msg: "F0 09", want: false},
		{name: "lower case pattern", pattern: "f0 7e .. 06", msg: "F0 7E 10 06 02", want: true},
		{name: "empty message", pattern: "F0", msg: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MustCompile(tt.pattern)
			msg := MustParse(tt.msg)
			if got := msg.Match(p); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.msg, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestWildcardMatchesEveryByte(t *testing.T) {
	p := MustCompile("F0 ..")
	for v := 0; v <= 0xFF; v++ {
		if !p.Match(Message{0xF0, byte(v)}) {
			t.Fatalf(".. did not match 0x%02X", v)
		}
	}
}

func TestNibbleClassMatchesOnlyListed(t *testing.T) {
	p := MustCompile("[13][0A]")
	want := map[byte]bool{0x10: true, 0x1A: true, 0x30: true, 0x3A: true}
	for v := 0; v <= 0xFF; v++ {
		if got := p.Match(Message{byte(v)}); got != want[byte(v)] {
			t.Errorf("Match(0x%02X) = %v, want %v", v, got, want[byte(v)])
		}
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []string{
		"",
		"F",
		"F0F",
		"G0",
		"0[8",
		"0[]",
		"[0G,01]",
		"0[8Z]",
	}
	for _, text := range tests {
		if _, err := Compile(text); err == nil {
			t.Errorf("Compile(%q) expected error", text)
		}
	}
}

func TestPatternPrefix(t *testing.T) {
	p := MustCompile("F0 00 01 55 42 0C .. F7")
	short := p.Prefix(4)
	if got, want := short.String(), "F0 00 01 55"; got != want {
		t.Errorf("Prefix(4) = %q, want %q", got, want)
	}
	if short.Len() != 4 {
		t.Errorf("Prefix(4).Len() = %d, want 4", short.Len())
	}
	if p.Len() != 8 {
		t.Errorf("original Len() = %d, want 8", p.Len())
	}
	if !short.Match(MustParse("F0 00 01 55 42 00")) {
		t.Error("prefix should match any manufacturer reply")
	}
	if p.Prefix(20) != p {
		t.Error("Prefix longer than pattern should return the pattern itself")
	}
}

func TestExact(t *testing.T) {
	p := Exact(MustParse("F0 00 01 55 42 02 00 F7"))
	if got, want := p.String(), "F0 00 01 55 42 02 00 F7"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if p.Match(MustParse("F0 00 01 55 42 02 01 F7")) {
		t.Error("exact pattern matched a different byte")
	}
}

func TestNilPattern(t *testing.T) {
	var p *Pattern
	if p.Match(MustParse("F0 F7")) {
		t.Error("nil pattern should not match")
	}
	if p.Len() != 0 || p.String() != "" {
		t.Error("nil pattern should be empty")
	}
}
