package sysex

import (
	"math"
	"testing"
)

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "spaced", input: "F0 7E 7F 06 01 F7", want: "F0 7E 7F 06 01 F7"},
		{name: "lower case", input: "f0 00 01 55 f7", want: "F0 00 01 55 F7"},
		{name: "mixed separators", input: "F0,00:01\t55\n42 F7", want: "F0 00 01 55 42 F7"},
		{name: "unseparated run", input: "F0000155", want: "F0 00 01 55"},
		{name: "extra whitespace", input: "  F0   F7  ", want: "F0 F7"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got := msg.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			again, err := Parse(msg.String())
			if err != nil {
				t.Fatalf("reparse error = %v", err)
			}
			if !again.Equal(msg) {
				t.Errorf("round trip = %v, want %v", again, msg)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{"F", "F0 G1", "F0 123"} {
		if _, err := Parse(input); err == nil {
			t.Errorf("Parse(%q) expected error", input)
		}
	}
}

func TestFromTemplate(t *testing.T) {
	msg, err := FromTemplate("F0 00 01 55 vv vv 1B F7", 0x12, 0x07)
	if err != nil {
		t.Fatalf("FromTemplate() error = %v", err)
	}
	if got, want := msg.String(), "F0 00 01 55 12 07 1B F7"; got != want {
		t.Errorf("FromTemplate() = %q, want %q", got, want)
	}

	if _, err := FromTemplate("F0 vv vv F7", 0x01); err == nil {
		t.Error("expected error for missing value")
	}
	if _, err := FromTemplate("F0 vv F7", 0x01, 0x02); err == nil {
		t.Error("expected error for unused value")
	}
}

func TestSlice(t *testing.T) {
	msg := MustParse("F0 00 01 55 42 08 F7")

	tests := []struct {
		name   string
		offset int
		length int
		want   string
	}{
		{name: "inside", offset: 1, length: 3, want: "00 01 55"},
		{name: "whole", offset: 0, length: 7, want: "F0 00 01 55 42 08 F7"},
		{name: "past end", offset: 5, length: 3, want: ""},
		{name: "negative offset", offset: -1, length: 2, want: ""},
		{name: "zero length", offset: 2, length: 0, want: ""},
		{name: "huge length", offset: 1, length: math.MaxInt, want: ""},
		{name: "huge offset", offset: math.MaxInt, length: 1, want: ""},
		{name: "offset at end", offset: 7, length: 1, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := msg.Slice(tt.offset, tt.length).String(); got != tt.want {
				t.Errorf("Slice(%d, %d) = %q, want %q", tt.offset, tt.length, got, tt.want)
			}
		})
	}

	sub := msg.Slice(0, 2)
	sub[0] = 0x00
	if msg[0] != 0xF0 {
		t.Error("Slice() result aliases the original message")
	}
}

func TestToInt(t *testing.T) {
	msg := MustParse("F0 01 02 0F 0F 0F 0F 0F 0F 0F 0F 7F F7")

	tests := []struct {
		name   string
		offset int
		length int
		bits   int
		want   int
		ok     bool
	}{
		{name: "two full bytes", offset: 1, length: 2, bits: 0, want: 0x0102, ok: true},
		{name: "eight nibbles", offset: 3, length: 8, bits: 4, want: 0xFFFFFFFF, ok: true},
		{name: "seven bit byte", offset: 11, length: 1, bits: 7, want: 0x7F, ok: true},
		{name: "low nibble only", offset: 11, length: 1, bits: 4, want: 0x0F, ok: true},
		{name: "out of range", offset: 12, length: 2, bits: 0, want: 0, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := msg.ToInt(tt.offset, tt.length, tt.bits)
			if ok != tt.ok {
				t.Fatalf("ToInt() ok = %v, want %v", ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("ToInt() = 0x%X, want 0x%X", got, tt.want)
			}
		})
	}
}

func TestASCII(t *testing.T) {
	msg := MustParse("F0 00 01 55 42 08 31 2E 32 33 01 F7")
	if got := msg.ASCII(6, 4); got != "1.23" {
		t.Errorf("ASCII(6, 4) = %q, want %q", got, "1.23")
	}
	if got := msg.ASCII(9, 3); got != "3.." {
		t.Errorf("ASCII(9, 3) = %q, want %q", got, "3..")
	}
	if got := msg.ASCII(10, 5); got != "" {
		t.Errorf("ASCII out of range = %q, want empty", got)
	}
}

func TestComplete(t *testing.T) {
	if !MustParse("F0 F7").Complete() {
		t.Error("F0 F7 should be complete")
	}
	if MustParse("F0 00 01").Complete() {
		t.Error("unterminated frame should not be complete")
	}
	if (Message{}).Complete() {
		t.Error("empty message should not be complete")
	}
}
