// Package sysex holds MIDI System-Exclusive frames and the pattern grammar
// used to recognise device replies.
//
// # Messages
//
// A Message is one complete frame, F0 through F7. Messages are parsed from
// and rendered to spaced hex text, which round-trips byte for byte:
//
//	msg, _ := sysex.Parse("F0 7E 7F 06 01 F7")
//	fmt.Println(msg) // F0 7E 7F 06 01 F7
//
// Field accessors (Slice, ToInt, ASCII) never panic on short or malformed
// replies; they return empty values instead, since every reply comes from
// an untrusted device.
//
// # Patterns
//
// Patterns are whitespace separated tokens, one per byte position:
//
//	F0        exact byte
//	..        any byte
//	0[89]     high nibble 0, low nibble 8 or 9
//	[08,7F]   either of the listed bytes
//
// A pattern compares the leading bytes of a message. Longer messages can
// match; shorter ones never do.
//
// # Framing
//
// Framer turns a raw MIDI byte stream into Messages, skipping real-time
// bytes that may be interleaved inside a frame.
package sysex
