package midi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcontrol/midiboot/internal/sysex"
)

func TestLoopbackDeliversHandlerReplies(t *testing.T) {
	echo := HandlerFunc(func(msg sysex.Message, reply func(sysex.Message)) {
		if msg.MatchString("F0 7E 7F 06 01") {
			reply(sysex.MustParse("F0 7E 00 06 02 00 01 55 12 00 07 00 31 2E 32 33 F7"))
		}
	})
	port := NewLoopback("loop", echo)
	defer port.Close()

	tr := port.Triggers().Arm(sysex.MustCompile("F0 7E .. 06 02 00 01 55"))
	defer tr.Close()

	if err := port.Send(sysex.MustParse("F0 7E 7F 06 01 F7")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !tr.Wait(100 * time.Millisecond) {
		t.Fatal("no identity reply delivered")
	}
	if got := len(port.Sent()); got != 1 {
		t.Errorf("Sent() has %d frames, want 1", got)
	}
}

func TestLoopbackInject(t *testing.T) {
	port := NewLoopback("loop", nil)
	defer port.Close()

	tr := port.Triggers().Arm(sysex.MustCompile("F0 00 01 55"))
	defer tr.Close()

	port.Inject(sysex.MustParse("F0 00 01 55 42 0C 00 F7"))
	if tr.Count() != 1 {
		t.Errorf("Count() = %d, want 1", tr.Count())
	}
}

func TestLoopbackClose(t *testing.T) {
	port := NewLoopback("loop", nil)
	tr := port.Triggers().Arm(sysex.MustCompile("F0"))

	if err := port.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := port.Send(sysex.MustParse("F0 F7")); !errors.Is(err, ErrClosed) {
		t.Errorf("Send() after Close() error = %v, want ErrClosed", err)
	}
	if err := port.SendThrottled(context.Background(), sysex.MustParse("F0 F7")); !errors.Is(err, ErrClosed) {
		t.Errorf("SendThrottled() after Close() error = %v, want ErrClosed", err)
	}
	if tr.Wait(time.Millisecond) {
		t.Error("trigger still live after port Close()")
	}
	if err := port.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestLoopbackSentIsACopy(t *testing.T) {
	port := NewLoopback("loop", nil)
	defer port.Close()

	msg := sysex.MustParse("F0 00 01 55 42 0C 00 00 00 F7")
	_ = port.Send(msg)
	msg[8] = 0x7F

	if got := port.Sent()[0][8]; got != 0x00 {
		t.Errorf("recorded frame changed to 0x%02X after caller mutation", got)
	}
}

func TestNormalizeBridgeURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "studio.local:7777", want: "ws://studio.local:7777/sysex"},
		{input: "ws://10.0.0.2:7777", want: "ws://10.0.0.2:7777/sysex"},
		{input: "wss://bridge.example/custom", want: "wss://bridge.example/custom"},
		{input: "ws://h:1/sysex", want: "ws://h:1/sysex"},
	}
	for _, tt := range tests {
		if got := NormalizeBridgeURL(tt.input); got != tt.want {
			t.Errorf("NormalizeBridgeURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoopbackMonitorSeesBothDirections(t *testing.T) {
	echo := HandlerFunc(func(msg sysex.Message, reply func(sysex.Message)) {
		reply(sysex.MustParse("F0 00 01 55 42 0C 00 F7"))
	})

	var seen []string
	port := NewLoopback("loop", echo, WithMonitor(func(direction string, msg sysex.Message) {
		seen = append(seen, direction+" "+msg.String())
	}))
	defer port.Close()

	if err := port.Send(sysex.MustParse("F0 00 01 55 42 01 F7")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	want := []string{
		"out F0 00 01 55 42 01 F7",
		"in F0 00 01 55 42 0C 00 F7",
	}
	if len(seen) != len(want) {
		t.Fatalf("monitor saw %d frames, want %d: %v", len(seen), len(want), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("frame %d = %q, want %q", i, seen[i], want[i])
		}
	}
}
