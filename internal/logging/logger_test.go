package logging

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{input: "debug", want: zapcore.DebugLevel},
		{input: "INFO", want: zapcore.InfoLevel},
		{input: "warning", want: zapcore.WarnLevel},
		{input: "error", want: zapcore.ErrorLevel},
		{input: "chatty", want: zapcore.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Error("default logger should be silent")
	}
}

func TestLogSysEx(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := GetLogger()
	SetLogger(zap.New(core))
	defer SetLogger(prev)

	LogSysEx(DirectionOut, "loop", []byte{0xF0, 0x7E, 0x7F, 0x06, 0x01, 0xF7})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["hex"] != "F0 7E 7F 06 01 F7" {
		t.Errorf("hex = %v, want %q", fields["hex"], "F0 7E 7F 06 01 F7")
	}
	if fields["dir"] != DirectionOut {
		t.Errorf("dir = %v, want %q", fields["dir"], DirectionOut)
	}
}

func TestLogSysExTruncates(t *testing.T) {
	data := make([]byte, 100)
	got := spacedHex(data)
	if !strings.HasSuffix(got, " ...") {
		t.Errorf("spacedHex() = %q, want truncated suffix", got)
	}
	if n := len(strings.Fields(got)); n != 65 {
		t.Errorf("spacedHex() has %d fields, want 65", n)
	}
}
