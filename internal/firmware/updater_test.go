package firmware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dcontrol/midiboot/internal/bootctl"
	"github.com/dcontrol/midiboot/internal/devident"
	"github.com/dcontrol/midiboot/internal/emulator"
	"github.com/dcontrol/midiboot/internal/midi"
	"github.com/dcontrol/midiboot/internal/sysex"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	m, err := sysex.Parse(s)
	if err != nil {
		t.Fatalf("sysex.Parse(%q) error = %v", s, err)
	}
	return m
}

func testImage(t *testing.T) *Image {
	img, err := Parse([]byte(block0 + "\n" + block1))
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func newTarget(t *testing.T, cfg emulator.Config) (*bootctl.Session, *emulator.Device) {
	t.Helper()
	dev := emulator.New(cfg)
	port := midi.NewLoopback("test", dev, midi.WithThrottle(time.Millisecond))
	t.Cleanup(func() { _ = port.Close() })
	return bootctl.New(port, nil, bootctl.WithTiming(bootctl.DefaultTiming().Scale(0.05))), dev
}

func TestProgram(t *testing.T) {
	session, dev := newTarget(t, emulator.DefaultConfig())

	var phases []Phase
	var last Progress
	up := NewUpdater(session,
		WithActivateBank(1),
		WithProgressCallback(func(p Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
			last = p
		}),
	)

	res, err := up.Program(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Program() error = %v", err)
	}

	want := []Phase{PhaseEntering, PhaseReading, PhaseWriting, PhaseActivating, PhaseExiting, PhaseComplete}
	if len(phases) != len(want) {
		t.Fatalf("phases = %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Errorf("phases[%d] = %s, want %s", i, phases[i], want[i])
		}
	}
	if last.Percentage != 100 || last.CurrentBlock != 2 {
		t.Errorf("final progress = %+v", last)
	}

	if len(dev.Blocks()) != 2 {
		t.Errorf("device received %d blocks, want 2", len(dev.Blocks()))
	}
	if !dev.Banks()[1].Active || dev.Banks()[0].Active {
		t.Errorf("banks = %+v, want bank 1 active only", dev.Banks())
	}
	if dev.Mode() != emulator.ModeApplication {
		t.Error("device left in boot code")
	}
	if res.Before == nil || res.Before.ActiveBank() != 0 {
		t.Errorf("Before = %v, want bank 0 active", res.Before)
	}
	if res.Ident == nil || res.Ident.FwVersion != "1.23" {
		t.Errorf("Ident = %v", res.Ident)
	}
	if res.BytesWritten != 28 || res.Retries != 0 {
		t.Errorf("BytesWritten = %d, Retries = %d", res.BytesWritten, res.Retries)
	}
}

func TestProgramRetriesBadPacket(t *testing.T) {
	session, dev := newTarget(t, emulator.DefaultConfig())
	dev.InjectFaults(emulator.FaultBadPacket, emulator.FaultSilent)

	res, err := NewUpdater(session, WithSkipExit()).Program(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Program() error = %v", err)
	}
	if res.Retries != 2 {
		t.Errorf("Retries = %d, want 2", res.Retries)
	}
	if len(dev.Blocks()) != 2 {
		t.Errorf("device accepted %d blocks, want 2", len(dev.Blocks()))
	}
	if dev.Mode() != emulator.ModeBoot {
		t.Error("WithSkipExit() should leave the device in boot code")
	}
}

func TestProgramGivesUp(t *testing.T) {
	tests := []struct {
		name         string
		faults       []emulator.Fault
		retries      int
		wantAttempts int
		wantKind     bootctl.Kind
	}{
		{
			name:         "persistent bad packet",
			faults:       []emulator.Fault{emulator.FaultBadPacket, emulator.FaultBadPacket, emulator.FaultBadPacket},
			retries:      2,
			wantAttempts: 3,
			wantKind:     bootctl.KindRejected,
		},
		{
			name:         "failed is final",
			faults:       []emulator.Fault{emulator.FaultFailed},
			retries:      3,
			wantAttempts: 1,
			wantKind:     bootctl.KindFailed,
		},
		{
			name:         "garbled reply is final",
			faults:       []emulator.Fault{emulator.FaultGarbled},
			retries:      3,
			wantAttempts: 1,
			wantKind:     bootctl.KindUnknownResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session, dev := newTarget(t, emulator.DefaultConfig())
			dev.InjectFaults(tt.faults...)

			_, err := NewUpdater(session, WithRetries(tt.retries)).Program(context.Background(), testImage(t))
			var we *WriteError
			if !errors.As(err, &we) {
				t.Fatalf("Program() error = %v, want *WriteError", err)
			}
			if we.Block != 0 || we.Attempts != tt.wantAttempts {
				t.Errorf("WriteError = block %d, %d attempts; want block 0, %d attempts", we.Block, we.Attempts, tt.wantAttempts)
			}
			if !bootctl.IsKind(err, tt.wantKind) {
				t.Errorf("Program() error = %v, want kind %v", err, tt.wantKind)
			}
			if dev.Mode() != emulator.ModeBoot {
				t.Error("device should stay in boot code after a failed update")
			}
		})
	}
}

func TestProgramBlindSkipsBankTable(t *testing.T) {
	cfg := emulator.DefaultConfig()
	cfg.CrippledIO = true
	dev := emulator.New(cfg)
	port := midi.NewLoopback("crippled", dev, midi.WithThrottle(time.Millisecond))
	defer port.Close()
	hints := &devident.Details{Ident: cfg.Ident, CrippledIO: true}
	session := bootctl.New(port, hints, bootctl.WithTiming(bootctl.DefaultTiming().Scale(0.05)))

	res, err := NewUpdater(session).Program(context.Background(), testImage(t))
	if err != nil {
		t.Fatalf("Program() error = %v", err)
	}
	if res.Before != nil {
		t.Error("bank table read in blind mode")
	}
	if len(dev.Blocks()) != 2 {
		t.Errorf("device accepted %d blocks, want 2", len(dev.Blocks()))
	}

	_, err = NewUpdater(session, WithActivateBank(0)).Program(context.Background(), testImage(t))
	if err == nil {
		t.Error("bank activation in blind mode should be refused")
	}
}

type stubTarget struct {
	enableErr error
	writes    int
}

func (s *stubTarget) BlindMode() bool                          { return false }
func (s *stubTarget) EnableBootcode(ctx context.Context) error { return s.enableErr }
func (s *stubTarget) BootCodeInfo(ctx context.Context) (*bootctl.BootCodeInfo, error) {
	return nil, errors.New("no banks")
}
func (s *stubTarget) WriteFirmwareUpdateMsg(ctx context.Context, block sysex.Message, timeout time.Duration) error {
	s.writes++
	return nil
}
func (s *stubTarget) ActivateBank(ctx context.Context, n int) error { return nil }
func (s *stubTarget) ExitBoot(ctx context.Context) (*devident.Ident, error) {
	return &devident.Ident{}, nil
}

func TestProgramStopsWhenBootFails(t *testing.T) {
	stub := &stubTarget{enableErr: errors.New("no boot")}
	if _, err := NewUpdater(stub).Program(context.Background(), testImage(t)); err == nil {
		t.Fatal("Program() error = nil")
	}
	if stub.writes != 0 {
		t.Errorf("wrote %d blocks without boot code", stub.writes)
	}
}

func TestProgramCancelled(t *testing.T) {
	stub := &stubTarget{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewUpdater(stub).Program(ctx, testImage(t)); !errors.Is(err, context.Canceled) {
		t.Errorf("Program() error = %v, want context.Canceled", err)
	}
}

func TestProgramEmptyImage(t *testing.T) {
	if _, err := NewUpdater(&stubTarget{}).Program(context.Background(), &Image{}); !errors.Is(err, ErrEmptyImage) {
		t.Errorf("Program() error = %v, want ErrEmptyImage", err)
	}
}
