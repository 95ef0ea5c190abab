package bootctl

import (
	"time"

	"go.uber.org/zap"
)

// Timing holds every wait the protocol uses. The defaults match what the
// boot code needs; slow links or tests may scale them.
type Timing struct {
	Identify      time.Duration
	IsBootcode    time.Duration
	BankInfo      time.Duration
	Activate      time.Duration
	FirmwareWrite time.Duration
	ExitBoot      time.Duration
	CheckPID      time.Duration
	CountWindow   time.Duration

	// ResetSettle is the pause after a private reset before probing.
	ResetSettle time.Duration
	// ProbeInterval spaces the enable-recovery probes.
	ProbeInterval time.Duration
	// Probes is the number of enable-recovery probes sent. The boot code
	// listens for roughly 300ms after reset, so Probes*ProbeInterval must
	// cover that window.
	Probes int
}

// DefaultTiming returns the timings the device was designed for.
func DefaultTiming() Timing {
	return Timing{
		Identify:      3000 * time.Millisecond,
		IsBootcode:    400 * time.Millisecond,
		BankInfo:      500 * time.Millisecond,
		Activate:      1000 * time.Millisecond,
		FirmwareWrite: 2000 * time.Millisecond,
		ExitBoot:      4000 * time.Millisecond,
		CheckPID:      400 * time.Millisecond,
		CountWindow:   800 * time.Millisecond,
		ResetSettle:   100 * time.Millisecond,
		ProbeInterval: 20 * time.Millisecond,
		Probes:        40,
	}
}

// Scale multiplies every reply wait by f. Reset settle and probe cadence
// are left alone since the device fixes them.
func (t Timing) Scale(f float64) Timing {
	scale := func(d time.Duration) time.Duration { return time.Duration(float64(d) * f) }
	t.Identify = scale(t.Identify)
	t.IsBootcode = scale(t.IsBootcode)
	t.BankInfo = scale(t.BankInfo)
	t.Activate = scale(t.Activate)
	t.FirmwareWrite = scale(t.FirmwareWrite)
	t.ExitBoot = scale(t.ExitBoot)
	t.CheckPID = scale(t.CheckPID)
	t.CountWindow = scale(t.CountWindow)
	return t
}

// Config holds the session configuration.
type Config struct {
	Logger *zap.Logger
	Timing Timing
	// Blind overrides the blind-mode default taken from device hints.
	Blind *bool
}

func defaultConfig() Config {
	return Config{Timing: DefaultTiming()}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithLogger sets the logger for protocol events.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = l
	}
}

// WithTiming replaces the protocol timings.
func WithTiming(t Timing) Option {
	return func(c *Config) {
		c.Timing = t
	}
}

// WithBlindMode forces blind mode on or off regardless of device hints.
func WithBlindMode(blind bool) Option {
	return func(c *Config) {
		c.Blind = &blind
	}
}
