package midi

import (
	"context"
	"errors"
	"time"

	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/sysex"
	"github.com/dcontrol/midiboot/internal/trigger"
)

// ErrClosed is returned when sending on a closed port.
var ErrClosed = errors.New("midi port closed")

// Port is a bidirectional SysEx transport.
type Port interface {
	// Name identifies the port in logs and configuration.
	Name() string
	// Send writes one frame without waiting for any reply.
	Send(msg sysex.Message) error
	// SendThrottled writes one frame no sooner than the port's pacing
	// interval after the previous throttled send.
	SendThrottled(ctx context.Context, msg sysex.Message) error
	// Triggers returns the registry fed with every inbound frame.
	Triggers() *trigger.Registry
	Close() error
}

// SafeModer is implemented by ports that can slow their output for
// interfaces that drop data at full speed.
type SafeModer interface {
	SetSafeMode()
}

// Monitor observes every frame crossing a port. direction is
// logging.DirectionIn or logging.DirectionOut.
type Monitor func(direction string, msg sysex.Message)

// Options configure a port.
type Options struct {
	ThrottleInterval time.Duration
	Monitor          Monitor
}

// Option is a functional option for port constructors.
type Option func(*Options)

// WithThrottle sets the pacing interval for SendThrottled.
func WithThrottle(interval time.Duration) Option {
	return func(o *Options) {
		o.ThrottleInterval = interval
	}
}

// WithMonitor installs a frame monitor. It is called synchronously from the
// sending goroutine and the port's reader and must not block.
func WithMonitor(m Monitor) Option {
	return func(o *Options) {
		o.Monitor = m
	}
}

func buildOptions(opts []Option) Options {
	o := Options{ThrottleInterval: DefaultThrottleInterval}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// stream holds the parts every transport shares.
type stream struct {
	name     string
	reg      *trigger.Registry
	throttle *Throttle
	monitor  Monitor
}

func newStream(name string, o Options) stream {
	return stream{
		name:     name,
		reg:      trigger.NewRegistry(),
		throttle: NewThrottle(o.ThrottleInterval),
		monitor:  o.Monitor,
	}
}

func (s *stream) Name() string                { return s.name }
func (s *stream) Triggers() *trigger.Registry { return s.reg }

// SetSafeMode slows throttled sends.
func (s *stream) SetSafeMode() {
	s.throttle.SetSafeMode()
	logging.Info("MIDI output safe mode enabled")
}

func (s *stream) observe(direction string, msg sysex.Message) {
	logging.LogSysEx(direction, s.name, msg)
	if s.monitor != nil {
		s.monitor(direction, msg)
	}
}

func (s *stream) deliver(msg sysex.Message) {
	s.observe(logging.DirectionIn, msg)
	s.reg.Deliver(msg)
}
