package midi

import (
	"context"
	"sync"

	"github.com/dcontrol/midiboot/internal/logging"
	"github.com/dcontrol/midiboot/internal/sysex"
)

// Handler receives the frames written to a Loopback port and answers
// through reply. Handlers run on the sender's goroutine.
type Handler interface {
	HandleSysEx(msg sysex.Message, reply func(sysex.Message))
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(msg sysex.Message, reply func(sysex.Message))

// HandleSysEx calls f.
func (f HandlerFunc) HandleSysEx(msg sysex.Message, reply func(sysex.Message)) {
	f(msg, reply)
}

// Loopback is an in-process port. Outbound frames are recorded and handed to
// its Handler; replies are delivered to the port's triggers.
type Loopback struct {
	stream

	handler Handler

	mu     sync.Mutex
	sent   []sysex.Message
	closed bool
}

// NewLoopback creates a loopback port. A nil handler makes a port that only
// records what is sent; tests then call Inject to play the device.
func NewLoopback(name string, h Handler, opts ...Option) *Loopback {
	return &Loopback{
		stream:  newStream(name, buildOptions(opts)),
		handler: h,
	}
}

// Send records msg and passes it to the handler.
func (l *Loopback) Send(msg sysex.Message) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.sent = append(l.sent, msg.Clone())
	l.mu.Unlock()

	l.observe(logging.DirectionOut, msg)
	if l.handler != nil {
		l.handler.HandleSysEx(msg.Clone(), l.Inject)
	}
	return nil
}

// SendThrottled waits for the throttle then sends.
func (l *Loopback) SendThrottled(ctx context.Context, msg sysex.Message) error {
	if err := l.throttle.Wait(ctx); err != nil {
		return err
	}
	return l.Send(msg)
}

// Inject delivers msg as if the device had sent it.
func (l *Loopback) Inject(msg sysex.Message) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}
	l.deliver(msg)
}

// Sent returns a copy of every frame sent so far.
func (l *Loopback) Sent() []sysex.Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sysex.Message, len(l.sent))
	copy(out, l.sent)
	return out
}

// Close releases every armed trigger.
func (l *Loopback) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()
	l.reg.Close()
	return nil
}
