package trigger

import (
	"context"
	"sync"
	"time"

	"github.com/dcontrol/midiboot/internal/sysex"
)

// Trigger queues the frames matching its pattern until they are dequeued.
type Trigger struct {
	reg *Registry

	mu      sync.Mutex
	pattern *sysex.Pattern
	queue   []sysex.Message
	count   int
	closed  bool

	// signal holds at most one pending wake-up for Wait.
	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newTrigger(r *Registry, p *sysex.Pattern) *Trigger {
	return &Trigger{
		reg:     r,
		pattern: p,
		signal:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (t *Trigger) offer(msg sysex.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || !t.pattern.Match(msg) {
		return
	}
	t.queue = append(t.queue, msg.Clone())
	t.count++
	select {
	case t.signal <- struct{}{}:
	default:
	}
}

// Wait blocks until a match is queued or timeout elapses. It reports whether
// a match is available without consuming it.
func (t *Trigger) Wait(timeout time.Duration) bool {
	return t.WaitContext(context.Background(), timeout)
}

// WaitContext is Wait that also gives up when ctx is done.
func (t *Trigger) WaitContext(ctx context.Context, timeout time.Duration) bool {
	if t.Pending() > 0 {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-t.signal:
			if t.Pending() > 0 {
				return true
			}
		case <-t.done:
			return false
		case <-ctx.Done():
			return false
		case <-timer.C:
			return t.Pending() > 0
		}
	}
}

// Dequeue removes and returns the oldest queued match.
func (t *Trigger) Dequeue() (sysex.Message, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.queue) == 0 {
		return nil, false
	}
	msg := t.queue[0]
	t.queue[0] = nil
	t.queue = t.queue[1:]
	return msg, true
}

// Pending returns the number of queued matches. A closed trigger has none.
func (t *Trigger) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0
	}
	return len(t.queue)
}

// Count returns the number of matches seen since arming or the last
// SetPattern.
func (t *Trigger) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// Pattern returns the pattern currently installed.
func (t *Trigger) Pattern() *sysex.Pattern {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pattern
}

// SetPattern re-arms the trigger. The new pattern is installed and queued
// matches, the counter and any pending wake-up are discarded under a single
// lock, so every frame is judged against exactly one of the two patterns.
func (t *Trigger) SetPattern(p *sysex.Pattern) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pattern = p
	t.queue = nil
	t.count = 0
	select {
	case <-t.signal:
	default:
	}
}

// Done is closed once the trigger is closed, directly or by its registry.
func (t *Trigger) Done() <-chan struct{} {
	return t.done
}

// Close deregisters the trigger and releases any waiter. It is safe to call
// more than once.
func (t *Trigger) Close() {
	t.shutdown()
	t.reg.remove(t)
}

func (t *Trigger) shutdown() {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		t.queue = nil
		t.mu.Unlock()
		close(t.done)
	})
}
