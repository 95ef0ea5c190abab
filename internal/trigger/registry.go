package trigger

import (
	"sync"

	"github.com/dcontrol/midiboot/internal/sysex"
)

// Registry tracks the triggers armed against one inbound stream.
type Registry struct {
	mu       sync.Mutex
	triggers []*Trigger
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Arm creates a trigger for p and registers it. Arming on a closed registry
// returns a trigger that is already closed.
func (r *Registry) Arm(p *sysex.Pattern) *Trigger {
	t := newTrigger(r, p)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		t.shutdown()
		return t
	}
	r.triggers = append(r.triggers, t)
	return t
}

// Deliver offers msg to every armed trigger, in arming order.
func (r *Registry) Deliver(msg sysex.Message) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	snapshot := make([]*Trigger, len(r.triggers))
	copy(snapshot, r.triggers)
	r.mu.Unlock()

	for _, t := range snapshot {
		t.offer(msg)
	}
}

// Len returns the number of armed triggers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.triggers)
}

// Close tears down every armed trigger and rejects further arming.
// It is called when the owning connection goes away.
func (r *Registry) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	armed := r.triggers
	r.triggers = nil
	r.mu.Unlock()

	for _, t := range armed {
		t.shutdown()
	}
}

func (r *Registry) remove(t *Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, armed := range r.triggers {
		if armed == t {
			r.triggers = append(r.triggers[:i], r.triggers[i+1:]...)
			return
		}
	}
}
