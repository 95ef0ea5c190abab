package midi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottleInterval is the minimum gap between throttled sends.
const DefaultThrottleInterval = 20 * time.Millisecond

// safeModeFactor stretches the throttle interval in safe mode.
const safeModeFactor = 4

// Throttle paces consecutive sends.
type Throttle struct {
	mu       sync.Mutex
	limiter  *rate.Limiter
	interval time.Duration
	safe     bool
}

// NewThrottle creates a throttle allowing one send per interval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until the next send is allowed or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	return t.limiter.Wait(ctx)
}

// SetSafeMode switches to the slower safe-mode pacing. It cannot be undone.
func (t *Throttle) SetSafeMode() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.safe {
		return
	}
	t.safe = true
	t.limiter.SetLimit(rate.Every(t.interval * safeModeFactor))
}

// Interval returns the current gap between throttled sends.
func (t *Throttle) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.safe {
		return t.interval * safeModeFactor
	}
	return t.interval
}
