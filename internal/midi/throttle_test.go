package midi

import (
	"context"
	"testing"
	"time"
)

func TestThrottleSpacesSends(t *testing.T) {
	th := NewThrottle(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := th.Wait(ctx); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	// first send is immediate, the next three are paced
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("4 throttled sends took %v, want at least 60ms of pacing", elapsed)
	}
}

func TestThrottleSafeMode(t *testing.T) {
	th := NewThrottle(10 * time.Millisecond)
	if got := th.Interval(); got != 10*time.Millisecond {
		t.Errorf("Interval() = %v, want 10ms", got)
	}
	th.SetSafeMode()
	th.SetSafeMode()
	if got := th.Interval(); got != 40*time.Millisecond {
		t.Errorf("Interval() in safe mode = %v, want 40ms", got)
	}
}

func TestThrottleHonoursContext(t *testing.T) {
	th := NewThrottle(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	if err := th.Wait(ctx); err != nil {
		t.Fatalf("first Wait() error = %v", err)
	}
	cancel()
	if err := th.Wait(ctx); err == nil {
		t.Error("Wait() with cancelled context should fail")
	}
}

func TestNewThrottleDefault(t *testing.T) {
	if got := NewThrottle(0).Interval(); got != DefaultThrottleInterval {
		t.Errorf("Interval() = %v, want %v", got, DefaultThrottleInterval)
	}
}
