package oxidation

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// Clock is the time source of an engine.
//
// Sleep blocks for d or until ctx is done, whichever comes first, and returns
// ctx.Err() in the latter case.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// MonotonicClock returns a clock that reads wall time captured at creation
// plus the process monotonic reading since then.
//
// It is immune to NTP steps, leap seconds and manual time changes for the
// life of the process, so an engine on this clock never observes a
// regression. This is the default clock.
func MonotonicClock() Clock {
	return &monotonicClock{start: time.Now()}
}

// WallClock returns a clock that reads raw wall time. Regressions of the
// system clock are observable and handled by the engine's bounded wait.
func WallClock() Clock {
	return wallClock{}
}

type monotonicClock struct {
	start time.Time
}

func (c *monotonicClock) Now() time.Time {
	// start carries a monotonic reading, so Since is monotonic too
	return c.start.Round(0).Add(time.Since(c.start))
}

func (c *monotonicClock) Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().Round(0) }

func (wallClock) Sleep(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

// sleep is a hybrid wait: a timer for most of the duration, then a yielding
// spin for the final stretch, since timer granularity is coarse compared to
// a millisecond time unit.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	deadline := time.Now().Add(d)

	if d > 100*time.Microsecond {
		timer := time.NewTimer(d - 50*time.Microsecond)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		runtime.Gosched()
	}
	return nil
}

// ManualClock is a deterministic clock. Time only moves when Set, Advance or
// Sleep is called; Sleep advances the clock by the requested duration.
//
// It is intended for tests and simulations of clock regressions.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock reading t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d without blocking.
func (c *ManualClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// Set moves the clock to t, which may be in the past.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock by d, which may be negative.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
