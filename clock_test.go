package oxidation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonicClock(t *testing.T) {
	clk := MonotonicClock()

	prev := clk.Now()
	for i := 0; i < 1000; i++ {
		now := clk.Now()
		require.False(t, now.Before(prev), "monotonic clock went backwards")
		prev = now
	}
	assert.WithinDuration(t, time.Now(), clk.Now(), time.Second)
}

func TestWallClock(t *testing.T) {
	assert.WithinDuration(t, time.Now(), WallClock().Now(), time.Second)
}

func TestClock_Sleep(t *testing.T) {
	for name, clk := range map[string]Clock{"monotonic": MonotonicClock(), "wall": WallClock()} {
		t.Run(name, func(t *testing.T) {
			start := time.Now()
			require.NoError(t, clk.Sleep(context.Background(), 2*time.Millisecond))
			assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)

			// Sub-threshold waits spin instead of arming a timer.
			require.NoError(t, clk.Sleep(context.Background(), 50*time.Microsecond))
			require.NoError(t, clk.Sleep(context.Background(), 0))
		})
	}
}

func TestClock_SleepCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := WallClock().Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestManualClock(t *testing.T) {
	clk := NewManualClock(testStart)
	assert.Equal(t, testStart, clk.Now())

	clk.Advance(time.Second)
	assert.Equal(t, testStart.Add(time.Second), clk.Now())

	clk.Advance(-2 * time.Second)
	assert.Equal(t, testStart.Add(-time.Second), clk.Now())

	clk.Set(testStart)
	require.NoError(t, clk.Sleep(context.Background(), 3*time.Millisecond))
	assert.Equal(t, testStart.Add(3*time.Millisecond), clk.Now())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, clk.Sleep(ctx, time.Hour), context.Canceled)
	assert.Equal(t, testStart.Add(3*time.Millisecond), clk.Now(), "canceled sleep must not advance")
}
