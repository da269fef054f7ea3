// Package oxidation provides a coordination-free unique identifier generator
// in the Snowflake family, and the Flake value type it produces.
//
// # Overview
//
// An Engine composes three fields into a Flake, most-significant-first:
//
//	┌──────────────────────────┬────────────────────┬────────────────┐
//	│  elapsed time since the  │     worker id      │   per-unit     │
//	│  epoch, in layout units  │  (caller-assigned) │   counter      │
//	└──────────────────────────┴────────────────────┴────────────────┘
//
// Flakes from one engine are strictly increasing. Flakes from engines with
// distinct worker ids never collide, without any coordination between them.
// Field widths and the time unit are chosen by a Layout; the default
// LayoutWide packs time:64 | worker:48 | counter:16 at millisecond precision
// into 128 bits.
//
// # Clock Handling
//
//   - Counter exhaustion: the engine waits for the next time unit. The wait
//     is not cancellable but is bounded by Config.MaxClockStall.
//   - Clock regression: the engine waits for the clock to catch up, bounded
//     by Config.MaxClockBackward, then fails with a *ClockError. A past time
//     unit is never reused.
//
// # Usage
//
//	// Default engine (worker 0, epoch 2013-01-01)
//	f, err := oxidation.Oxidize()
//
//	// Dedicated engine for a node
//	eng, err := oxidation.New(oxidation.DefaultEpoch, 42)
//	f, err := eng.Oxidize()
//	fmt.Println(f, f.Decimal())
//
//	// Compact 64-bit identifiers
//	cfg := oxidation.DefaultConfig(oxidation.DefaultEpoch, 42)
//	cfg.Layout = oxidation.LayoutSnowflake
//	eng, err := oxidation.NewWithConfig(cfg)
package oxidation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultMaxClockBackward is the default bound on the clock-regression
	// wait.
	DefaultMaxClockBackward = 5 * time.Millisecond

	// DefaultMaxClockStall is the default bound on the counter-exhaustion
	// wait.
	DefaultMaxClockStall = time.Second
)

// DefaultEpoch is January 1, 2013 00:00:00 UTC.
var DefaultEpoch = time.Date(2013, time.January, 1, 0, 0, 0, 0, time.UTC)

// Config holds the construction parameters of an Engine.
type Config struct {
	// Epoch is the point in time elapsed time is measured from. It must not
	// be zero and must not be after the clock's current time.
	Epoch time.Time

	// WorkerID uniquely identifies this engine. It must fit the layout's
	// worker field.
	WorkerID WorkerID

	// Layout packs the fields into a Flake.
	// Default: LayoutWide
	//
	// IMPORTANT: Flakes produced under different layouts are not comparable.
	Layout Layout

	// Clock is the time source.
	// Default: MonotonicClock()
	Clock Clock

	// MaxClockBackward bounds the wait for a regressed clock to catch up.
	// Zero fails on the first regression.
	// Default: 5 milliseconds
	MaxClockBackward time.Duration

	// MaxClockStall bounds the wait for the next time unit when the counter
	// is exhausted. Zero selects the default.
	// Default: 1 second
	MaxClockStall time.Duration

	// EnableMetrics turns on the atomic counters reported by Metrics.
	// Default: true
	EnableMetrics bool
}

// DefaultConfig returns a Config for the given epoch and worker id with
// defaults for everything else:
//   - Layout: LayoutWide
//   - Clock: MonotonicClock()
//   - MaxClockBackward: 5ms
//   - MaxClockStall: 1s
//   - EnableMetrics: true
func DefaultConfig(epoch time.Time, worker WorkerID) Config {
	return Config{
		Epoch:            epoch,
		WorkerID:         worker,
		Layout:           LayoutWide,
		Clock:            MonotonicClock(),
		MaxClockBackward: DefaultMaxClockBackward,
		MaxClockStall:    DefaultMaxClockStall,
		EnableMetrics:    true,
	}
}

// Validate checks the configuration, filling in a nil Layout, a nil Clock
// and a zero MaxClockStall with their defaults.
//
// Validation rules:
//   - Layout must be valid
//   - WorkerID must fit the layout's worker field
//   - Epoch must be set and not after the clock's current time
//   - MaxClockBackward and MaxClockStall must be non-negative
func (c *Config) Validate() error {
	if c.Layout == nil {
		c.Layout = LayoutWide
	}
	if c.Clock == nil {
		c.Clock = MonotonicClock()
	}
	if c.MaxClockStall == 0 {
		c.MaxClockStall = DefaultMaxClockStall
	}

	if err := c.Layout.Validate(); err != nil {
		return err
	}
	if err := ValidateWorkerID(c.Layout, c.WorkerID); err != nil {
		return err
	}

	if c.Epoch.IsZero() {
		return newConfigError("Epoch", "0001-01-01T00:00:00Z", "must be set",
			"a fixed point in time", nil)
	}
	if now := c.Clock.Now(); c.Epoch.After(now) {
		return newConfigError("Epoch", c.Epoch.Format(time.RFC3339Nano), "in the future",
			"must not be after "+now.Format(time.RFC3339Nano), nil)
	}

	if c.MaxClockBackward < 0 {
		return newConfigError("MaxClockBackward", c.MaxClockBackward.String(),
			"must be non-negative", "duration must be >= 0", nil)
	}
	if c.MaxClockStall < 0 {
		return newConfigError("MaxClockStall", c.MaxClockStall.String(),
			"must be non-negative", "duration must be >= 0", nil)
	}
	return nil
}

// Metrics is a snapshot of an engine's counters.
type Metrics struct {
	Generated        int64 // Flakes successfully produced
	ClockBackward    int64 // Clock regressions observed, including recovered ones
	ClockBackwardErr int64 // Regressions that exceeded MaxClockBackward
	CounterExhausted int64 // Times the counter ran out within a time unit
	ClockStalled     int64 // Exhaustion waits that exceeded MaxClockStall
	WaitTimeUs       int64 // Total time spent waiting, in microseconds
}

// Engine produces Flakes.
//
// # Thread Safety
//
// Engine is safe for concurrent use. The last observed time unit and the
// counter are guarded by a single mutex; Flakes are ordered by the order in
// which callers acquire it. Engines share no state with each other.
type Engine struct {
	mu      sync.Mutex
	last    int64  // Last time unit used; meaningful once issued is set
	counter uint64 // Counter within last
	issued  bool

	epoch            time.Time
	workerID         WorkerID
	layout           Layout
	clock            Clock
	unit             time.Duration
	maxClockBackward time.Duration
	maxClockStall    time.Duration
	metrics          bool

	generated        atomic.Int64
	clockBackward    atomic.Int64
	clockBackwardErr atomic.Int64
	counterExhausted atomic.Int64
	clockStalled     atomic.Int64
	waitTimeUs       atomic.Int64
}

// New creates an Engine for the given epoch and worker id using
// DefaultConfig.
//
// Example:
//
//	eng, err := oxidation.New(oxidation.DefaultEpoch, 42)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	f, err := eng.Oxidize()
func New(epoch time.Time, worker WorkerID) (*Engine, error) {
	return NewWithConfig(DefaultConfig(epoch, worker))
}

// NewWithConfig creates an Engine from cfg.
//
// Besides validating cfg it checks that the epoch/layout pair can represent
// the current time, so an exhausted time field fails at construction rather
// than at the first Oxidize.
func NewWithConfig(cfg Config) (*Engine, error) {
	if err := (&cfg).Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		epoch:            cfg.Epoch,
		workerID:         cfg.WorkerID,
		layout:           cfg.Layout,
		clock:            cfg.Clock,
		unit:             cfg.Layout.TimeUnit(),
		maxClockBackward: cfg.MaxClockBackward,
		maxClockStall:    cfg.MaxClockStall,
		metrics:          cfg.EnableMetrics,
	}

	if now := e.since(e.clock.Now()); now > 0 && uint64(now) > e.layout.MaxElapsed() {
		return nil, &OverflowError{Elapsed: uint64(now), MaxElapsed: e.layout.MaxElapsed(), Layout: e.layout.String()}
	}
	return e, nil
}

// Oxidize produces a new Flake.
//
// It may block for a bounded time while the counter is exhausted or the
// clock has regressed.
func (e *Engine) Oxidize() (Flake, error) {
	return e.OxidizeContext(context.Background())
}

// OxidizeContext is like Oxidize. ctx cancels the clock-regression wait; the
// counter-exhaustion wait is bounded by MaxClockStall instead.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
//	defer cancel()
//	f, err := eng.OxidizeContext(ctx)
func (e *Engine) OxidizeContext(ctx context.Context) (Flake, error) {
	if err := ctx.Err(); err != nil {
		return Zero, fmt.Errorf("%w: %w", ErrContextCanceled, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	f, err := e.next(ctx)
	if err != nil {
		return Zero, err
	}
	e.count(&e.generated, 1)
	return f, nil
}

// MustOxidize is like Oxidize but panics on error.
func (e *Engine) MustOxidize() Flake {
	f, err := e.Oxidize()
	if err != nil {
		panic(err)
	}
	return f
}

// OxidizeBatch produces n Flakes under a single lock acquisition.
//
// On failure the Flakes produced so far are returned along with the error;
// they are valid and unique.
//
// Example:
//
//	flakes, err := eng.OxidizeBatch(ctx, 1000)
//	if err != nil {
//	    // flakes may hold a partial batch
//	}
func (e *Engine) OxidizeBatch(ctx context.Context, n int) ([]Flake, error) {
	if n <= 0 {
		return []Flake{}, nil
	}
	flakes := make([]Flake, 0, n)

	e.mu.Lock()
	defer func() {
		e.mu.Unlock()
		e.count(&e.generated, int64(len(flakes)))
	}()

	for i := 0; i < n; i++ {
		// Check cancellation periodically
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return flakes, fmt.Errorf("%w: %w", ErrContextCanceled, err)
			}
		}

		f, err := e.next(ctx)
		if err != nil {
			return flakes, err
		}
		flakes = append(flakes, f)
	}
	return flakes, nil
}

// next advances the engine state and packs one Flake. The caller holds mu.
//
// State is committed only when packing succeeds, so a failed call leaves
// the engine as it was.
func (e *Engine) next(ctx context.Context) (Flake, error) {
	now := e.since(e.clock.Now())

	if !e.issued && now < 0 {
		return Zero, newConfigError("Epoch", e.epoch.Format(time.RFC3339Nano),
			"after current time", "clock must read at or after the epoch", nil)
	}

	var err error
	if e.issued && now < e.last {
		if now, err = e.waitRegression(ctx, now); err != nil {
			return Zero, err
		}
	}

	counter := uint64(0)
	if e.issued && now == e.last {
		if e.counter < e.layout.MaxCounter() {
			counter = e.counter + 1
		} else if now, err = e.waitNextUnit(); err != nil {
			return Zero, err
		}
	}

	f, err := e.layout.Pack(uint64(now), e.workerID, counter)
	if err != nil {
		return Zero, err
	}

	e.last = now
	e.counter = counter
	e.issued = true
	return f, nil
}

// waitRegression polls the clock until it reaches the last time unit. The
// accumulated sleep is bounded by maxClockBackward.
func (e *Engine) waitRegression(ctx context.Context, now int64) (int64, error) {
	e.count(&e.clockBackward, 1)

	var waited time.Duration
	defer func() { e.count(&e.waitTimeUs, waited.Microseconds()) }()

	for {
		t := e.clock.Now()
		now = e.since(t)
		if now >= e.last {
			return now, nil
		}

		remaining := e.maxClockBackward - waited
		if remaining <= 0 {
			e.count(&e.clockBackwardErr, 1)
			return 0, &ClockError{
				Current:   now,
				Last:      e.last,
				Drift:     e.unitStart(e.last).Sub(t),
				Tolerance: e.maxClockBackward,
				WorkerID:  e.workerID,
			}
		}

		d := e.unitStart(e.last).Sub(t)
		if d > remaining {
			d = remaining
		}
		if err := e.clock.Sleep(ctx, d); err != nil {
			return 0, fmt.Errorf("%w: %w", ErrContextCanceled, err)
		}
		waited += d
	}
}

// waitNextUnit waits for the clock to pass the last time unit after the
// counter is exhausted. It ignores cancellation and is bounded by
// maxClockStall.
func (e *Engine) waitNextUnit() (int64, error) {
	e.count(&e.counterExhausted, 1)

	var waited time.Duration
	defer func() { e.count(&e.waitTimeUs, waited.Microseconds()) }()

	for {
		t := e.clock.Now()
		if now := e.since(t); now > e.last {
			return now, nil
		}

		remaining := e.maxClockStall - waited
		if remaining <= 0 {
			e.count(&e.clockStalled, 1)
			return 0, &ClockError{
				Current:   e.since(t),
				Last:      e.last,
				Tolerance: e.maxClockStall,
				WorkerID:  e.workerID,
				Stalled:   true,
			}
		}

		d := e.unitStart(e.last + 1).Sub(t)
		if d > remaining {
			d = remaining
		}
		_ = e.clock.Sleep(context.Background(), d)
		waited += d
	}
}

// since converts t to whole time units since the epoch, rounding toward
// negative infinity.
func (e *Engine) since(t time.Time) int64 {
	d := t.Sub(e.epoch)
	units := int64(d / e.unit)
	if d < 0 && d%e.unit != 0 {
		units--
	}
	return units
}

// unitStart returns the instant time unit u begins.
func (e *Engine) unitStart(u int64) time.Time {
	return e.epoch.Add(time.Duration(u) * e.unit)
}

func (e *Engine) count(c *atomic.Int64, n int64) {
	if e.metrics {
		c.Add(n)
	}
}

// Metrics returns a snapshot of the engine's counters. All counters read
// zero when metrics are disabled.
func (e *Engine) Metrics() Metrics {
	return Metrics{
		Generated:        e.generated.Load(),
		ClockBackward:    e.clockBackward.Load(),
		ClockBackwardErr: e.clockBackwardErr.Load(),
		CounterExhausted: e.counterExhausted.Load(),
		ClockStalled:     e.clockStalled.Load(),
		WaitTimeUs:       e.waitTimeUs.Load(),
	}
}

// ResetMetrics zeroes the counters. Intended for tests.
func (e *Engine) ResetMetrics() {
	e.generated.Store(0)
	e.clockBackward.Store(0)
	e.clockBackwardErr.Store(0)
	e.counterExhausted.Store(0)
	e.clockStalled.Store(0)
	e.waitTimeUs.Store(0)
}

// Decode unpacks a Flake produced by this engine.
func (e *Engine) Decode(f Flake) Components {
	return Decode(f, e.layout, e.epoch)
}

// Epoch returns the engine's epoch.
func (e *Engine) Epoch() time.Time { return e.epoch }

// WorkerID returns the engine's worker id.
func (e *Engine) WorkerID() WorkerID { return e.workerID }

// Layout returns the engine's layout.
func (e *Engine) Layout() Layout { return e.layout }

// Default engine (worker 0, DefaultEpoch) for the package-level functions.
//
// It is initialized on first use. Deployments with more than one node must
// create their own Engine with a unique worker id instead.
var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
	defaultEngineErr  error
)

func initDefaultEngine() {
	defaultEngine, defaultEngineErr = New(DefaultEpoch, 0)
}

// Oxidize produces a Flake from the default engine.
func Oxidize() (Flake, error) {
	return OxidizeContext(context.Background())
}

// OxidizeContext produces a Flake from the default engine with context
// support.
func OxidizeContext(ctx context.Context) (Flake, error) {
	defaultEngineOnce.Do(initDefaultEngine)
	if defaultEngineErr != nil {
		return Zero, defaultEngineErr
	}
	return defaultEngine.OxidizeContext(ctx)
}

// MustOxidize produces a Flake from the default engine and panics on error.
func MustOxidize() Flake {
	f, err := Oxidize()
	if err != nil {
		panic(err)
	}
	return f
}

// DefaultMetrics returns the default engine's counters.
func DefaultMetrics() (Metrics, error) {
	defaultEngineOnce.Do(initDefaultEngine)
	if defaultEngineErr != nil {
		return Metrics{}, defaultEngineErr
	}
	return defaultEngine.Metrics(), nil
}
