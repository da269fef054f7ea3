// Package oxidation - layout.go provides the pluggable bit layouts that pack
// (elapsed time, worker id, counter) into a Flake.
//
// Fields are packed most-significant-first in that order, so Flakes from one
// worker sort in issuance order and Flakes across workers sort by time.

package oxidation

import (
	"fmt"
	"math"
	"math/bits"
	"sort"
	"strings"
	"time"
)

// Layout is the strategy an engine delegates packing to.
//
// Packing is pure and deterministic. Unpack is the exact inverse of Pack for
// every value Pack accepts.
type Layout interface {
	// Pack composes the three fields into a Flake. It fails with an
	// *OverflowError when elapsed does not fit the time field, and with a
	// *ConfigError when the worker id does not fit the worker field.
	Pack(elapsed uint64, worker WorkerID, counter uint64) (Flake, error)

	// Unpack recovers the three fields from a Flake.
	Unpack(f Flake) (elapsed uint64, worker WorkerID, counter uint64)

	// TimeUnit is the quantum of the time field.
	TimeUnit() time.Duration

	// MaxElapsed is the largest value the time field holds.
	MaxElapsed() uint64

	// MaxWorkerID is the largest worker id the worker field holds.
	MaxWorkerID() WorkerID

	// MaxCounter is the largest per-unit counter value.
	MaxCounter() uint64

	// Width is the number of bits of the packed value (64 or 128).
	Width() int

	// Validate reports whether the field widths are usable.
	Validate() error

	String() string
}

// BitLayout is the compact fixed-width layout: the three fields share the
// low 64 bits of a Flake.
//
// Example:
//
//	cfg := oxidation.DefaultConfig(oxidation.DefaultEpoch, 42)
//	cfg.Layout = oxidation.LayoutSnowflake
//	eng, err := oxidation.NewWithConfig(cfg)
type BitLayout struct {
	// TimeBits is the width of the elapsed-time field.
	TimeBits int

	// WorkerBits is the width of the worker id field. Zero is allowed and
	// admits only worker id 0.
	WorkerBits int

	// CounterBits is the width of the per-unit counter field.
	CounterBits int

	// Unit is the precision of the time field.
	Unit time.Duration
}

// WideLayout is the arbitrary-precision layout: the three fields share all
// 128 bits of a Flake, each field up to 64 bits wide. It serves deployments
// that need a larger worker id space (for example a 48-bit hardware address)
// or a longer-lived epoch than 64 bits allow.
type WideLayout struct {
	TimeBits    int
	WorkerBits  int
	CounterBits int
	Unit        time.Duration
}

// Pre-defined layouts.
//
// IMPORTANT: Flakes produced under different layouts are not comparable.
// Choose once per identifier space.
var (
	// LayoutCompact is time:32 | worker:16 | counter:16 with one-second
	// precision: ~136 years of lifespan, 65,536 workers, 65,536 Flakes per
	// second per worker.
	LayoutCompact = BitLayout{
		TimeBits:    32,
		WorkerBits:  16,
		CounterBits: 16,
		Unit:        time.Second,
	}

	// LayoutSnowflake is the Twitter Snowflake layout (41|10|12 at 1ms). The
	// top bit stays clear, so values fit signed 64-bit columns.
	LayoutSnowflake = BitLayout{
		TimeBits:    41,
		WorkerBits:  10,
		CounterBits: 12,
		Unit:        time.Millisecond,
	}

	// LayoutSuperior trades throughput for nodes: 16,384 workers at 512K
	// Flakes per second each, ~35 years.
	LayoutSuperior = BitLayout{
		TimeBits:    40,
		WorkerBits:  14,
		CounterBits: 9,
		Unit:        time.Millisecond,
	}

	// LayoutSonyflake mimics Sonyflake (39|16|8 at 10ms), ~174 years.
	LayoutSonyflake = BitLayout{
		TimeBits:    39,
		WorkerBits:  16,
		CounterBits: 8,
		Unit:        10 * time.Millisecond,
	}

	// LayoutWide is time:64 | worker:48 | counter:16 at 1ms, the classic
	// 128-bit flake. A 48-bit worker field holds a hardware address; see
	// HardwareWorkerID.
	LayoutWide = WideLayout{
		TimeBits:    64,
		WorkerBits:  48,
		CounterBits: 16,
		Unit:        time.Millisecond,
	}
)

var namedLayouts = map[string]Layout{
	"compact":   LayoutCompact,
	"snowflake": LayoutSnowflake,
	"superior":  LayoutSuperior,
	"sonyflake": LayoutSonyflake,
	"wide":      LayoutWide,
}

// LayoutByName resolves a pre-defined layout by its lower-case name.
func LayoutByName(name string) (Layout, error) {
	l, ok := namedLayouts[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, newConfigError("Layout", name, "unknown layout",
			"one of "+strings.Join(LayoutNames(), ", "), ErrInvalidLayout)
	}
	return l, nil
}

// LayoutNames lists the pre-defined layout names in sorted order.
func LayoutNames() []string {
	names := make([]string, 0, len(namedLayouts))
	for name := range namedLayouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ============================================================================
// BitLayout
// ============================================================================

// Validate checks the field widths.
//
// A valid BitLayout has a positive time and counter field, a non-negative
// worker field, a total of at most 64 bits, and a positive time unit.
func (l BitLayout) Validate() error {
	return validateFields(l.TimeBits, l.WorkerBits, l.CounterBits, l.Unit, 64)
}

// Pack composes the fields into the low 64 bits of a Flake.
func (l BitLayout) Pack(elapsed uint64, worker WorkerID, counter uint64) (Flake, error) {
	if err := checkFields(l, elapsed, worker, counter); err != nil {
		return Flake{}, err
	}
	v := elapsed<<(l.WorkerBits+l.CounterBits) |
		uint64(worker)<<l.CounterBits |
		counter
	return FlakeFromUint64(v), nil
}

// Unpack recovers the fields from the low 64 bits of a Flake.
func (l BitLayout) Unpack(f Flake) (elapsed uint64, worker WorkerID, counter uint64) {
	_, v := f.halves()
	counter = v & fieldMax(l.CounterBits)
	worker = WorkerID((v >> l.CounterBits) & fieldMax(l.WorkerBits))
	elapsed = (v >> (l.WorkerBits + l.CounterBits)) & fieldMax(l.TimeBits)
	return
}

func (l BitLayout) TimeUnit() time.Duration { return l.Unit }
func (l BitLayout) MaxElapsed() uint64       { return fieldMax(l.TimeBits) }
func (l BitLayout) MaxWorkerID() WorkerID    { return WorkerID(fieldMax(l.WorkerBits)) }
func (l BitLayout) MaxCounter() uint64       { return fieldMax(l.CounterBits) }
func (l BitLayout) Width() int               { return 64 }

func (l BitLayout) String() string {
	return fmt.Sprintf("bits64(time:%d|worker:%d|counter:%d@%v)",
		l.TimeBits, l.WorkerBits, l.CounterBits, l.Unit)
}

// ============================================================================
// WideLayout
// ============================================================================

// Validate checks the field widths. Each field holds at most 64 bits and the
// total is at most 128.
func (l WideLayout) Validate() error {
	if err := validateFields(l.TimeBits, l.WorkerBits, l.CounterBits, l.Unit, 128); err != nil {
		return err
	}
	for _, w := range []int{l.TimeBits, l.WorkerBits, l.CounterBits} {
		if w > 64 {
			return newConfigError("Layout", l.String(), "field wider than 64 bits",
				"each field must be at most 64 bits", ErrInvalidLayout)
		}
	}
	return nil
}

// Pack composes the fields across all 128 bits of a Flake.
func (l WideLayout) Pack(elapsed uint64, worker WorkerID, counter uint64) (Flake, error) {
	if err := checkFields(l, elapsed, worker, counter); err != nil {
		return Flake{}, err
	}
	t := shl128(elapsed, uint(l.WorkerBits+l.CounterBits))
	w := shl128(uint64(worker), uint(l.CounterBits))
	return flakeFromHalves(t.hi|w.hi, t.lo|w.lo|counter), nil
}

// Unpack recovers the fields from a Flake.
func (l WideLayout) Unpack(f Flake) (elapsed uint64, worker WorkerID, counter uint64) {
	hi, lo := f.halves()
	v := uint128{hi: hi, lo: lo}
	counter = lo & fieldMax(l.CounterBits)
	worker = WorkerID(shr128(v, uint(l.CounterBits)) & fieldMax(l.WorkerBits))
	elapsed = shr128(v, uint(l.WorkerBits+l.CounterBits)) & fieldMax(l.TimeBits)
	return
}

func (l WideLayout) TimeUnit() time.Duration { return l.Unit }
func (l WideLayout) MaxElapsed() uint64       { return fieldMax(l.TimeBits) }
func (l WideLayout) MaxWorkerID() WorkerID    { return WorkerID(fieldMax(l.WorkerBits)) }
func (l WideLayout) MaxCounter() uint64       { return fieldMax(l.CounterBits) }
func (l WideLayout) Width() int               { return 128 }

func (l WideLayout) String() string {
	return fmt.Sprintf("bits128(time:%d|worker:%d|counter:%d@%v)",
		l.TimeBits, l.WorkerBits, l.CounterBits, l.Unit)
}

// ============================================================================
// Shared helpers
// ============================================================================

// ValidateWorkerID checks that worker fits the layout's worker field.
func ValidateWorkerID(l Layout, worker WorkerID) error {
	if worker > l.MaxWorkerID() {
		return newConfigError("WorkerID", worker.String(), "too wide for layout",
			fmt.Sprintf("must be between 0 and %d", l.MaxWorkerID()), ErrWorkerIDTooLarge)
	}
	return nil
}

func validateFields(timeBits, workerBits, counterBits int, unit time.Duration, width int) error {
	layout := fmt.Sprintf("%d|%d|%d", timeBits, workerBits, counterBits)
	switch {
	case timeBits <= 0:
		return newConfigError("Layout", layout, "time field must be positive",
			"time bits > 0", ErrInvalidLayout)
	case workerBits < 0:
		return newConfigError("Layout", layout, "worker field cannot be negative",
			"worker bits >= 0", ErrInvalidLayout)
	case counterBits <= 0:
		return newConfigError("Layout", layout, "counter field must be positive",
			"counter bits > 0", ErrInvalidLayout)
	case timeBits+workerBits+counterBits > width:
		return newConfigError("Layout", layout, "fields exceed layout width",
			fmt.Sprintf("total bits must be at most %d", width), ErrInvalidLayout)
	case unit <= 0:
		return newConfigError("Layout", unit.String(), "time unit must be positive",
			"unit > 0", ErrInvalidLayout)
	}
	return nil
}

func checkFields(l Layout, elapsed uint64, worker WorkerID, counter uint64) error {
	if elapsed > l.MaxElapsed() {
		return &OverflowError{Elapsed: elapsed, MaxElapsed: l.MaxElapsed(), Layout: l.String()}
	}
	if err := ValidateWorkerID(l, worker); err != nil {
		return err
	}
	if counter > l.MaxCounter() {
		return fmt.Errorf("%w: counter %d exceeds layout maximum %d", ErrOutOfRange, counter, l.MaxCounter())
	}
	return nil
}

// fieldMax returns the largest value of an n-bit field; zero for n <= 0.
func fieldMax(n int) uint64 {
	if n <= 0 {
		return 0
	}
	if n >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << n) - 1
}

// LayoutCapacity holds calculated capacity information for a Layout.
type LayoutCapacity struct {
	// Width is the packed width in bits.
	Width int

	// MaxWorkerID is the largest worker id.
	MaxWorkerID WorkerID

	// FlakesPerUnit is the number of Flakes one worker issues per time unit.
	FlakesPerUnit uint64

	// Lifespan is the duration from the epoch until the time field overflows,
	// capped at the largest time.Duration (~292 years).
	Lifespan time.Duration

	// ThroughputPerWorker is the theoretical max Flakes/sec per worker.
	ThroughputPerWorker float64

	// TimeUnit is the timestamp precision.
	TimeUnit time.Duration
}

// Capacity returns the theoretical capacity of l.
func Capacity(l Layout) LayoutCapacity {
	unit := l.TimeUnit()

	// float64 avoids overflow for wide time fields. float64(MaxInt64) rounds
	// up to 2^63, so the cap is assigned as a Duration.
	lifespan := time.Duration(math.MaxInt64)
	if ns := (float64(l.MaxElapsed()) + 1) * float64(unit); ns < float64(math.MaxInt64) {
		lifespan = time.Duration(ns)
	}

	perUnit := l.MaxCounter() + 1
	if l.MaxCounter() == math.MaxUint64 {
		perUnit = math.MaxUint64
	}

	return LayoutCapacity{
		Width:               l.Width(),
		MaxWorkerID:         l.MaxWorkerID(),
		FlakesPerUnit:       perUnit,
		Lifespan:            lifespan,
		ThroughputPerWorker: float64(perUnit) / unit.Seconds(),
		TimeUnit:            unit,
	}
}

// String returns a human-readable description of the layout capacity.
func (c LayoutCapacity) String() string {
	years := int(c.Lifespan.Hours() / 24 / 365)
	return fmt.Sprintf("Width: %d, MaxWorkerID: %d, ThroughputPerWorker: %.0f/sec, Lifespan: %d years, TimeUnit: %v",
		c.Width, c.MaxWorkerID, c.ThroughputPerWorker, years, c.TimeUnit)
}

// ============================================================================
// 128-bit arithmetic
// ============================================================================

type uint128 struct {
	hi, lo uint64
}

// shl128 shifts a 64-bit value left by n (< 128) into a 128-bit result.
func shl128(x uint64, n uint) uint128 {
	switch {
	case n == 0:
		return uint128{lo: x}
	case n < 64:
		return uint128{hi: x >> (64 - n), lo: x << n}
	default:
		return uint128{hi: x << (n - 64)}
	}
}

// shr128 returns the low 64 bits of v >> n (n < 128).
func shr128(v uint128, n uint) uint64 {
	switch {
	case n == 0:
		return v.lo
	case n < 64:
		return v.lo>>n | v.hi<<(64-n)
	default:
		return v.hi >> (n - 64)
	}
}

// divmod128 divides v by a small divisor.
func divmod128(v uint128, d uint64) (uint128, uint64) {
	qhi := v.hi / d
	r := v.hi % d
	qlo, r := bits.Div64(r, v.lo, d)
	return uint128{hi: qhi, lo: qlo}, r
}

// muladd128 computes v*m + a, reporting overflow past 128 bits.
func muladd128(v uint128, m, a uint64) (uint128, bool) {
	carry, lo := bits.Mul64(v.lo, m)
	over, hi := bits.Mul64(v.hi, m)
	if over != 0 {
		return uint128{}, true
	}
	hi, c := bits.Add64(hi, carry, 0)
	if c != 0 {
		return uint128{}, true
	}
	lo, c = bits.Add64(lo, a, 0)
	hi, c = bits.Add64(hi, 0, c)
	if c != 0 {
		return uint128{}, true
	}
	return uint128{hi: hi, lo: lo}, false
}

func (v uint128) isZero() bool { return v.hi == 0 && v.lo == 0 }
