package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/sxyafiq/oxidation"
)

// File is the on-disk configuration. Values are kept in their text form
// until Resolve so that the file and the environment share one parser.
type File struct {
	Epoch            string `toml:"epoch"`
	WorkerID         string `toml:"worker_id"`
	Layout           string `toml:"layout"`
	Clock            string `toml:"clock"`
	MaxClockBackward string `toml:"max_clock_backward"`
	MaxClockStall    string `toml:"max_clock_stall"`
	Metrics          bool   `toml:"metrics"`
}

// Clock names accepted by Resolve.
const (
	ClockMonotonic = "monotonic"
	ClockWall      = "wall"
)

// Default returns built-in defaults.
func Default() File {
	return File{
		Epoch:            oxidation.DefaultEpoch.Format(time.RFC3339),
		WorkerID:         "0",
		Layout:           "wide",
		Clock:            ClockMonotonic,
		MaxClockBackward: oxidation.DefaultMaxClockBackward.String(),
		MaxClockStall:    oxidation.DefaultMaxClockStall.String(),
		Metrics:          true,
	}
}

// Load reads a TOML file over the defaults. If path is empty, returns
// defaults. Unknown keys are rejected.
func Load(path string) (File, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}
	md, err := toml.Decode(string(b), &cfg)
	if err != nil {
		return File{}, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return File{}, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Resolve turns the text settings into an engine configuration. The result
// is not validated against the clock; NewWithConfig does that.
func (f File) Resolve() (oxidation.Config, error) {
	epoch, err := time.Parse(time.RFC3339, strings.TrimSpace(f.Epoch))
	if err != nil {
		return oxidation.Config{}, fmt.Errorf("epoch %q: want RFC 3339: %w", f.Epoch, err)
	}
	worker, err := oxidation.ParseWorkerID(f.WorkerID)
	if err != nil {
		return oxidation.Config{}, err
	}

	cfg := oxidation.DefaultConfig(epoch.UTC(), worker)
	cfg.EnableMetrics = f.Metrics

	if cfg.Layout, err = oxidation.LayoutByName(f.Layout); err != nil {
		return oxidation.Config{}, err
	}
	if cfg.Clock, err = ParseClock(f.Clock); err != nil {
		return oxidation.Config{}, err
	}
	if cfg.MaxClockBackward, err = parseDuration("max_clock_backward", f.MaxClockBackward); err != nil {
		return oxidation.Config{}, err
	}
	if cfg.MaxClockStall, err = parseDuration("max_clock_stall", f.MaxClockStall); err != nil {
		return oxidation.Config{}, err
	}
	return cfg, nil
}

// ParseClock returns the clock with the given name. An empty name selects
// the monotonic clock.
func ParseClock(name string) (oxidation.Clock, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", ClockMonotonic:
		return oxidation.MonotonicClock(), nil
	case ClockWall:
		return oxidation.WallClock(), nil
	default:
		return nil, fmt.Errorf("unknown clock %q (valid: %s, %s)", name, ClockMonotonic, ClockWall)
	}
}

func parseDuration(key, s string) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: must not be negative, got %v", key, d)
	}
	return d, nil
}
