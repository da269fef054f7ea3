package config

import (
	"fmt"
	"os"
	"strconv"
)

// FromEnv overlays OXIDATION_* environment variables onto cfg. Values are
// validated by Resolve, except OXIDATION_METRICS which must parse as a bool.
func FromEnv(cfg *File) error {
	if v := os.Getenv("OXIDATION_EPOCH"); v != "" {
		cfg.Epoch = v
	}
	if v := os.Getenv("OXIDATION_WORKER_ID"); v != "" {
		cfg.WorkerID = v
	}
	if v := os.Getenv("OXIDATION_LAYOUT"); v != "" {
		cfg.Layout = v
	}
	if v := os.Getenv("OXIDATION_CLOCK"); v != "" {
		cfg.Clock = v
	}
	if v := os.Getenv("OXIDATION_MAX_CLOCK_BACKWARD"); v != "" {
		cfg.MaxClockBackward = v
	}
	if v := os.Getenv("OXIDATION_MAX_CLOCK_STALL"); v != "" {
		cfg.MaxClockStall = v
	}
	if v := os.Getenv("OXIDATION_METRICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("OXIDATION_METRICS: %w", err)
		}
		cfg.Metrics = b
	}
	return nil
}
