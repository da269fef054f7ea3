// Oxidation CLI - command-line tool for Flake generation and inspection.
//
// Usage:
//
//	oxidation generate [flags]           Generate Flakes
//	oxidation inspect <flake>            Decode a Flake into its fields
//	oxidation convert <flake> --to FMT   Convert a Flake between text forms
//	oxidation bench [flags]              Measure generation throughput
//	oxidation version                    Print the version
//
// Engine settings come from --config (TOML), then OXIDATION_* environment
// variables, then the global flags.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sxyafiq/oxidation"
	"github.com/sxyafiq/oxidation/internal/config"
)

const version = "1.0.0"

func main() {
	root := newRootCmd(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		logger := newLogger(os.Stderr, zerolog.ErrorLevel)
		logger.Error().Err(err).Msg("oxidation failed")
		os.Exit(1)
	}
}

// options are the global flags shared by every command.
type options struct {
	configPath string
	worker     string
	epoch      string
	layout     string
	clock      string
	logLevel   string

	out    io.Writer
	logger zerolog.Logger
	cfg    oxidation.Config
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	opts := &options{out: out}

	rootCmd := &cobra.Command{
		Use:           "oxidation",
		Short:         "Oxidation Flake generator CLI",
		Long:          "Oxidation generates coordination-free, time-ordered unique identifiers (Flakes) and converts between their text forms.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := zerolog.ParseLevel(strings.ToLower(opts.logLevel))
			if err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			opts.logger = newLogger(errOut, level)
			return opts.resolve(cmd)
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "TOML configuration file")
	pf.StringVar(&opts.worker, "worker", "", `worker id: decimal, 0x hex, MAC address or "hardware"`)
	pf.StringVar(&opts.epoch, "epoch", "", "epoch as RFC 3339 (default 2013-01-01T00:00:00Z)")
	pf.StringVar(&opts.layout, "layout", "", "bit layout: "+strings.Join(oxidation.LayoutNames(), ", "))
	pf.StringVar(&opts.clock, "clock", "", "time source: monotonic or wall")
	pf.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newGenerateCmd(opts),
		newInspectCmd(opts),
		newConvertCmd(opts),
		newBenchCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			// version needs no engine configuration
			PersistentPreRun: func(cmd *cobra.Command, args []string) {},
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(opts.out, "oxidation CLI version %s\n", version)
			},
		},
	)
	return rootCmd
}

// resolve layers the config file, the environment and explicitly set flags.
func (o *options) resolve(cmd *cobra.Command) error {
	file, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if err := config.FromEnv(&file); err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("worker") {
		file.WorkerID = o.worker
	}
	if flags.Changed("epoch") {
		file.Epoch = o.epoch
	}
	if flags.Changed("layout") {
		file.Layout = o.layout
	}
	if flags.Changed("clock") {
		file.Clock = o.clock
	}

	if o.cfg, err = file.Resolve(); err != nil {
		return err
	}
	o.logger.Debug().
		Str("epoch", o.cfg.Epoch.Format(time.RFC3339)).
		Stringer("worker", o.cfg.WorkerID).
		Stringer("layout", o.cfg.Layout).
		Dur("max_clock_backward", o.cfg.MaxClockBackward).
		Dur("max_clock_stall", o.cfg.MaxClockStall).
		Msg("resolved engine configuration")
	return nil
}

// ============================================================================
// Generate Command
// ============================================================================

func newGenerateCmd(opts *options) *cobra.Command {
	var (
		count      int
		format     string
		batch      bool
		jsonOutput bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate Flakes",
		Example: `  oxidation generate --worker 42
  oxidation generate --count 1000 --format base62 --batch
  oxidation generate --layout snowflake --format decimal --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			eng, err := oxidation.NewWithConfig(opts.cfg)
			if err != nil {
				return err
			}

			start := time.Now()
			var flakes []oxidation.Flake
			if batch {
				flakes, err = eng.OxidizeBatch(cmd.Context(), count)
				if err != nil {
					return err
				}
			} else {
				flakes = make([]oxidation.Flake, count)
				for i := range flakes {
					if flakes[i], err = eng.OxidizeContext(cmd.Context()); err != nil {
						return err
					}
				}
			}
			elapsed := time.Since(start)

			if jsonOutput {
				return writeJSON(opts.out, eng, flakes, elapsed)
			}
			for _, f := range flakes {
				fmt.Fprintln(opts.out, f.Format(format))
			}
			if count > 100 {
				opts.logger.Info().
					Int("count", count).
					Dur("elapsed", elapsed).
					Float64("rate_per_sec", float64(count)/elapsed.Seconds()).
					Msg("generated flakes")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVar(&count, "count", 1, "number of Flakes to generate")
	f.StringVar(&format, "format", "text", "output format: text, decimal, hex, base58, base62")
	f.BoolVar(&batch, "batch", false, "generate under a single lock acquisition")
	f.BoolVar(&jsonOutput, "json", false, "output JSON with decoded fields")
	return cmd
}

type flakeInfo struct {
	Flake   oxidation.Flake    `json:"flake"`
	Decimal string             `json:"decimal"`
	Base62  string             `json:"base62"`
	Time    time.Time          `json:"time"`
	Worker  oxidation.WorkerID `json:"worker"`
	Counter uint64             `json:"counter"`
}

func newFlakeInfo(f oxidation.Flake, c oxidation.Components) flakeInfo {
	return flakeInfo{
		Flake:   f,
		Decimal: f.Decimal(),
		Base62:  f.Base62(),
		Time:    c.Time,
		Worker:  c.WorkerID,
		Counter: c.Counter,
	}
}

func writeJSON(w io.Writer, eng *oxidation.Engine, flakes []oxidation.Flake, elapsed time.Duration) error {
	type output struct {
		Count    int                `json:"count"`
		WorkerID oxidation.WorkerID `json:"worker_id"`
		Layout   string             `json:"layout"`
		Duration string             `json:"duration"`
		Flakes   []flakeInfo        `json:"flakes"`
	}

	infos := make([]flakeInfo, len(flakes))
	for i, f := range flakes {
		infos[i] = newFlakeInfo(f, eng.Decode(f))
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output{
		Count:    len(flakes),
		WorkerID: eng.WorkerID(),
		Layout:   eng.Layout().String(),
		Duration: elapsed.String(),
		Flakes:   infos,
	})
}

// ============================================================================
// Inspect and Convert Commands
// ============================================================================

// parseFlexible parses s in the given format, or tries canonical text,
// decimal, base62 and base58 in that order when format is "auto".
func parseFlexible(s, format string) (oxidation.Flake, error) {
	if format != "auto" {
		return oxidation.ParseFormat(s, format)
	}
	f, err := oxidation.ParseFlake(s)
	if err == nil {
		return f, nil
	}
	errs := []error{err}
	for _, parse := range []func(string) (oxidation.Flake, error){
		oxidation.ParseDecimal,
		oxidation.ParseBase62,
		oxidation.ParseBase58,
	} {
		if f, err = parse(s); err == nil {
			return f, nil
		}
		errs = append(errs, err)
	}
	return oxidation.Zero, fmt.Errorf("unable to parse %q in any known form: %w", s, errors.Join(errs...))
}

func newInspectCmd(opts *options) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "inspect <flake>",
		Short: "Decode a Flake into its fields",
		Long: "Decode a Flake using the configured layout and epoch. A Flake " +
			"decoded under a different layout or epoch yields meaningless fields.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFlexible(args[0], from)
			if err != nil {
				return err
			}
			c := oxidation.Decode(f, opts.cfg.Layout, opts.cfg.Epoch)

			w := opts.out
			fmt.Fprintf(w, "Flake:        %s\n", f)
			fmt.Fprintf(w, "Layout:       %s\n", opts.cfg.Layout)
			fmt.Fprintf(w, "\n")
			fmt.Fprintf(w, "Components:\n")
			fmt.Fprintf(w, "  Time:       %s (%d units since epoch)\n", c.Time.UTC().Format(time.RFC3339Nano), c.Elapsed)
			fmt.Fprintf(w, "  Worker ID:  %d\n", c.WorkerID)
			fmt.Fprintf(w, "  Counter:    %d\n", c.Counter)
			fmt.Fprintf(w, "\n")
			fmt.Fprintf(w, "Encodings:\n")
			fmt.Fprintf(w, "  Decimal:    %s\n", f.Decimal())
			fmt.Fprintf(w, "  Hex:        %s\n", f.Hex())
			fmt.Fprintf(w, "  Base58:     %s\n", f.Base58())
			fmt.Fprintf(w, "  Base62:     %s\n", f.Base62())
			if v, ok := f.Uint64(); ok {
				fmt.Fprintf(w, "  Uint64:     %d\n", v)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "auto", "input format: auto, text, decimal, hex, base58, base62")
	return cmd
}

func newConvertCmd(opts *options) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "convert <flake>",
		Short: "Convert a Flake between text forms",
		Example: `  oxidation convert 00000000-0000-0001-0000-000000000002 --to decimal
  oxidation convert 18446744073709551618 --to base62`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFlexible(args[0], from)
			if err != nil {
				return err
			}
			fmt.Fprintln(opts.out, f.Format(to))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "auto", "input format: auto, text, decimal, hex, base58, base62")
	cmd.Flags().StringVar(&to, "to", "text", "output format: text, decimal, hex, base58, base62")
	return cmd
}

// ============================================================================
// Bench Command
// ============================================================================

func newBenchCmd(opts *options) *cobra.Command {
	var duration time.Duration
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure generation throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			cfg.EnableMetrics = true
			eng, err := oxidation.NewWithConfig(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), duration)
			defer cancel()

			opts.logger.Info().Dur("duration", duration).Stringer("layout", cfg.Layout).Msg("benchmark started")
			start := time.Now()
			var prev oxidation.Flake
			for ctx.Err() == nil {
				f, err := eng.Oxidize()
				if err != nil {
					return err
				}
				if !f.After(prev) {
					return fmt.Errorf("ordering violated: %s after %s", f, prev)
				}
				prev = f
			}
			elapsed := time.Since(start)

			m := eng.Metrics()
			w := opts.out
			fmt.Fprintf(w, "Generated:          %d\n", m.Generated)
			fmt.Fprintf(w, "Elapsed:            %v\n", elapsed.Round(time.Millisecond))
			fmt.Fprintf(w, "Rate:               %.0f flakes/sec\n", float64(m.Generated)/elapsed.Seconds())
			fmt.Fprintf(w, "Counter exhausted:  %d\n", m.CounterExhausted)
			fmt.Fprintf(w, "Clock backward:     %d\n", m.ClockBackward)
			fmt.Fprintf(w, "Wait time:          %v\n", time.Duration(m.WaitTimeUs)*time.Microsecond)
			return nil
		},
	}
	cmd.Flags().DurationVar(&duration, "duration", time.Second, "how long to run")
	return cmd
}
