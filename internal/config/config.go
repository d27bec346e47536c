// Package config loads solver and drag settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"slider-solver/internal/contour"
	"slider-solver/internal/drag"
	"slider-solver/internal/mask"
	"slider-solver/internal/solver"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

// Duration is a time.Duration written as a string such as "100ms".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is the complete configuration.
type Config struct {
	// Workers caps pixel-processing goroutines. Zero uses every CPU.
	Workers int `toml:"workers"`

	Log    LogConfig    `toml:"log"`
	Piece  MaskConfig   `toml:"piece"`
	Slot   MaskConfig   `toml:"slot"`
	Solver SolverConfig `toml:"solver"`
	Drag   DragConfig   `toml:"drag"`
	Retry  RetryConfig  `toml:"retry"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // console or json
}

// MaskConfig configures one mask extraction.
type MaskConfig struct {
	Threshold float64  `toml:"threshold"`
	Ops       []string `toml:"ops"`
	Kernel    int      `toml:"kernel"`
}

// SolverConfig configures the displacement solver.
type SolverConfig struct {
	Strategy        string  `toml:"strategy"`
	Calibration     int     `toml:"calibration"`
	TemplatePadding int     `toml:"template_padding"`
	PieceReference  string  `toml:"piece_reference"`
	Selection       string  `toml:"selection"`
	MinSolidity     float64 `toml:"min_solidity"`
	DebugDir        string  `toml:"debug_dir"`
}

// DragConfig configures a drag attempt.
type DragConfig struct {
	CoarseSteps        int      `toml:"coarse_steps"`
	CorrectionSteps    int      `toml:"correction_steps"`
	SettleDelay        Duration `toml:"settle_delay"`
	VerifyTimeout      Duration `toml:"verify_timeout"`
	StepDelay          Duration `toml:"step_delay"`
	HandleSelector     string   `toml:"handle_selector"`
	SuccessSelector    string   `toml:"success_selector"`
	InitialStrategy    string   `toml:"initial_strategy"`
	CorrectionStrategy string   `toml:"correction_strategy"`
	SkipCorrection     bool     `toml:"skip_correction"`
}

// RetryConfig bounds the attempts.
type RetryConfig struct {
	MaxAttempts int      `toml:"max_attempts"`
	Deadline    Duration `toml:"deadline"`
}

func maskConfig(p mask.Params) MaskConfig {
	ops := make([]string, len(p.Morphology.Ops))
	for i, op := range p.Morphology.Ops {
		ops[i] = op.String()
	}
	return MaskConfig{Threshold: p.Threshold, Ops: ops, Kernel: p.Morphology.Kernel}
}

// Default returns the built-in configuration.
func Default() Config {
	sp := solver.DefaultParams()
	dp := drag.DefaultParams()
	rp := drag.DefaultRetryPolicy()
	return Config{
		Log:   LogConfig{Level: "info", Format: "console"},
		Piece: maskConfig(sp.PieceMask),
		Slot:  maskConfig(sp.SlotMask),
		Solver: SolverConfig{
			Strategy:        sp.Strategy.String(),
			Calibration:     sp.Calibration,
			TemplatePadding: sp.TemplatePadding,
			PieceReference:  sp.PieceReference.String(),
			Selection:       sp.Selection.String(),
			MinSolidity:     sp.MinSolidity,
		},
		Drag: DragConfig{
			CoarseSteps:        dp.CoarseSteps,
			CorrectionSteps:    dp.CorrectionSteps,
			SettleDelay:        Duration{dp.SettleDelay},
			VerifyTimeout:      Duration{dp.VerifyTimeout},
			HandleSelector:     dp.HandleSelector,
			SuccessSelector:    dp.SuccessSelector,
			InitialStrategy:    dp.InitialStrategy.String(),
			CorrectionStrategy: dp.CorrectionStrategy.String(),
		},
		Retry: RetryConfig{MaxAttempts: rp.MaxAttempts, Deadline: Duration{rp.Deadline}},
	}
}

// Load reads a TOML file over the defaults. Unknown keys are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg Config) error {
	return toml.NewEncoder(w).Encode(cfg)
}

// ApplyEnv overrides settings from environment variables read through
// lookup (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = f
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
			}
		}
	}

	str("LOG_LEVEL", &c.Log.Level)
	str("SLIDER_LOG_FORMAT", &c.Log.Format)
	integer("SLIDER_WORKERS", &c.Workers)
	float("SLIDER_THRESHOLD", &c.Piece.Threshold)
	str("SLIDER_STRATEGY", &c.Solver.Strategy)
	integer("SLIDER_CALIBRATION", &c.Solver.Calibration)
	str("SLIDER_SELECTION", &c.Solver.Selection)
	str("SLIDER_DEBUG_DIR", &c.Solver.DebugDir)
	str("SLIDER_HANDLE_SELECTOR", &c.Drag.HandleSelector)
	str("SLIDER_SUCCESS_SELECTOR", &c.Drag.SuccessSelector)
	duration("SLIDER_VERIFY_TIMEOUT", &c.Drag.VerifyTimeout)
	integer("SLIDER_MAX_ATTEMPTS", &c.Retry.MaxAttempts)
	duration("SLIDER_DEADLINE", &c.Retry.Deadline)

	return errors.Join(errs...)
}

// Resolve loads path, or the defaults when path is empty, applies the
// process environment and validates the result.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section by converting it.
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	if c.Log.Format != "console" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be console or json, got %q", c.Log.Format)
	}
	if _, err := c.SolverParams(); err != nil {
		return err
	}
	if _, err := c.DragParams(); err != nil {
		return err
	}
	return c.RetryPolicy().Validate()
}

// Params converts the section to mask parameters.
func (m MaskConfig) Params() (mask.Params, error) {
	morph := mask.Morphology{Kernel: m.Kernel}
	for _, name := range m.Ops {
		op, err := mask.ParseOp(name)
		if err != nil {
			return mask.Params{}, err
		}
		morph.Ops = append(morph.Ops, op)
	}
	p := mask.Params{Threshold: m.Threshold, Morphology: morph}
	return p, p.Validate()
}

// SolverParams builds solver parameters.
func (c Config) SolverParams() (solver.Params, error) {
	p := solver.DefaultParams()
	var err error

	if p.Strategy, err = solver.ParseStrategy(c.Solver.Strategy); err != nil {
		return p, err
	}
	if p.PieceReference, err = mask.ParseReference(c.Solver.PieceReference); err != nil {
		return p, err
	}
	if p.Selection, err = contour.ParseSelection(c.Solver.Selection); err != nil {
		return p, err
	}
	if p.PieceMask, err = c.Piece.Params(); err != nil {
		return p, fmt.Errorf("piece: %w", err)
	}
	if p.SlotMask, err = c.Slot.Params(); err != nil {
		return p, fmt.Errorf("slot: %w", err)
	}
	p.Calibration = c.Solver.Calibration
	p.TemplatePadding = c.Solver.TemplatePadding
	p.MinSolidity = c.Solver.MinSolidity
	p.DebugDir = c.Solver.DebugDir
	return p, p.Validate()
}

// DragParams builds drag parameters.
func (c Config) DragParams() (drag.Params, error) {
	d := c.Drag
	p := drag.Params{
		CoarseSteps:     d.CoarseSteps,
		CorrectionSteps: d.CorrectionSteps,
		SettleDelay:     d.SettleDelay.Duration,
		VerifyTimeout:   d.VerifyTimeout.Duration,
		HandleSelector:  d.HandleSelector,
		SuccessSelector: d.SuccessSelector,
		SkipCorrection:  d.SkipCorrection,
	}
	var err error
	if p.InitialStrategy, err = solver.ParseStrategy(d.InitialStrategy); err != nil {
		return p, fmt.Errorf("initial strategy: %w", err)
	}
	if p.CorrectionStrategy, err = solver.ParseStrategy(d.CorrectionStrategy); err != nil {
		return p, fmt.Errorf("correction strategy: %w", err)
	}
	return p, p.Validate()
}

// RetryPolicy builds the retry policy.
func (c Config) RetryPolicy() drag.RetryPolicy {
	return drag.RetryPolicy{MaxAttempts: c.Retry.MaxAttempts, Deadline: c.Retry.Deadline.Duration}
}

// Logger builds a logger writing to w.
func (l LogConfig) Logger(w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(l.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if l.Format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
