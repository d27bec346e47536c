package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"slider-solver/internal/contour"
	"slider-solver/internal/drag"
	"slider-solver/internal/mask"
	"slider-solver/internal/solver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "slider.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultMatchesComponents(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	sp, err := cfg.SolverParams()
	require.NoError(t, err)
	assert.Equal(t, solver.DefaultParams(), sp)

	dp, err := cfg.DragParams()
	require.NoError(t, err)
	assert.Equal(t, drag.DefaultParams(), dp)

	assert.Equal(t, drag.DefaultRetryPolicy(), cfg.RetryPolicy())
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
workers = 2

[log]
level = "debug"

[piece]
threshold = 0.25
ops = ["erode", "dilate"]
kernel = 5

[solver]
strategy = "centroid"
selection = "first"
calibration = 0

[drag]
settle_delay = "250ms"
coarse_steps = 40

[retry]
max_attempts = 2
deadline = "30s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Workers)

	sp, err := cfg.SolverParams()
	require.NoError(t, err)
	assert.Equal(t, solver.StrategyCentroid, sp.Strategy)
	assert.Equal(t, contour.SelectFirst, sp.Selection)
	assert.Equal(t, 0, sp.Calibration)
	assert.Equal(t, 0.25, sp.PieceMask.Threshold)
	assert.Equal(t, mask.Morphology{Ops: []mask.Op{mask.OpErode, mask.OpDilate}, Kernel: 5}, sp.PieceMask.Morphology)
	// Untouched sections keep their defaults.
	assert.Equal(t, mask.ShapeTightening(), sp.SlotMask.Morphology)

	dp, err := cfg.DragParams()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, dp.SettleDelay)
	assert.Equal(t, 40, dp.CoarseSteps)
	assert.Equal(t, 5, dp.CorrectionSteps)

	assert.Equal(t, drag.RetryPolicy{MaxAttempts: 2, Deadline: 30 * time.Second}, cfg.RetryPolicy())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(writeFile(t, "[solver]\nstrategy = \"centroid\"\nfudge = 1\n"))
	assert.ErrorContains(t, err, "solver.fudge")

	_, err = Load(writeFile(t, "[drag]\nsettle_delay = \"soon\"\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestWriteRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, Default()))
	assert.Contains(t, buf.String(), `settle_delay = "100ms"`)

	cfg, err := Load(writeFile(t, buf.String()))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"LOG_LEVEL":             "warn",
		"SLIDER_STRATEGY":       "centroid",
		"SLIDER_CALIBRATION":    "-2",
		"SLIDER_THRESHOLD":      "0.4",
		"SLIDER_MAX_ATTEMPTS":   "9",
		"SLIDER_DEADLINE":       "1m",
		"SLIDER_VERIFY_TIMEOUT": "",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "centroid", cfg.Solver.Strategy)
	assert.Equal(t, -2, cfg.Solver.Calibration)
	assert.Equal(t, 0.4, cfg.Piece.Threshold)
	assert.Equal(t, 9, cfg.Retry.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Retry.Deadline.Duration)
	// Empty values leave the setting alone.
	assert.Equal(t, 3*time.Second, cfg.Drag.VerifyTimeout.Duration)

	env = map[string]string{"SLIDER_WORKERS": "many", "SLIDER_DEADLINE": "later"}
	cfg = Default()
	err := cfg.ApplyEnv(lookup)
	assert.ErrorContains(t, err, "SLIDER_WORKERS")
	assert.ErrorContains(t, err, "SLIDER_DEADLINE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative workers", func(c *Config) { c.Workers = -1 }},
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"strategy", func(c *Config) { c.Solver.Strategy = "guess" }},
		{"threshold", func(c *Config) { c.Piece.Threshold = 1 }},
		{"even kernel", func(c *Config) { c.Slot.Kernel = 4 }},
		{"unknown op", func(c *Config) { c.Piece.Ops = []string{"open"} }},
		{"selection", func(c *Config) { c.Solver.Selection = "middle" }},
		{"steps", func(c *Config) { c.Drag.CorrectionSteps = 0 }},
		{"correction strategy", func(c *Config) { c.Drag.CorrectionStrategy = "" }},
		{"attempts", func(c *Config) { c.Retry.MaxAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := LogConfig{Level: "warn", Format: "json"}.Logger(&buf)
	log.Info().Msg("hidden")
	log.Warn().Int("attempt", 2).Msg("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"attempt":2`)
	assert.Contains(t, out, `"level":"warn"`)
}

func TestResolve(t *testing.T) {
	t.Setenv("SLIDER_MAX_ATTEMPTS", "7")

	cfg, err := Resolve("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts)

	cfg, err = Resolve(writeFile(t, "[retry]\nmax_attempts = 2\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Retry.MaxAttempts, "environment wins over the file")

	t.Setenv("SLIDER_STRATEGY", "guess")
	_, err = Resolve("")
	assert.Error(t, err)
}
