package funnel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "funnel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
quality:
  cap_floor: 3000000000
patterns:
  top_k: 10
window:
  trading_days: 250
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3e9, cfg.Quality.CapFloor)
	assert.Equal(t, 10, cfg.Patterns.TopK)
	assert.Equal(t, 250, cfg.Window.TradingDays)
	// Untouched keys keep their documented defaults.
	assert.Equal(t, 5000e4, cfg.Quality.AmountFloor)
	assert.Equal(t, 1, cfg.Window.EndOffsetDays)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
quality:
  cap_flor: 3000000000
`)
	_, err := Load(path)
	require.Error(t, err, "typo must not silently fall back to the default")
}

func TestValidate_Violations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero trading days", func(c *Config) { c.Window.TradingDays = 0 }, "window.trading_days"},
		{"bad adjust mode", func(c *Config) { c.Window.AdjustMode = "split" }, "window.adjust_mode"},
		{"no boards", func(c *Config) { c.Universe.AllowedBoards = nil }, "universe.allowed_boards"},
		{"unknown board", func(c *Config) { c.Universe.AllowedBoards = []string{"otc"} }, "universe.allowed_boards"},
		{"negative cap floor", func(c *Config) { c.Quality.CapFloor = -1 }, "quality.cap_floor"},
		{"inverted MAs", func(c *Config) { c.Trend.MAShort = 300 }, "trend.ma_short_period"},
		{"positive drop threshold", func(c *Config) { c.Trend.BenchDropThreshold = 1 }, "trend.bench_drop_threshold"},
		{"percentile above one", func(c *Config) { c.Trend.RSTopPercentile = 1.5 }, "trend.rs_top_percentile"},
		{"zero sector top-n", func(c *Config) { c.Sector.TopN = 0 }, "sector.top_n"},
		{"zero top-k", func(c *Config) { c.Patterns.TopK = 0 }, "patterns.top_k"},
		{"confidence above one", func(c *Config) { c.Patterns.LPSMinConfidence = 1.2 }, "patterns.lps_min_confidence"},
		{"zero spring baseline", func(c *Config) { c.Patterns.SpringVolBaseBars = 0 }, "patterns.spring_vol_base_bars"},
		{"hold ratio above one", func(c *Config) { c.Patterns.EVRHoldRatio = 1.5 }, "patterns.evr_hold_ratio"},
		{"zero workers", func(c *Config) { c.Run.BatchWorkers = 0 }, "run.batch_workers"},
		{"negative timeout", func(c *Config) { c.Run.TimeoutMinutes = -1 }, "run.timeout_minutes"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			var cerr *contracts.ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tc.field, cerr.Field)
		})
	}
}
