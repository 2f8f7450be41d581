// Package funnel implements the four-layer screening pipeline: quality,
// trend and relative strength, sector resonance, pattern confirmation.
package funnel

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/internal/marketdata"
	"github.com/youngcan/wyckoff-funnel/internal/pattern"
	"github.com/youngcan/wyckoff-funnel/internal/universe"
)

// Config is the single immutable strategy configuration. Every
// threshold is explicit; Load fills documented defaults for absent
// keys and Validate rejects out-of-range values before any run starts.
type Config struct {
	Benchmark BenchmarkConfig `yaml:"benchmark"`
	Window    WindowConfig    `yaml:"window"`
	Universe  UniverseConfig  `yaml:"universe"`
	Quality   QualityConfig   `yaml:"quality"`
	Trend     TrendConfig     `yaml:"trend"`
	Sector    SectorConfig    `yaml:"sector"`
	Patterns  PatternsConfig  `yaml:"patterns"`
	Run       RunConfig       `yaml:"run"`
}

// BenchmarkConfig names the index used for the calendar, the drawdown
// exception, and relative strength.
type BenchmarkConfig struct {
	IndexCode string `yaml:"index_code"`
}

// WindowConfig controls the trading window resolution.
type WindowConfig struct {
	TradingDays   int    `yaml:"trading_days"`
	EndOffsetDays int    `yaml:"end_offset_days"`
	AdjustMode    string `yaml:"adjust_mode"` // none | forward | backward
}

// UniverseConfig controls symbol pool construction.
type UniverseConfig struct {
	AllowedBoards      []string `yaml:"allowed_boards"`
	ExcludeSpecialRisk bool     `yaml:"exclude_special_risk"`
	ExcludeSuspended   bool     `yaml:"exclude_suspended"`
}

// QualityConfig is Layer 1: floors on size and traded amount.
type QualityConfig struct {
	CapFloor        float64 `yaml:"cap_floor"`     // CNY
	AmountFloor     float64 `yaml:"amount_floor"`  // CNY, average daily
	AmountAvgWindow int     `yaml:"amount_avg_window"`
}

// TrendConfig is Layer 2: moving-average alignment, the benchmark
// drawdown exception, and the relative-strength cut.
type TrendConfig struct {
	MAShort int `yaml:"ma_short_period"`
	MALong  int `yaml:"ma_long_period"`
	MAHold  int `yaml:"ma_hold_period"`

	// Exception path: benchmark down more than the threshold over the
	// drop window while the symbol holds above its MA-hold line.
	BenchDropDays      int     `yaml:"bench_drop_days"`
	BenchDropThreshold float64 `yaml:"bench_drop_threshold"` // percent, negative

	RSLookbackDays      int     `yaml:"rs_lookback_days"`
	RSLookbackShortDays int     `yaml:"rs_lookback_short_days"`
	RSMinShort          float64 `yaml:"rs_min_short"`
	RSTopPercentile     float64 `yaml:"rs_top_percentile"` // retained fraction in (0, 1]
	EnableRSFilter      bool    `yaml:"enable_rs_filter"`
}

// SectorConfig is Layer 3.
type SectorConfig struct {
	TopN int `yaml:"top_n"`
}

// PatternsConfig is Layer 4: detector thresholds and the output cap.
type PatternsConfig struct {
	WindowBars int `yaml:"window_bars"`
	TopK       int `yaml:"top_k"`

	SpringSupportWindow int     `yaml:"spring_support_window"`
	SpringVolRatio      float64 `yaml:"spring_vol_ratio"`
	SpringVolBaseBars   int     `yaml:"spring_vol_base_bars"`
	SpringMinConfidence float64 `yaml:"spring_min_confidence"`

	LPSLookback      int     `yaml:"lps_lookback"`
	LPSMA            int     `yaml:"lps_ma"`
	LPSMATolerance   float64 `yaml:"lps_ma_tolerance"`
	LPSVolDryRatio   float64 `yaml:"lps_vol_dry_ratio"`
	LPSVolRefWindow  int     `yaml:"lps_vol_ref_window"`
	LPSMinConfidence float64 `yaml:"lps_min_confidence"`

	EVRVolRatio      float64 `yaml:"evr_vol_ratio"`
	EVRVolWindow     int     `yaml:"evr_vol_window"`
	EVRMaxDrop       float64 `yaml:"evr_max_drop"`
	EVRMaxRise       float64 `yaml:"evr_max_rise"`
	EVRHoldRatio     float64 `yaml:"evr_hold_ratio"`
	EVRBiasMA        int     `yaml:"evr_bias_ma"`
	EVRBiasMaxPct    float64 `yaml:"evr_bias_max_pct"`
	EVRMinConfidence float64 `yaml:"evr_min_confidence"`
}

// RunConfig bounds the batch execution.
type RunConfig struct {
	BatchWorkers     int     `yaml:"batch_workers"`
	TimeoutMinutes   int     `yaml:"timeout_minutes"` // 0 disables the run deadline
	MinBars          int     `yaml:"min_bars"`
	PartialWarnAbove float64 `yaml:"partial_warn_above"` // excluded fraction
}

// Timeout returns the run deadline as a duration.
func (r RunConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutMinutes) * time.Minute
}

// Default returns the documented defaults for every key.
func Default() Config {
	pat := pattern.DefaultConfig()
	return Config{
		Benchmark: BenchmarkConfig{IndexCode: "000300"},
		Window: WindowConfig{
			TradingDays:   500,
			EndOffsetDays: 1,
			AdjustMode:    string(marketdata.AdjustForward),
		},
		Universe: UniverseConfig{
			AllowedBoards:      []string{string(contracts.BoardMain), string(contracts.BoardGrowth)},
			ExcludeSpecialRisk: true,
			ExcludeSuspended:   true,
		},
		Quality: QualityConfig{
			CapFloor:        20e8,   // 20亿
			AmountFloor:     5000e4, // 5000万
			AmountAvgWindow: 20,
		},
		Trend: TrendConfig{
			MAShort:             50,
			MALong:              200,
			MAHold:              20,
			BenchDropDays:       3,
			BenchDropThreshold:  -2.0,
			RSLookbackDays:      10,
			RSLookbackShortDays: 3,
			RSMinShort:          0.0,
			RSTopPercentile:     0.5,
			EnableRSFilter:      true,
		},
		Sector: SectorConfig{TopN: 3},
		Patterns: PatternsConfig{
			WindowBars:          120,
			TopK:                6,
			SpringSupportWindow: pat.SpringSupportWindow,
			SpringVolRatio:      pat.SpringVolRatio,
			SpringVolBaseBars:   pat.SpringVolBaseBars,
			LPSLookback:         pat.LPSLookback,
			LPSMA:               pat.LPSMA,
			LPSMATolerance:      pat.LPSMATolerance,
			LPSVolDryRatio:      pat.LPSVolDryRatio,
			LPSVolRefWindow:     pat.LPSVolRefWindow,
			EVRVolRatio:         pat.EVRVolRatio,
			EVRVolWindow:        pat.EVRVolWindow,
			EVRMaxDrop:          pat.EVRMaxDrop,
			EVRMaxRise:          pat.EVRMaxRise,
			EVRHoldRatio:        pat.EVRHoldRatio,
			EVRBiasMA:           pat.EVRBiasMA,
			EVRBiasMaxPct:       pat.EVRBiasMaxPct,
		},
		Run: RunConfig{
			BatchWorkers:     8,
			TimeoutMinutes:   30,
			MinBars:          250,
			PartialWarnAbove: 0.5,
		},
	}
}

// Load reads the YAML strategy file over the defaults. Unknown keys
// fail immediately so typos never silently fall back to a default.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, &contracts.ConfigError{Field: path, Msg: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every constraint. The first violation aborts; runs
// never start on a partially valid configuration.
func (c Config) Validate() error {
	if c.Benchmark.IndexCode == "" {
		return &contracts.ConfigError{Field: "benchmark.index_code", Msg: "required"}
	}
	if c.Window.TradingDays <= 0 {
		return &contracts.ConfigError{Field: "window.trading_days", Msg: "must be > 0"}
	}
	if c.Window.EndOffsetDays < 0 {
		return &contracts.ConfigError{Field: "window.end_offset_days", Msg: "must be >= 0"}
	}
	if !marketdata.AdjustMode(c.Window.AdjustMode).Valid() {
		return &contracts.ConfigError{Field: "window.adjust_mode", Msg: "must be one of none, forward, backward"}
	}
	if len(c.Universe.AllowedBoards) == 0 {
		return &contracts.ConfigError{Field: "universe.allowed_boards", Msg: "at least one board required"}
	}
	for _, b := range c.Universe.AllowedBoards {
		switch contracts.Board(b) {
		case contracts.BoardMain, contracts.BoardGrowth, contracts.BoardSTAR, contracts.BoardBeijing:
		default:
			return &contracts.ConfigError{Field: "universe.allowed_boards", Msg: fmt.Sprintf("unknown board %q", b)}
		}
	}
	if c.Quality.CapFloor < 0 {
		return &contracts.ConfigError{Field: "quality.cap_floor", Msg: "must be >= 0"}
	}
	if c.Quality.AmountFloor < 0 {
		return &contracts.ConfigError{Field: "quality.amount_floor", Msg: "must be >= 0"}
	}
	if c.Quality.AmountAvgWindow <= 0 {
		return &contracts.ConfigError{Field: "quality.amount_avg_window", Msg: "must be > 0"}
	}
	if c.Trend.MAShort <= 0 || c.Trend.MALong <= 0 || c.Trend.MAHold <= 0 {
		return &contracts.ConfigError{Field: "trend", Msg: "moving average periods must be > 0"}
	}
	if c.Trend.MAShort >= c.Trend.MALong {
		return &contracts.ConfigError{Field: "trend.ma_short_period", Msg: "must be < ma_long_period"}
	}
	if c.Trend.BenchDropDays <= 0 {
		return &contracts.ConfigError{Field: "trend.bench_drop_days", Msg: "must be > 0"}
	}
	if c.Trend.BenchDropThreshold >= 0 {
		return &contracts.ConfigError{Field: "trend.bench_drop_threshold", Msg: "must be negative"}
	}
	if c.Trend.RSLookbackDays <= 0 || c.Trend.RSLookbackShortDays <= 0 {
		return &contracts.ConfigError{Field: "trend.rs_lookback_days", Msg: "lookbacks must be > 0"}
	}
	if c.Trend.RSTopPercentile <= 0 || c.Trend.RSTopPercentile > 1 {
		return &contracts.ConfigError{Field: "trend.rs_top_percentile", Msg: "must be in (0, 1]"}
	}
	if c.Sector.TopN <= 0 {
		return &contracts.ConfigError{Field: "sector.top_n", Msg: "must be > 0"}
	}
	if c.Patterns.WindowBars <= 0 {
		return &contracts.ConfigError{Field: "patterns.window_bars", Msg: "must be > 0"}
	}
	if c.Patterns.TopK <= 0 {
		return &contracts.ConfigError{Field: "patterns.top_k", Msg: "must be > 0"}
	}
	if v := c.Patterns.SpringMinConfidence; v < 0 || v > 1 {
		return &contracts.ConfigError{Field: "patterns.spring_min_confidence", Msg: "must be in [0, 1]"}
	}
	if v := c.Patterns.LPSMinConfidence; v < 0 || v > 1 {
		return &contracts.ConfigError{Field: "patterns.lps_min_confidence", Msg: "must be in [0, 1]"}
	}
	if v := c.Patterns.EVRMinConfidence; v < 0 || v > 1 {
		return &contracts.ConfigError{Field: "patterns.evr_min_confidence", Msg: "must be in [0, 1]"}
	}
	if c.Patterns.SpringSupportWindow <= 0 || c.Patterns.LPSVolRefWindow <= 0 || c.Patterns.EVRVolWindow <= 2 {
		return &contracts.ConfigError{Field: "patterns", Msg: "detector windows too small"}
	}
	if c.Patterns.SpringVolBaseBars <= 0 {
		return &contracts.ConfigError{Field: "patterns.spring_vol_base_bars", Msg: "must be > 0"}
	}
	if c.Patterns.EVRMaxRise <= 0 {
		return &contracts.ConfigError{Field: "patterns.evr_max_rise", Msg: "must be > 0"}
	}
	if c.Patterns.EVRHoldRatio <= 0 || c.Patterns.EVRHoldRatio > 1 {
		return &contracts.ConfigError{Field: "patterns.evr_hold_ratio", Msg: "must be in (0, 1]"}
	}
	if c.Patterns.EVRBiasMA <= 0 {
		return &contracts.ConfigError{Field: "patterns.evr_bias_ma", Msg: "must be > 0"}
	}
	if c.Patterns.EVRBiasMaxPct <= 0 {
		return &contracts.ConfigError{Field: "patterns.evr_bias_max_pct", Msg: "must be > 0"}
	}
	if c.Run.BatchWorkers <= 0 {
		return &contracts.ConfigError{Field: "run.batch_workers", Msg: "must be > 0"}
	}
	if c.Run.TimeoutMinutes < 0 {
		return &contracts.ConfigError{Field: "run.timeout_minutes", Msg: "must be >= 0"}
	}
	if c.Run.MinBars <= 0 {
		return &contracts.ConfigError{Field: "run.min_bars", Msg: "must be > 0"}
	}
	if c.Run.PartialWarnAbove < 0 || c.Run.PartialWarnAbove > 1 {
		return &contracts.ConfigError{Field: "run.partial_warn_above", Msg: "must be in [0, 1]"}
	}
	return nil
}

// PatternConfig projects the detector thresholds for the pattern package.
func (c Config) PatternConfig() pattern.Config {
	return pattern.Config{
		SpringSupportWindow: c.Patterns.SpringSupportWindow,
		SpringVolRatio:      c.Patterns.SpringVolRatio,
		SpringVolBaseBars:   c.Patterns.SpringVolBaseBars,
		LPSLookback:         c.Patterns.LPSLookback,
		LPSMA:               c.Patterns.LPSMA,
		LPSMATolerance:      c.Patterns.LPSMATolerance,
		LPSVolDryRatio:      c.Patterns.LPSVolDryRatio,
		LPSVolRefWindow:     c.Patterns.LPSVolRefWindow,
		EVRVolRatio:         c.Patterns.EVRVolRatio,
		EVRVolWindow:        c.Patterns.EVRVolWindow,
		EVRMaxDrop:          c.Patterns.EVRMaxDrop,
		EVRMaxRise:          c.Patterns.EVRMaxRise,
		EVRHoldRatio:        c.Patterns.EVRHoldRatio,
		EVRBiasMA:           c.Patterns.EVRBiasMA,
		EVRBiasMaxPct:       c.Patterns.EVRBiasMaxPct,
		SpringMinConfidence: c.Patterns.SpringMinConfidence,
		LPSMinConfidence:    c.Patterns.LPSMinConfidence,
		EVRMinConfidence:    c.Patterns.EVRMinConfidence,
	}
}

// UniverseConfigFor maps the universe section onto the builder config.
func (c Config) UniverseConfigFor(cacheTTL time.Duration) universe.Config {
	boards := make([]contracts.Board, len(c.Universe.AllowedBoards))
	for i, b := range c.Universe.AllowedBoards {
		boards[i] = contracts.Board(b)
	}
	return universe.Config{
		AllowedBoards:      boards,
		ExcludeSpecialRisk: c.Universe.ExcludeSpecialRisk,
		ExcludeSuspended:   c.Universe.ExcludeSuspended,
		CacheTTL:           cacheTTL,
	}
}
