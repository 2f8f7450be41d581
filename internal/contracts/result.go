package contracts

import "time"

// Reason is a per-symbol exclusion reason code. The final result carries a
// count per reason so every narrowing step is explainable.
type Reason string

const (
	ReasonBoard        Reason = "board"
	ReasonSpecialRisk  Reason = "special_risk"
	ReasonSuspended    Reason = "suspended"
	ReasonCapFloor     Reason = "cap_floor"
	ReasonAmountFloor  Reason = "amount_floor"
	ReasonTrendFilter  Reason = "trend_filter"
	ReasonRSFilter     Reason = "rs_filter"
	ReasonSector       Reason = "sector"
	ReasonNoPattern    Reason = "no_pattern"
	ReasonFetchFailed  Reason = "fetch_failed"
	ReasonDataQuality  Reason = "data_quality"
	ReasonShortHistory Reason = "insufficient_history"
	ReasonTimeout      Reason = "timeout"
)

// Layer identifies a funnel stage.
type Layer string

const (
	LayerQuality Layer = "L1_QUALITY"
	LayerTrend   Layer = "L2_TREND"
	LayerSector  Layer = "L3_SECTOR"
	LayerPattern Layer = "L4_PATTERN"
)

// ShortName returns the abbreviated layer name ("L1".."L4").
func (l Layer) ShortName() string {
	if len(l) >= 2 {
		return string(l[:2])
	}
	return string(l)
}

// SignalType names a Wyckoff confirmation signal.
type SignalType string

const (
	SignalSpring SignalType = "spring"
	SignalLPS    SignalType = "lps"
	SignalEVR    SignalType = "evr"
)

// PatternSignal is one detected confirmation signal with its confidence.
type PatternSignal struct {
	Type        SignalType `json:"type"`
	Confidence  float64    `json:"confidence"` // 0.0 ~ 1.0
	Support     float64    `json:"support,omitempty"`
	VolumeRatio float64    `json:"volume_ratio,omitempty"`
}

// FunnelCandidate is a symbol flowing through the funnel with its per-layer
// trace and computed metrics. Created when the symbol enters Layer 1,
// enriched by each layer it survives, discarded the moment it fails one.
type FunnelCandidate struct {
	Symbol Symbol `json:"symbol"`

	// Per-layer pass trace; a layer's entry exists only once evaluated.
	Passed map[Layer]bool `json:"passed"`

	Provider string `json:"provider,omitempty"` // data source that served the bars

	// Layer 2 metrics
	MAShort      float64 `json:"ma_short,omitempty"`
	MALong       float64 `json:"ma_long,omitempty"`
	RSScore      float64 `json:"rs_score,omitempty"`
	AvgAmount20D float64 `json:"avg_amount_20d,omitempty"`

	// Layer 3
	SectorRank int `json:"sector_rank,omitempty"` // 1-based, 0 until ranked

	// Layer 4
	Signals        []PatternSignal `json:"signals,omitempty"`
	CompositeScore float64         `json:"composite_score,omitempty"`
}

// BestSignal returns the highest-confidence signal, or a zero value if none.
func (c *FunnelCandidate) BestSignal() PatternSignal {
	var best PatternSignal
	for _, s := range c.Signals {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return best
}

// MarkLayer records the pass/fail outcome of a layer.
func (c *FunnelCandidate) MarkLayer(l Layer, passed bool) {
	if c.Passed == nil {
		c.Passed = make(map[Layer]bool)
	}
	c.Passed[l] = passed
}

// LayerCounts holds survivor counts after each layer.
type LayerCounts struct {
	Universe int `json:"universe"`
	Layer1   int `json:"layer1"`
	Layer2   int `json:"layer2"`
	Layer3   int `json:"layer3"`
	Layer4   int `json:"layer4"`
}

// ScreeningResult is the immutable outcome of one funnel run, owned by the
// caller that triggered it. Candidates are ranked, at most top-K long.
type ScreeningResult struct {
	RunDate     time.Time `json:"run_date"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	Counts     LayerCounts       `json:"counts"`
	TopSectors []string          `json:"top_sectors"`
	Candidates []FunnelCandidate `json:"candidates"`

	// Exclusion accounting for transparency.
	Excluded       map[string]Reason `json:"excluded"`
	ExcludedCounts map[Reason]int    `json:"excluded_counts"`

	// Coverage metadata.
	FetchOK          int  `json:"fetch_ok"`
	FetchFailed      int  `json:"fetch_failed"`
	PartialWindow    bool `json:"partial_window"`    // calendar clamped the window
	PartialCoverage  bool `json:"partial_coverage"`  // excluded fraction above threshold
	BenchmarkMissing bool `json:"benchmark_missing"` // ran without relative strength
}

// Exclude records a per-symbol exclusion and bumps the reason counter.
func (r *ScreeningResult) Exclude(code string, reason Reason) {
	if r.Excluded == nil {
		r.Excluded = make(map[string]Reason)
	}
	if r.ExcludedCounts == nil {
		r.ExcludedCounts = make(map[Reason]int)
	}
	if _, dup := r.Excluded[code]; dup {
		return
	}
	r.Excluded[code] = reason
	r.ExcludedCounts[reason]++
}

// ExcludedFraction returns the share of the universe that was excluded
// before reaching Layer 4 for data reasons (fetch, quality, timeout).
func (r *ScreeningResult) ExcludedFraction() float64 {
	if r.Counts.Universe == 0 {
		return 0
	}
	n := r.ExcludedCounts[ReasonFetchFailed] +
		r.ExcludedCounts[ReasonDataQuality] +
		r.ExcludedCounts[ReasonTimeout]
	return float64(n) / float64(r.Counts.Universe)
}
