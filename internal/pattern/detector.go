// Package pattern implements the chart heuristics consumed by the final
// funnel layer: Spring, Last Point of Support, and Effort-vs-Result.
// Each detector returns a signal with a confidence score in [0, 1];
// raw threshold scores are normalized so the caller can rank mixed
// signal types on one scale.
package pattern

import (
	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

// Config holds every detector threshold. All fields are explicit; the
// funnel config layer fills in defaults before constructing a Detector.
type Config struct {
	// Spring: prior-day low breaks the support floor of the trailing
	// window, the last close reclaims it on expanding volume.
	SpringSupportWindow int
	SpringVolRatio      float64
	SpringVolBaseBars   int // reclaim volume baseline length

	// LPS: shallow pullback to a rising moving average on drying volume.
	LPSLookback     int
	LPSMA           int
	LPSMATolerance  float64
	LPSVolDryRatio  float64
	LPSVolRefWindow int

	// Effort vs Result: volume surge without a matching price move,
	// guarded against high-level distribution.
	EVRVolRatio   float64
	EVRVolWindow  int
	EVRMaxDrop    float64
	EVRMaxRise    float64 // surge bars above this print as markup, not absorption
	EVRHoldRatio  float64 // last close must hold this fraction of close[-4]
	EVRBiasMA     int     // long average for the extension guard
	EVRBiasMaxPct float64 // percent above the long average that reads as distribution

	// Minimum confidence per signal type. A detector that fires below
	// its cutoff is discarded.
	SpringMinConfidence float64
	LPSMinConfidence    float64
	EVRMinConfidence    float64
}

// DefaultConfig mirrors the tuned production thresholds.
func DefaultConfig() Config {
	return Config{
		SpringSupportWindow: 60,
		SpringVolRatio:      1.0,
		SpringVolBaseBars:   4,
		LPSLookback:         3,
		LPSMA:               20,
		LPSMATolerance:      0.01,
		LPSVolDryRatio:      0.35,
		LPSVolRefWindow:     60,
		EVRVolRatio:         2.0,
		EVRVolWindow:        20,
		EVRMaxDrop:          2.0,
		EVRMaxRise:          3.0,
		EVRHoldRatio:        0.98,
		EVRBiasMA:           200,
		EVRBiasMaxPct:       30,
	}
}

// Detector runs the three heuristics over a cleaned ascending bar series.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect evaluates all heuristics and returns the signals that cleared
// their confidence cutoffs. Order is fixed (spring, lps, evr) so output
// is deterministic for a given series.
func (d *Detector) Detect(bars []contracts.OHLCVBar) []contracts.PatternSignal {
	var signals []contracts.PatternSignal
	if sig, ok := d.DetectSpring(bars); ok && sig.Confidence >= d.cfg.SpringMinConfidence {
		signals = append(signals, sig)
	}
	if sig, ok := d.DetectLPS(bars); ok && sig.Confidence >= d.cfg.LPSMinConfidence {
		signals = append(signals, sig)
	}
	if sig, ok := d.DetectEVR(bars); ok && sig.Confidence >= d.cfg.EVRMinConfidence {
		signals = append(signals, sig)
	}
	return signals
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// tailMean averages the last n values of xs, excluding the final skip
// entries. Returns 0 when the slice is too short.
func tailMean(xs []float64, n, skip int) float64 {
	if len(xs) < skip || n <= 0 {
		return 0
	}
	end := len(xs) - skip
	start := end - n
	if start < 0 {
		start = 0
	}
	if start >= end {
		return 0
	}
	var sum float64
	for _, v := range xs[start:end] {
		sum += v
	}
	return sum / float64(end-start)
}

func tailMax(xs []float64, n int) float64 {
	if len(xs) == 0 || n <= 0 {
		return 0
	}
	start := len(xs) - n
	if start < 0 {
		start = 0
	}
	max := xs[start]
	for _, v := range xs[start+1:] {
		if v > max {
			max = v
		}
	}
	return max
}

// SMA computes the simple moving average of the last period closes.
// Returns 0 when the series is shorter than the period.
func SMA(bars []contracts.OHLCVBar, period int) float64 {
	if period <= 0 || len(bars) < period {
		return 0
	}
	var sum float64
	for _, b := range bars[len(bars)-period:] {
		sum += b.Close
	}
	return sum / float64(period)
}

func volumes(bars []contracts.OHLCVBar) []float64 {
	vs := make([]float64, len(bars))
	for i, b := range bars {
		vs[i] = b.Volume
	}
	return vs
}
