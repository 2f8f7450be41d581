package pattern

import "github.com/youngcan/wyckoff-funnel/internal/contracts"

// DetectLPS looks for a last point of support: the recent lows tag the
// moving average within tolerance, the close holds above it, and the
// pullback volume dries up against the reference window. Confidence
// scales inversely with pullback volume.
func (d *Detector) DetectLPS(bars []contracts.OHLCVBar) (contracts.PatternSignal, bool) {
	need := d.cfg.LPSVolRefWindow
	if d.cfg.LPSMA > need {
		need = d.cfg.LPSMA
	}
	if len(bars) < need+d.cfg.LPSLookback {
		return contracts.PatternSignal{}, false
	}

	ma := SMA(bars, d.cfg.LPSMA)
	if ma <= 0 {
		return contracts.PatternSignal{}, false
	}
	last := bars[len(bars)-1]
	if last.Close < ma {
		return contracts.PatternSignal{}, false
	}

	recent := bars[len(bars)-d.cfg.LPSLookback:]
	lowNearMA := recent[0].Low
	for _, b := range recent[1:] {
		if b.Low < lowNearMA {
			lowNearMA = b.Low
		}
	}
	dist := lowNearMA - ma
	if dist < 0 {
		dist = -dist
	}
	if dist/ma > d.cfg.LPSMATolerance {
		return contracts.PatternSignal{}, false
	}

	recentMaxVol := recent[0].Volume
	for _, b := range recent[1:] {
		if b.Volume > recentMaxVol {
			recentMaxVol = b.Volume
		}
	}
	refMaxVol := tailMax(volumes(bars), d.cfg.LPSVolRefWindow)
	if refMaxVol <= 0 {
		return contracts.PatternSignal{}, false
	}
	volRatio := recentMaxVol / refMaxVol
	if volRatio > d.cfg.LPSVolDryRatio {
		return contracts.PatternSignal{}, false
	}

	return contracts.PatternSignal{
		Type:        contracts.SignalLPS,
		Confidence:  clamp01(1 - volRatio),
		Support:     ma,
		VolumeRatio: volRatio,
	}, true
}
