package pattern

import "github.com/youngcan/wyckoff-funnel/internal/contracts"

// DetectSpring looks for a shakeout: the prior-day low undercuts the
// lowest close of the trailing support window, the last close reclaims
// that floor, and the reclaim prints above-average volume. Confidence
// combines break depth and reclaim distance.
func (d *Detector) DetectSpring(bars []contracts.OHLCVBar) (contracts.PatternSignal, bool) {
	window := d.cfg.SpringSupportWindow
	if len(bars) < window+2 {
		return contracts.PatternSignal{}, false
	}

	// Support is the lowest close over the window ending the day before
	// the break. The last two bars are the break and the reclaim.
	zone := bars[len(bars)-window-1 : len(bars)-1]
	support := zone[0].Close
	for _, b := range zone[1:] {
		if b.Close < support {
			support = b.Close
		}
	}
	if support <= 0 {
		return contracts.PatternSignal{}, false
	}

	prev := bars[len(bars)-2]
	last := bars[len(bars)-1]
	if prev.Low >= support || last.Close <= support {
		return contracts.PatternSignal{}, false
	}

	// Reclaim volume against the average of the preceding baseline bars.
	volAvg := tailMean(volumes(bars), d.cfg.SpringVolBaseBars, 1)
	if volAvg <= 0 || last.Volume < volAvg*d.cfg.SpringVolRatio {
		return contracts.PatternSignal{}, false
	}

	depth := (support - prev.Low) / support * 100
	recovery := (last.Close - support) / support * 100
	return contracts.PatternSignal{
		Type:        contracts.SignalSpring,
		Confidence:  clamp01((depth + recovery) / 5),
		Support:     support,
		VolumeRatio: last.Volume / volAvg,
	}, true
}
