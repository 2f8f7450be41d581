package pattern

import "github.com/youngcan/wyckoff-funnel/internal/contracts"

// DetectEVR looks for effort without result: one of the last two bars
// prints a volume surge against the reference baseline while the price
// barely moves. High-level surges are treated as distribution and
// skipped, as is a close sitting clearly below its level three days
// prior. Confidence scales with the volume divergence.
func (d *Detector) DetectEVR(bars []contracts.OHLCVBar) (contracts.PatternSignal, bool) {
	if len(bars) < d.cfg.EVRVolWindow+2 {
		return contracts.PatternSignal{}, false
	}

	lastClose := bars[len(bars)-1].Close

	// Extended above the long average means any surge reads as
	// distribution, not absorption.
	if maLong := SMA(bars, d.cfg.EVRBiasMA); maLong > 0 {
		bias := (lastClose - maLong) / maLong * 100
		if bias > d.cfg.EVRBiasMaxPct {
			return contracts.PatternSignal{}, false
		}
	}

	// Baseline excludes the last two days so the surge itself does not
	// inflate the reference.
	refAvg := tailMean(volumes(bars), d.cfg.EVRVolWindow-2, 2)
	if refAvg <= 0 {
		return contracts.PatternSignal{}, false
	}

	for _, offset := range []int{1, 2} {
		bar := bars[len(bars)-offset]
		volRatio := bar.Volume / refAvg
		if volRatio < d.cfg.EVRVolRatio {
			continue
		}
		// Keep only small bodies: no big down day, no big up day.
		if bar.PctChange < -d.cfg.EVRMaxDrop || bar.PctChange > d.cfg.EVRMaxRise {
			continue
		}
		// A close clearly below three days ago marks a downtrend pause.
		if len(bars) >= 4 {
			if ago := bars[len(bars)-4].Close; ago > 0 && lastClose < ago*d.cfg.EVRHoldRatio {
				continue
			}
		}
		return contracts.PatternSignal{
			Type:        contracts.SignalEVR,
			Confidence:  clamp01(volRatio / (2 * d.cfg.EVRVolRatio)),
			Support:     bar.Low,
			VolumeRatio: volRatio,
		}, true
	}
	return contracts.PatternSignal{}, false
}
