package funnel

import (
	"math"
	"sort"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/internal/marketdata"
	"github.com/youngcan/wyckoff-funnel/internal/pattern"
)

// layer1Static applies the checks that need no price history: board,
// special-risk flag, and the market-cap floor. Symbols with an unknown
// cap (degraded symbol source) skip the cap check rather than fail it.
func (e *Engine) layer1Static(result *contracts.ScreeningResult, cands []*contracts.FunnelCandidate) []*contracts.FunnelCandidate {
	allowed := make(map[contracts.Board]bool, len(e.cfg.Universe.AllowedBoards))
	for _, b := range e.cfg.Universe.AllowedBoards {
		allowed[contracts.Board(b)] = true
	}
	var passed []*contracts.FunnelCandidate
	for _, c := range cands {
		switch {
		case !allowed[c.Symbol.Board]:
			result.Exclude(c.Symbol.Code, contracts.ReasonBoard)
		case e.cfg.Universe.ExcludeSpecialRisk && c.Symbol.SpecialRisk:
			result.Exclude(c.Symbol.Code, contracts.ReasonSpecialRisk)
		case c.Symbol.MarketCap > 0 && c.Symbol.MarketCap < e.cfg.Quality.CapFloor:
			result.Exclude(c.Symbol.Code, contracts.ReasonCapFloor)
		default:
			passed = append(passed, c)
		}
	}
	return passed
}

// layer1Amount finishes Layer 1 once histories are in: the trailing
// average traded amount must clear the floor.
func (e *Engine) layer1Amount(result *contracts.ScreeningResult, cands []*contracts.FunnelCandidate, histories map[string]*marketdata.History) []*contracts.FunnelCandidate {
	var passed []*contracts.FunnelCandidate
	for _, c := range cands {
		hist := histories[c.Symbol.Code]
		avg, ok := avgAmount(hist.Bars, e.cfg.Quality.AmountAvgWindow)
		if !ok || avg < e.cfg.Quality.AmountFloor {
			result.Exclude(c.Symbol.Code, contracts.ReasonAmountFloor)
			continue
		}
		c.AvgAmount20D = avg
		c.MarkLayer(contracts.LayerQuality, true)
		passed = append(passed, c)
	}
	return passed
}

// layer2Trend keeps candidates in bullish moving-average alignment, or
// holding above the short average while the benchmark is in a drawdown.
// Survivors then pass a relative-strength cut: a floor on the
// short-window excess return and a top-percentile rank on the long one.
// Without a benchmark series both benchmark-relative gates fall away
// and only the moving-average alignment filters.
func (e *Engine) layer2Trend(result *contracts.ScreeningResult, cands []*contracts.FunnelCandidate, histories map[string]*marketdata.History, bench []contracts.OHLCVBar) []*contracts.FunnelCandidate {
	trend := e.cfg.Trend
	dropping := benchInDrawdown(bench, trend.BenchDropDays, trend.BenchDropThreshold)
	rsEnabled := trend.EnableRSFilter && len(bench) > 0

	var passed []*contracts.FunnelCandidate
	for _, c := range cands {
		bars := histories[c.Symbol.Code].Bars
		if len(bars) < trend.MALong {
			result.Exclude(c.Symbol.Code, contracts.ReasonShortHistory)
			continue
		}
		c.MAShort = pattern.SMA(bars, trend.MAShort)
		c.MALong = pattern.SMA(bars, trend.MALong)
		bullish := c.MAShort > c.MALong

		holding := false
		if dropping {
			maHold := pattern.SMA(bars, trend.MAHold)
			holding = maHold > 0 && bars[len(bars)-1].Close >= maHold
		}
		if !bullish && !holding {
			result.Exclude(c.Symbol.Code, contracts.ReasonTrendFilter)
			continue
		}

		rsLong, rsShort, ok := relativeStrength(bars, bench, trend.RSLookbackDays, trend.RSLookbackShortDays)
		if rsEnabled {
			if !ok {
				result.Exclude(c.Symbol.Code, contracts.ReasonShortHistory)
				continue
			}
			if rsShort < trend.RSMinShort {
				result.Exclude(c.Symbol.Code, contracts.ReasonRSFilter)
				continue
			}
		}
		c.RSScore = rsLong
		passed = append(passed, c)
	}

	if !rsEnabled || len(passed) == 0 {
		for _, c := range passed {
			c.MarkLayer(contracts.LayerTrend, true)
		}
		return passed
	}

	// Top-percentile cut on the long-window excess return.
	ranked := make([]*contracts.FunnelCandidate, len(passed))
	copy(ranked, passed)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].RSScore != ranked[j].RSScore {
			return ranked[i].RSScore > ranked[j].RSScore
		}
		return ranked[i].Symbol.Code < ranked[j].Symbol.Code
	})
	keep := int(math.Ceil(trend.RSTopPercentile * float64(len(ranked))))
	if keep < 1 {
		keep = 1
	}
	kept := make(map[string]bool, keep)
	for _, c := range ranked[:keep] {
		kept[c.Symbol.Code] = true
	}

	var survivors []*contracts.FunnelCandidate
	for _, c := range passed {
		if !kept[c.Symbol.Code] {
			result.Exclude(c.Symbol.Code, contracts.ReasonRSFilter)
			continue
		}
		c.MarkLayer(contracts.LayerTrend, true)
		survivors = append(survivors, c)
	}
	return survivors
}

// layer3Sector ranks sectors by the mean relative strength of their
// surviving members and keeps only candidates inside the top-N sectors.
// When no survivor carries sector data the layer is skipped entirely
// rather than emptying the funnel on a metadata gap.
func (e *Engine) layer3Sector(result *contracts.ScreeningResult, cands []*contracts.FunnelCandidate) ([]*contracts.FunnelCandidate, []string) {
	type sectorAgg struct {
		name  string
		sum   float64
		count int
	}
	aggs := make(map[string]*sectorAgg)
	for _, c := range cands {
		s := c.Symbol.Sector
		if s == "" {
			continue
		}
		a := aggs[s]
		if a == nil {
			a = &sectorAgg{name: s}
			aggs[s] = a
		}
		a.sum += c.RSScore
		a.count++
	}
	if len(aggs) == 0 {
		for _, c := range cands {
			c.MarkLayer(contracts.LayerSector, true)
		}
		return cands, nil
	}

	ordered := make([]*sectorAgg, 0, len(aggs))
	for _, a := range aggs {
		ordered = append(ordered, a)
	}
	sort.Slice(ordered, func(i, j int) bool {
		si := ordered[i].sum / float64(ordered[i].count)
		sj := ordered[j].sum / float64(ordered[j].count)
		if si != sj {
			return si > sj
		}
		return ordered[i].name < ordered[j].name
	})

	topN := e.cfg.Sector.TopN
	if topN > len(ordered) {
		topN = len(ordered)
	}
	rank := make(map[string]int, topN)
	topSectors := make([]string, 0, topN)
	for i, a := range ordered[:topN] {
		rank[a.name] = i + 1
		topSectors = append(topSectors, a.name)
	}

	var passed []*contracts.FunnelCandidate
	for _, c := range cands {
		r, ok := rank[c.Symbol.Sector]
		if !ok {
			result.Exclude(c.Symbol.Code, contracts.ReasonSector)
			continue
		}
		c.SectorRank = r
		c.MarkLayer(contracts.LayerSector, true)
		passed = append(passed, c)
	}
	return passed, topSectors
}

// layer4Pattern runs the detectors over the trailing bar window and
// keeps candidates with at least one qualifying signal, ranked by the
// composite score. The output is capped at top-K.
func (e *Engine) layer4Pattern(result *contracts.ScreeningResult, cands []*contracts.FunnelCandidate, histories map[string]*marketdata.History) []*contracts.FunnelCandidate {
	var passed []*contracts.FunnelCandidate
	for _, c := range cands {
		bars := tailBars(histories[c.Symbol.Code].Bars, e.cfg.Patterns.WindowBars)
		signals := e.detector.Detect(bars)
		if len(signals) == 0 {
			result.Exclude(c.Symbol.Code, contracts.ReasonNoPattern)
			continue
		}
		c.Signals = signals
		c.MarkLayer(contracts.LayerPattern, true)
		passed = append(passed, c)
	}
	if len(passed) == 0 {
		return passed
	}

	scoreComposite(passed)
	sort.SliceStable(passed, func(i, j int) bool {
		if passed[i].CompositeScore != passed[j].CompositeScore {
			return passed[i].CompositeScore > passed[j].CompositeScore
		}
		if passed[i].RSScore != passed[j].RSScore {
			return passed[i].RSScore > passed[j].RSScore
		}
		return passed[i].Symbol.Code < passed[j].Symbol.Code
	})
	if len(passed) > e.cfg.Patterns.TopK {
		passed = passed[:e.cfg.Patterns.TopK]
	}
	return passed
}

// scoreComposite assigns each survivor a score blending its best signal
// confidence, its relative strength normalized across the group, and a
// volume-confirmation term derived from the signal itself.
func scoreComposite(cands []*contracts.FunnelCandidate) {
	minRS, maxRS := cands[0].RSScore, cands[0].RSScore
	for _, c := range cands[1:] {
		if c.RSScore < minRS {
			minRS = c.RSScore
		}
		if c.RSScore > maxRS {
			maxRS = c.RSScore
		}
	}
	for _, c := range cands {
		best := c.BestSignal()
		rsNorm := 1.0
		if maxRS > minRS {
			rsNorm = (c.RSScore - minRS) / (maxRS - minRS)
		}
		c.CompositeScore = 0.5*best.Confidence + 0.3*rsNorm + 0.2*volumeConfirmation(best)
	}
}

// volumeConfirmation maps a signal's volume character onto [0, 1]. For
// a spring or an effort surge more volume confirms; for an LPS the
// pullback drying up is the confirmation.
func volumeConfirmation(sig contracts.PatternSignal) float64 {
	switch sig.Type {
	case contracts.SignalLPS:
		v := 1 - sig.VolumeRatio
		if v < 0 {
			return 0
		}
		return v
	default:
		v := sig.VolumeRatio / 3
		if v > 1 {
			return 1
		}
		if v < 0 {
			return 0
		}
		return v
	}
}
