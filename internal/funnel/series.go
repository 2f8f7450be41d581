package funnel

import (
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

// cumReturnPct compounds the daily percent changes of the last n bars.
// Returns ok=false when fewer than n bars are available.
func cumReturnPct(bars []contracts.OHLCVBar, n int) (float64, bool) {
	if n <= 0 || len(bars) < n {
		return 0, false
	}
	acc := 1.0
	for _, b := range bars[len(bars)-n:] {
		acc *= 1 + b.PctChange/100
	}
	return (acc - 1) * 100, true
}

// relativeStrength aligns the symbol and benchmark series on shared
// dates and returns the long- and short-window excess returns. The
// inner join keeps suspension gaps from skewing the comparison.
func relativeStrength(stock, bench []contracts.OHLCVBar, wLong, wShort int) (rsLong, rsShort float64, ok bool) {
	benchByDate := make(map[time.Time]contracts.OHLCVBar, len(bench))
	for _, b := range bench {
		benchByDate[b.Date] = b
	}
	var s, b []contracts.OHLCVBar
	for _, bar := range stock {
		if bb, found := benchByDate[bar.Date]; found {
			s = append(s, bar)
			b = append(b, bb)
		}
	}
	need := wLong
	if wShort > need {
		need = wShort
	}
	if len(s) < need {
		return 0, 0, false
	}
	sLong, ok1 := cumReturnPct(s, wLong)
	bLong, ok2 := cumReturnPct(b, wLong)
	sShort, ok3 := cumReturnPct(s, wShort)
	bShort, ok4 := cumReturnPct(b, wShort)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, false
	}
	return sLong - bLong, sShort - bShort, true
}

// benchInDrawdown reports whether the benchmark's compounded return over
// the trailing drop window is at or below the threshold.
func benchInDrawdown(bench []contracts.OHLCVBar, days int, threshold float64) bool {
	ret, ok := cumReturnPct(bench, days)
	return ok && ret <= threshold
}

// avgAmount averages the traded amount of the last n bars.
func avgAmount(bars []contracts.OHLCVBar, n int) (float64, bool) {
	if n <= 0 || len(bars) == 0 {
		return 0, false
	}
	start := len(bars) - n
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, b := range bars[start:] {
		sum += b.Amount
	}
	return sum / float64(len(bars)-start), true
}

// tailBars returns the last n bars, or all of them when shorter.
func tailBars(bars []contracts.OHLCVBar, n int) []contracts.OHLCVBar {
	if n <= 0 || len(bars) <= n {
		return bars
	}
	return bars[len(bars)-n:]
}
