package contracts

import (
	"sort"
	"time"
)

// OHLCVBar is one end-of-day bar. A series for a symbol is sorted
// ascending by date with no duplicate dates; bars missing required
// fields are dropped at the gateway, never fabricated.
type OHLCVBar struct {
	Date         time.Time `json:"date"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       float64   `json:"volume"` // shares
	Amount       float64   `json:"amount"` // CNY traded value
	TurnoverRate float64   `json:"turnover_rate,omitempty"`
	Amplitude    float64   `json:"amplitude,omitempty"`
	PctChange    float64   `json:"pct_change"` // daily change, percent
}

// Valid reports whether the bar carries all required fields.
// TurnoverRate and Amplitude are optional (not every provider serves them).
func (b OHLCVBar) Valid() bool {
	return !b.Date.IsZero() &&
		b.Open > 0 && b.High > 0 && b.Low > 0 && b.Close > 0 &&
		b.Volume >= 0 && b.Amount >= 0 &&
		b.High >= b.Low
}

// CleanSeries sorts bars ascending by date, drops invalid bars and
// duplicate dates (first occurrence wins), and backfills PctChange
// from consecutive closes where the provider left it zero.
func CleanSeries(bars []OHLCVBar) []OHLCVBar {
	out := make([]OHLCVBar, 0, len(bars))
	for _, b := range bars {
		if b.Valid() {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	dedup := out[:0]
	for _, b := range out {
		if len(dedup) > 0 && dedup[len(dedup)-1].Date.Equal(b.Date) {
			continue
		}
		dedup = append(dedup, b)
	}

	for i := 1; i < len(dedup); i++ {
		if dedup[i].PctChange == 0 && dedup[i-1].Close > 0 && dedup[i].Close != dedup[i-1].Close {
			dedup[i].PctChange = (dedup[i].Close - dedup[i-1].Close) / dedup[i-1].Close * 100
		}
	}
	return dedup
}
