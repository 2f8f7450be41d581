package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoardFromCode(t *testing.T) {
	cases := map[string]Board{
		"600519": BoardMain,
		"601318": BoardMain,
		"603259": BoardMain,
		"605111": BoardMain,
		"000001": BoardMain,
		"002594": BoardMain,
		"003816": BoardMain,
		"300750": BoardGrowth,
		"301269": BoardGrowth,
		"688981": BoardSTAR,
		"830799": BoardBeijing,
		"430047": BoardBeijing,
		"920002": BoardBeijing,
		"900901": BoardUnknown, // B share
		"12345":  BoardUnknown, // short code
	}
	for code, want := range cases {
		assert.Equal(t, want, BoardFromCode(code), code)
	}
}

func TestExchangeFromCode(t *testing.T) {
	assert.Equal(t, "SH", ExchangeFromCode("600519"))
	assert.Equal(t, "SH", ExchangeFromCode("688981"))
	assert.Equal(t, "SZ", ExchangeFromCode("000001"))
	assert.Equal(t, "SZ", ExchangeFromCode("300750"))
	assert.Equal(t, "BJ", ExchangeFromCode("830799"))
}

func TestOHLCVBar_Valid(t *testing.T) {
	good := OHLCVBar{
		Date: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Open: 10, High: 11, Low: 9.5, Close: 10.5,
		Volume: 1000, Amount: 10500,
	}
	assert.True(t, good.Valid())

	zeroDate := good
	zeroDate.Date = time.Time{}
	assert.False(t, zeroDate.Valid())

	zeroClose := good
	zeroClose.Close = 0
	assert.False(t, zeroClose.Valid())

	invertedRange := good
	invertedRange.High = 9.0
	assert.False(t, invertedRange.Valid())

	// A suspension day can print zero volume.
	noVolume := good
	noVolume.Volume = 0
	noVolume.Amount = 0
	assert.True(t, noVolume.Valid())
}

func TestCleanSeries(t *testing.T) {
	day := func(d int) time.Time { return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC) }
	bar := func(d int, close float64) OHLCVBar {
		return OHLCVBar{Date: day(d), Open: close, High: close * 1.01, Low: close * 0.99, Close: close, Volume: 100, Amount: close * 100}
	}

	series := []OHLCVBar{
		bar(3, 10.5),
		bar(2, 10.0),
		{Date: day(4)}, // invalid, dropped
		bar(2, 99.0),   // duplicate date, first occurrence wins
		bar(5, 10.92),
	}
	clean := CleanSeries(series)
	require.Len(t, clean, 3)
	assert.Equal(t, []time.Time{day(2), day(3), day(5)}, []time.Time{clean[0].Date, clean[1].Date, clean[2].Date})
	assert.Equal(t, 10.0, clean[0].Close, "first occurrence of a duplicate date wins")

	// PctChange backfilled from consecutive closes.
	assert.InDelta(t, 5.0, clean[1].PctChange, 1e-9)
	assert.InDelta(t, 4.0, clean[2].PctChange, 1e-9)
}

func TestScreeningResult_Exclude(t *testing.T) {
	r := &ScreeningResult{}
	r.Exclude("600001", ReasonCapFloor)
	r.Exclude("600001", ReasonTrendFilter) // duplicate, first reason sticks
	r.Exclude("600002", ReasonCapFloor)

	assert.Equal(t, ReasonCapFloor, r.Excluded["600001"])
	assert.Equal(t, 2, r.ExcludedCounts[ReasonCapFloor])
	assert.Zero(t, r.ExcludedCounts[ReasonTrendFilter])
}

func TestScreeningResult_ExcludedFraction(t *testing.T) {
	r := &ScreeningResult{}
	assert.Zero(t, r.ExcludedFraction(), "empty universe never warns")

	r.Counts.Universe = 10
	r.Exclude("600001", ReasonFetchFailed)
	r.Exclude("600002", ReasonDataQuality)
	r.Exclude("600003", ReasonTimeout)
	r.Exclude("600004", ReasonTrendFilter) // filter exclusions are not coverage loss

	assert.InDelta(t, 0.3, r.ExcludedFraction(), 1e-9)
}

func TestFunnelCandidate_BestSignal(t *testing.T) {
	c := &FunnelCandidate{}
	assert.Zero(t, c.BestSignal().Confidence)

	c.Signals = []PatternSignal{
		{Type: SignalLPS, Confidence: 0.6},
		{Type: SignalSpring, Confidence: 0.8},
		{Type: SignalEVR, Confidence: 0.4},
	}
	best := c.BestSignal()
	assert.Equal(t, SignalSpring, best.Type)
	assert.Equal(t, 0.8, best.Confidence)
}

func TestFunnelCandidate_MarkLayer(t *testing.T) {
	c := &FunnelCandidate{}
	c.MarkLayer(LayerQuality, true)
	c.MarkLayer(LayerTrend, false)
	assert.True(t, c.Passed[LayerQuality])
	assert.False(t, c.Passed[LayerTrend])
}
