package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

type scriptedProvider struct {
	name  ProviderName
	bars  []contracts.OHLCVBar
	errs  []error // consumed one per call, then bars are served
	calls int
}

func (p *scriptedProvider) Name() ProviderName { return p.name }

func (p *scriptedProvider) FetchHistory(context.Context, string, time.Time, time.Time, AdjustMode) ([]contracts.OHLCVBar, error) {
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	return p.bars, nil
}

func validBars(n int) []contracts.OHLCVBar {
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	bars := make([]contracts.OHLCVBar, n)
	for i := range bars {
		bars[i] = contracts.OHLCVBar{
			Date: start.AddDate(0, 0, i),
			Open: 10, High: 10.5, Low: 9.5, Close: 10.2,
			Volume: 1000, Amount: 10200,
		}
	}
	return bars
}

func fastGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxAttempts:    2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		MinBars:        1,
	}
}

func fetchWindow() (time.Time, time.Time) {
	return time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)
}

func TestGateway_FetchHistory_PrimarySuccess(t *testing.T) {
	primary := &scriptedProvider{name: ProviderEastmoney, bars: validBars(10)}
	fallback := &scriptedProvider{name: ProviderTencent, bars: validBars(10)}
	g := NewGateway(fastGatewayConfig(), logger.NewNop(), primary, fallback)

	start, end := fetchWindow()
	hist, err := g.FetchHistory(context.Background(), "600000", start, end, AdjustForward)
	require.NoError(t, err)

	assert.Equal(t, ProviderEastmoney, hist.Provider)
	assert.Len(t, hist.Bars, 10)
	assert.Zero(t, fallback.calls, "fallback must not be touched on success")
}

func TestGateway_FetchHistory_FallbackTagged(t *testing.T) {
	primary := &scriptedProvider{
		name: ProviderEastmoney,
		errs: []error{errors.New("503"), errors.New("503")},
	}
	fallback := &scriptedProvider{name: ProviderTencent, bars: validBars(10)}
	g := NewGateway(fastGatewayConfig(), logger.NewNop(), primary, fallback)

	start, end := fetchWindow()
	hist, err := g.FetchHistory(context.Background(), "600000", start, end, AdjustForward)
	require.NoError(t, err)

	assert.Equal(t, ProviderTencent, hist.Provider, "result is tagged with the provider that served it")
	assert.Equal(t, 2, primary.calls, "primary used its full attempt budget")
	assert.Equal(t, 1, fallback.calls)
}

func TestGateway_FetchHistory_MalformedSkipsRetryBudget(t *testing.T) {
	primary := &scriptedProvider{
		name: ProviderEastmoney,
		errs: []error{&MalformedError{Provider: ProviderEastmoney, Msg: "no klines"}},
		bars: validBars(10),
	}
	fallback := &scriptedProvider{name: ProviderTencent, bars: validBars(10)}
	g := NewGateway(fastGatewayConfig(), logger.NewNop(), primary, fallback)

	start, end := fetchWindow()
	hist, err := g.FetchHistory(context.Background(), "600000", start, end, AdjustForward)
	require.NoError(t, err)

	assert.Equal(t, 1, primary.calls, "malformed response must not be retried")
	assert.Equal(t, ProviderTencent, hist.Provider)
}

func TestGateway_FetchHistory_AllProvidersExhausted(t *testing.T) {
	p1 := &scriptedProvider{name: ProviderEastmoney, errs: []error{errors.New("down"), errors.New("down")}}
	p2 := &scriptedProvider{name: ProviderTencent, errs: []error{errors.New("down"), errors.New("down")}}
	g := NewGateway(fastGatewayConfig(), logger.NewNop(), p1, p2)

	start, end := fetchWindow()
	_, err := g.FetchHistory(context.Background(), "600000", start, end, AdjustForward)

	var ferr *contracts.DataFetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, "600000", ferr.Symbol)
}

func TestGateway_FetchHistory_ShortSeriesFailsQuality(t *testing.T) {
	thin := &scriptedProvider{name: ProviderEastmoney, bars: validBars(3)}
	full := &scriptedProvider{name: ProviderTencent, bars: validBars(20)}
	cfg := fastGatewayConfig()
	cfg.MinBars = 10
	g := NewGateway(cfg, logger.NewNop(), thin, full)

	start, end := fetchWindow()
	hist, err := g.FetchHistory(context.Background(), "600000", start, end, AdjustForward)
	require.NoError(t, err)
	assert.Equal(t, ProviderTencent, hist.Provider, "thin series falls through to the next provider")

	// With no fallback left the quality failure surfaces.
	gThin := NewGateway(cfg, logger.NewNop(), &scriptedProvider{name: ProviderEastmoney, bars: validBars(3)})
	_, err = gThin.FetchHistory(context.Background(), "600000", start, end, AdjustForward)
	var ferr *contracts.DataFetchError
	require.ErrorAs(t, err, &ferr)
	var qerr *contracts.DataQualityError
	assert.ErrorAs(t, err, &qerr)
}

func TestGateway_FetchHistory_ContextCancelStopsChain(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p1 := &scriptedProvider{name: ProviderEastmoney, errs: []error{ctx.Err()}}
	p2 := &scriptedProvider{name: ProviderTencent, bars: validBars(10)}
	g := NewGateway(fastGatewayConfig(), logger.NewNop(), p1, p2)

	start, end := fetchWindow()
	_, err := g.FetchHistory(ctx, "600000", start, end, AdjustForward)
	require.Error(t, err)
	assert.Zero(t, p2.calls, "a dead context must not cascade through the chain")
}

func TestGateway_FetchHistory_CleansSeries(t *testing.T) {
	bars := validBars(10)
	// Shuffle in a duplicate date and an invalid bar.
	bars = append(bars, bars[3])
	bars = append(bars, contracts.OHLCVBar{Date: bars[0].Date.AddDate(0, 0, 30)})
	p := &scriptedProvider{name: ProviderEastmoney, bars: bars}
	g := NewGateway(fastGatewayConfig(), logger.NewNop(), p)

	start, end := fetchWindow()
	hist, err := g.FetchHistory(context.Background(), "600000", start, end, AdjustForward)
	require.NoError(t, err)
	assert.Len(t, hist.Bars, 10)
	for i := 1; i < len(hist.Bars); i++ {
		assert.True(t, hist.Bars[i].Date.After(hist.Bars[i-1].Date), "bars sorted ascending, no duplicates")
	}
}
