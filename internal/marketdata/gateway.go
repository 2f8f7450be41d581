package marketdata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// Gateway fetches per-symbol OHLCV history through a fixed, ordered chain of
// providers. Each provider gets a bounded retry budget with exponential
// backoff; a malformed or empty response skips the rest of that budget and
// falls through to the next provider. Exhausting the whole chain yields a
// DataFetchError, which callers fold into the run's exclusion accounting:
// one symbol's failure never aborts a batch.
type Gateway struct {
	providers []HistoryProvider
	index     []IndexProvider
	cfg       GatewayConfig
	logger    *logger.Logger
}

// GatewayConfig bounds the retry behavior per provider attempt.
type GatewayConfig struct {
	MaxAttempts    int           // attempts per provider, >= 1
	InitialBackoff time.Duration // doubled after each failed attempt
	MaxBackoff     time.Duration
	MinBars        int // series shorter than this fails quality validation
}

// DefaultGatewayConfig returns the default retry bounds.
func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
		MinBars:        1,
	}
}

// NewGateway creates a gateway over providers, tried in the given order.
func NewGateway(cfg GatewayConfig, log *logger.Logger, providers ...HistoryProvider) *Gateway {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MinBars < 1 {
		cfg.MinBars = 1
	}
	g := &Gateway{
		providers: providers,
		cfg:       cfg,
		logger:    log.WithField("module", "marketdata"),
	}
	for _, p := range providers {
		if ip, ok := p.(IndexProvider); ok {
			g.index = append(g.index, ip)
		}
	}
	return g
}

// FetchHistory fetches, cleans, and validates the daily series for one
// symbol. The result is tagged with the provider that served it.
func (g *Gateway) FetchHistory(ctx context.Context, symbol string, start, end time.Time, adjust AdjustMode) (*History, error) {
	var lastErr error
	for _, provider := range g.providers {
		bars, err := g.fetchWithRetry(ctx, provider, symbol, start, end, adjust)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			g.logger.WithError(err).WithFields(map[string]interface{}{
				"symbol":   symbol,
				"provider": string(provider.Name()),
			}).Debug("Provider failed, falling back")
			continue
		}

		clean := contracts.CleanSeries(bars)
		if len(clean) < g.cfg.MinBars {
			lastErr = &contracts.DataQualityError{
				Symbol: symbol,
				Msg:    fmt.Sprintf("%d usable bars after cleaning (provider %s)", len(clean), provider.Name()),
			}
			continue
		}

		return &History{Symbol: symbol, Provider: provider.Name(), Bars: clean}, nil
	}

	return nil, &contracts.DataFetchError{Symbol: symbol, Err: lastErr}
}

// FetchIndexHistory fetches the benchmark index series through the
// index-capable providers in chain order.
func (g *Gateway) FetchIndexHistory(ctx context.Context, indexCode string, start, end time.Time) ([]contracts.OHLCVBar, error) {
	var lastErr error
	for _, provider := range g.index {
		bars, err := provider.FetchIndexHistory(ctx, indexCode, start, end)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		clean := contracts.CleanSeries(bars)
		if len(clean) == 0 {
			lastErr = &contracts.DataQualityError{Symbol: indexCode, Msg: "no usable index bars"}
			continue
		}
		return clean, nil
	}
	return nil, &contracts.DataFetchError{Symbol: indexCode, Err: lastErr}
}

// fetchWithRetry runs one provider with its attempt budget. Malformed
// responses are not retried: the same payload would come back again.
func (g *Gateway) fetchWithRetry(ctx context.Context, provider HistoryProvider, symbol string, start, end time.Time, adjust AdjustMode) ([]contracts.OHLCVBar, error) {
	backoff := g.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		bars, err := provider.FetchHistory(ctx, symbol, start, end, adjust)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		var malformed *MalformedError
		if errors.As(err, &malformed) {
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt == g.cfg.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > g.cfg.MaxBackoff {
			backoff = g.cfg.MaxBackoff
		}
	}
	return nil, lastErr
}
