package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/marketdata"
)

// IndexDateSource derives the trading-day list from the benchmark index
// daily series: the exchange trades exactly on the days its composite index
// prints a bar.
type IndexDateSource struct {
	gateway   *marketdata.Gateway
	indexCode string
	lookback  time.Duration
}

// NewIndexDateSource creates a source over the given benchmark index.
// lookback bounds how far back the calendar reaches; it must cover the
// longest window the funnel resolves.
func NewIndexDateSource(gateway *marketdata.Gateway, indexCode string, lookback time.Duration) *IndexDateSource {
	if lookback <= 0 {
		lookback = 4 * 365 * 24 * time.Hour
	}
	return &IndexDateSource{gateway: gateway, indexCode: indexCode, lookback: lookback}
}

// TradingDays implements Source.
func (s *IndexDateSource) TradingDays(ctx context.Context) ([]time.Time, error) {
	end := time.Now()
	start := end.Add(-s.lookback)

	bars, err := s.gateway.FetchIndexHistory(ctx, s.indexCode, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch index %s for calendar: %w", s.indexCode, err)
	}

	days := make([]time.Time, 0, len(bars))
	for _, b := range bars {
		days = append(days, b.Date)
	}
	return days, nil
}
