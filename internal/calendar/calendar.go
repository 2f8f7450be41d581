// Package calendar resolves trading-day-aligned date windows. The trading
// day list is loaded from a Source on first use, cached with a TTL, and
// refreshed in place; stale data is better than no data, so a failed
// refresh falls back to the previous snapshot.
package calendar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
	"github.com/youngcan/wyckoff-funnel/pkg/redis"
)

// Source provides the raw sorted-or-unsorted trading day list.
type Source interface {
	TradingDays(ctx context.Context) ([]time.Time, error)
}

// Window is a resolved trading-day window, inclusive of both ends.
// Partial marks a window clamped to the start of available history.
type Window struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	TradingDays int       `json:"trading_days"`
	Partial     bool      `json:"partial"`
}

const cacheKey = "trade_dates"

// Service is the injected trading-calendar service.
type Service struct {
	source Source
	cache  *redis.Cache
	logger *logger.Logger
	ttl    time.Duration

	mu       sync.Mutex
	days     []time.Time // sorted ascending, midnight UTC
	loadedAt time.Time
}

// NewService creates a calendar service. cache may have Redis disabled, in
// which case only the in-process snapshot is used.
func NewService(source Source, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		source: source,
		cache:  cache,
		logger: log.WithField("module", "calendar"),
		ttl:    ttl,
	}
}

// ResolveWindow resolves a window of tradingDays trading days whose end is
// the latest trading day <= referenceDate minus endOffsetDays calendar days.
// A window reaching past the start of the calendar is clamped and flagged
// Partial rather than failing.
func (s *Service) ResolveWindow(ctx context.Context, referenceDate time.Time, endOffsetDays, tradingDays int) (Window, error) {
	if tradingDays <= 0 {
		return Window{}, &contracts.CalendarError{Msg: "trading_days must be > 0"}
	}
	if endOffsetDays < 0 {
		return Window{}, &contracts.CalendarError{Msg: "end_offset_days must be >= 0"}
	}

	days, err := s.tradingDays(ctx)
	if err != nil {
		return Window{}, err
	}

	cutoff := midnightUTC(referenceDate).AddDate(0, 0, -endOffsetDays)

	// Index of the latest trading day <= cutoff.
	idx := sort.Search(len(days), func(i int) bool { return days[i].After(cutoff) }) - 1
	if idx < 0 {
		return Window{}, &contracts.CalendarError{
			Msg: fmt.Sprintf("reference date %s precedes calendar coverage", cutoff.Format("2006-01-02")),
		}
	}

	startIdx := idx - (tradingDays - 1)
	partial := false
	if startIdx < 0 {
		startIdx = 0
		partial = true
	}

	return Window{
		Start:       days[startIdx],
		End:         days[idx],
		TradingDays: idx - startIdx + 1,
		Partial:     partial,
	}, nil
}

// Invalidate drops the cached day list so the next call reloads it.
func (s *Service) Invalidate(ctx context.Context) {
	s.mu.Lock()
	s.days = nil
	s.loadedAt = time.Time{}
	s.mu.Unlock()
	if err := s.cache.Delete(ctx, cacheKey); err != nil {
		s.logger.WithError(err).Warn("Failed to invalidate calendar cache")
	}
}

// tradingDays returns the sorted trading-day snapshot, loading or
// refreshing it as needed.
func (s *Service) tradingDays(ctx context.Context) ([]time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.days != nil && time.Since(s.loadedAt) < s.ttl {
		return s.days, nil
	}

	// Redis first: shared across processes, survives restarts.
	var cached []time.Time
	if found, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && found && len(cached) > 0 {
		s.days = normalize(cached)
		s.loadedAt = time.Now()
		return s.days, nil
	}

	fresh, err := s.source.TradingDays(ctx)
	if err != nil || len(fresh) == 0 {
		if s.days != nil {
			s.logger.WithError(err).Warn("Calendar refresh failed, using stale snapshot")
			return s.days, nil
		}
		return nil, &contracts.CalendarError{Msg: fmt.Sprintf("calendar data unavailable: %v", err)}
	}

	s.days = normalize(fresh)
	s.loadedAt = time.Now()
	if err := s.cache.Set(ctx, cacheKey, s.days, s.ttl); err != nil {
		s.logger.WithError(err).Warn("Failed to cache calendar")
	}
	return s.days, nil
}

// normalize sorts, dedupes, and floors the day list to midnight UTC.
func normalize(days []time.Time) []time.Time {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		out = append(out, midnightUTC(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	dedup := out[:0]
	for _, d := range out {
		if len(dedup) > 0 && dedup[len(dedup)-1].Equal(d) {
			continue
		}
		dedup = append(dedup, d)
	}
	return dedup
}

func midnightUTC(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
