package calendar

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
	"github.com/youngcan/wyckoff-funnel/pkg/redis"
)

type staticSource struct {
	days  []time.Time
	err   error
	calls int
}

func (s *staticSource) TradingDays(context.Context) ([]time.Time, error) {
	s.calls++
	return s.days, s.err
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// weekdays returns n consecutive weekdays starting at start.
func weekdays(start time.Time, n int) []time.Time {
	days := make([]time.Time, 0, n)
	for d := start; len(days) < n; d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		days = append(days, d)
	}
	return days
}

func newTestService(src Source) *Service {
	return NewService(src, redis.NewCache(redis.NewDisabled(), "test"), time.Hour, logger.NewNop())
}

func TestResolveWindow(t *testing.T) {
	// Mon 2026-06-01 through Fri 2026-06-26: 20 weekdays.
	days := weekdays(day(2026, 6, 1), 20)
	svc := newTestService(&staticSource{days: days})
	ctx := context.Background()

	t.Run("end lands on latest trading day before the offset", func(t *testing.T) {
		// Reference Sat 2026-06-13, offset 1 -> cutoff Fri 2026-06-12.
		w, err := svc.ResolveWindow(ctx, day(2026, 6, 13), 1, 5)
		require.NoError(t, err)
		assert.Equal(t, day(2026, 6, 12), w.End)
		assert.Equal(t, day(2026, 6, 8), w.Start)
		assert.Equal(t, 5, w.TradingDays)
		assert.False(t, w.Partial)
	})

	t.Run("offset skips over a weekend", func(t *testing.T) {
		// Reference Mon 2026-06-15, offset 1 -> cutoff Sun -> end Fri.
		w, err := svc.ResolveWindow(ctx, day(2026, 6, 15), 1, 3)
		require.NoError(t, err)
		assert.Equal(t, day(2026, 6, 12), w.End)
	})

	t.Run("intraday reference resolves like its date", func(t *testing.T) {
		ref := time.Date(2026, 6, 13, 15, 30, 0, 0, time.UTC)
		w, err := svc.ResolveWindow(ctx, ref, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, day(2026, 6, 12), w.End)
	})

	t.Run("window longer than history clamps and flags partial", func(t *testing.T) {
		w, err := svc.ResolveWindow(ctx, day(2026, 6, 27), 1, 500)
		require.NoError(t, err)
		assert.True(t, w.Partial)
		assert.Equal(t, days[0], w.Start)
		assert.Equal(t, days[len(days)-1], w.End)
		assert.Equal(t, 20, w.TradingDays)
	})

	t.Run("reference before coverage fails", func(t *testing.T) {
		_, err := svc.ResolveWindow(ctx, day(2026, 5, 1), 1, 5)
		var cerr *contracts.CalendarError
		require.ErrorAs(t, err, &cerr)
	})

	t.Run("invalid arguments fail", func(t *testing.T) {
		var cerr *contracts.CalendarError
		_, err := svc.ResolveWindow(ctx, day(2026, 6, 13), 1, 0)
		require.ErrorAs(t, err, &cerr)
		_, err = svc.ResolveWindow(ctx, day(2026, 6, 13), -1, 5)
		require.ErrorAs(t, err, &cerr)
	})
}

func TestResolveWindow_ExactInclusiveCount(t *testing.T) {
	days := weekdays(day(2026, 1, 5), 250)
	svc := newTestService(&staticSource{days: days})

	for _, n := range []int{1, 10, 120, 250} {
		w, err := svc.ResolveWindow(context.Background(), days[len(days)-1].AddDate(0, 0, 1), 1, n)
		require.NoError(t, err)
		assert.Equal(t, n, w.TradingDays)
		assert.False(t, w.Partial)

		// Count list entries between start and end, inclusive.
		count := 0
		for _, d := range days {
			if !d.Before(w.Start) && !d.After(w.End) {
				count++
			}
		}
		assert.Equal(t, n, count)
	}
}

func TestService_SnapshotReuseAndInvalidate(t *testing.T) {
	src := &staticSource{days: weekdays(day(2026, 6, 1), 20)}
	svc := newTestService(src)
	ctx := context.Background()

	_, err := svc.ResolveWindow(ctx, day(2026, 6, 13), 1, 5)
	require.NoError(t, err)
	_, err = svc.ResolveWindow(ctx, day(2026, 6, 13), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 1, src.calls, "snapshot should be reused within the TTL")

	svc.Invalidate(ctx)
	_, err = svc.ResolveWindow(ctx, day(2026, 6, 13), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "invalidation forces a reload")
}

func TestService_StaleFallbackOnRefreshFailure(t *testing.T) {
	src := &staticSource{days: weekdays(day(2026, 6, 1), 20)}
	svc := NewService(src, redis.NewCache(redis.NewDisabled(), "test"), time.Nanosecond, logger.NewNop())
	ctx := context.Background()

	_, err := svc.ResolveWindow(ctx, day(2026, 6, 13), 1, 5)
	require.NoError(t, err)

	// TTL expired and the source now fails; the stale snapshot serves.
	src.err = errors.New("upstream down")
	src.days = nil
	w, err := svc.ResolveWindow(ctx, day(2026, 6, 13), 1, 5)
	require.NoError(t, err)
	assert.Equal(t, day(2026, 6, 12), w.End)
}

func TestService_SourceFailureWithoutSnapshot(t *testing.T) {
	svc := newTestService(&staticSource{err: errors.New("upstream down")})
	_, err := svc.ResolveWindow(context.Background(), day(2026, 6, 13), 1, 5)
	require.Error(t, err)
}
