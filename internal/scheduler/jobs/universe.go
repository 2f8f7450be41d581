package jobs

import (
	"context"
	"fmt"

	"github.com/youngcan/wyckoff-funnel/internal/calendar"
	"github.com/youngcan/wyckoff-funnel/internal/universe"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// UniverseRefreshJob rebuilds the symbol universe cache before the open so
// the afternoon screening run starts from a fresh listing snapshot.
type UniverseRefreshJob struct {
	builder  *universe.Builder
	calendar *calendar.Service
	logger   *logger.Logger
}

// NewUniverseRefreshJob creates a new universe refresh job
func NewUniverseRefreshJob(builder *universe.Builder, cal *calendar.Service, log *logger.Logger) *UniverseRefreshJob {
	return &UniverseRefreshJob{
		builder:  builder,
		calendar: cal,
		logger:   log,
	}
}

// Name returns the job name
func (j *UniverseRefreshJob) Name() string {
	return "universe_refresh"
}

// Schedule returns the cron schedule (weekdays at 08:30 CST, before the open)
func (j *UniverseRefreshJob) Schedule() string {
	return "0 30 8 * * MON-FRI" // with seconds
}

// Run rebuilds the universe and drops the stale calendar snapshot
func (j *UniverseRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled universe refresh")

	j.calendar.Invalidate(ctx)

	uni, err := j.builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("universe rebuild failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"symbols":  len(uni.Symbols),
		"excluded": len(uni.Excluded),
	}).Info("Universe refresh completed")

	return nil
}
