package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/funnel"
	"github.com/youngcan/wyckoff-funnel/internal/store"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// ScreeningJob runs the full funnel after the A-share close
type ScreeningJob struct {
	engine *funnel.Engine
	repo   *store.Repository
	logger *logger.Logger
}

// NewScreeningJob creates a new screening job. repo may be nil; results are
// then only logged.
func NewScreeningJob(engine *funnel.Engine, repo *store.Repository, log *logger.Logger) *ScreeningJob {
	return &ScreeningJob{
		engine: engine,
		repo:   repo,
		logger: log,
	}
}

// Name returns the job name
func (j *ScreeningJob) Name() string {
	return "daily_screening"
}

// Schedule returns the cron schedule (weekdays at 15:30 CST, after the close)
func (j *ScreeningJob) Schedule() string {
	return "0 30 15 * * MON-FRI" // with seconds
}

// Run executes the daily screening
func (j *ScreeningJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled screening run")

	result, err := j.engine.Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("screening run failed: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"run_date":   result.RunDate.Format("2006-01-02"),
		"universe":   result.Counts.Universe,
		"candidates": len(result.Candidates),
	}).Info("Screening run completed")

	if j.repo == nil {
		return nil
	}

	if err := j.repo.SaveResult(ctx, result); err != nil {
		return fmt.Errorf("failed to persist screening result: %w", err)
	}

	return nil
}
