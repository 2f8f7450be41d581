package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
)

// Integration test; needs a reachable database.
func TestRepository_SaveAndLoad(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err, "database connection failed")
	defer pool.Close()

	_, err = pool.Exec(ctx, Schema)
	require.NoError(t, err)

	repo := NewRepository(pool)
	runDate := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
	result := &contracts.ScreeningResult{
		RunDate:     runDate,
		WindowStart: runDate.AddDate(0, 0, -700),
		WindowEnd:   runDate.AddDate(0, 0, -1),
		Counts:      contracts.LayerCounts{Universe: 4000, Layer1: 800, Layer2: 120, Layer3: 40, Layer4: 6},
		TopSectors:  []string{"半导体", "电池"},
		Candidates: []contracts.FunnelCandidate{
			{
				Symbol:         contracts.Symbol{Code: "600519", Name: "贵州茅台", Sector: "白酒"},
				RSScore:        4.2,
				CompositeScore: 0.91,
				Signals:        []contracts.PatternSignal{{Type: contracts.SignalSpring, Confidence: 0.8, Support: 1620}},
			},
		},
	}
	result.Exclude("600004", contracts.ReasonCapFloor)

	require.NoError(t, repo.SaveResult(ctx, result))
	// Upsert: saving the same date twice must not error.
	require.NoError(t, repo.SaveResult(ctx, result))

	loaded, err := repo.GetResult(ctx, runDate)
	require.NoError(t, err)
	assert.Equal(t, result.Counts, loaded.Counts)
	assert.Equal(t, result.TopSectors, loaded.TopSectors)
	require.Len(t, loaded.Candidates, 1)
	assert.Equal(t, "600519", loaded.Candidates[0].Symbol.Code)
	assert.Equal(t, contracts.ReasonCapFloor, loaded.Excluded["600004"])

	latest, err := repo.LatestResult(ctx)
	require.NoError(t, err)
	assert.False(t, latest.RunDate.Before(runDate))

	dates, err := repo.ListRunDates(ctx, 5)
	require.NoError(t, err)
	assert.NotEmpty(t, dates)
}

func TestRepository_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	connString := os.Getenv("DATABASE_URL")
	if connString == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)
	defer pool.Close()

	_, err = pool.Exec(ctx, Schema)
	require.NoError(t, err)

	_, err = NewRepository(pool).GetResult(ctx, time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, ErrNotFound)
}
