package funnel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/calendar"
	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/internal/marketdata"
	"github.com/youngcan/wyckoff-funnel/internal/pattern"
	"github.com/youngcan/wyckoff-funnel/internal/universe"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
)

// HistoryFetcher is the slice of the market-data gateway the engine
// needs. Tests substitute an in-memory implementation.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time, adjust marketdata.AdjustMode) (*marketdata.History, error)
	FetchIndexHistory(ctx context.Context, indexCode string, start, end time.Time) ([]contracts.OHLCVBar, error)
}

// UniverseSource builds the investable symbol pool.
type UniverseSource interface {
	Build(ctx context.Context) (*contracts.SymbolUniverse, error)
}

// WindowResolver resolves the trading window for a run.
type WindowResolver interface {
	ResolveWindow(ctx context.Context, referenceDate time.Time, endOffsetDays, tradingDays int) (calendar.Window, error)
}

// Engine drives the four-layer funnel over a trading window.
type Engine struct {
	cfg      Config
	cal      WindowResolver
	universe UniverseSource
	gateway  HistoryFetcher
	detector *pattern.Detector
	logger   *logger.Logger
}

func NewEngine(cfg Config, cal WindowResolver, uni UniverseSource, gw HistoryFetcher, log *logger.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		cal:      cal,
		universe: uni,
		gateway:  gw,
		detector: pattern.NewDetector(cfg.PatternConfig()),
		logger:   log.WithField("component", "funnel"),
	}
}

// Run executes a full screening pass for the reference date. Only
// calendar, universe, and config failures abort the run; a missing
// benchmark series degrades it (no relative strength, no drawdown
// exception) and every per-symbol failure only excludes that symbol
// with a reason code.
func (e *Engine) Run(ctx context.Context, referenceDate time.Time) (*contracts.ScreeningResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}
	if timeout := e.cfg.Run.Timeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	window, err := e.cal.ResolveWindow(ctx, referenceDate, e.cfg.Window.EndOffsetDays, e.cfg.Window.TradingDays)
	if err != nil {
		return nil, err
	}
	e.logger.WithFields(map[string]interface{}{
		"start":   window.Start.Format("2006-01-02"),
		"end":     window.End.Format("2006-01-02"),
		"days":    window.TradingDays,
		"partial": window.Partial,
	}).Info("Resolved trading window")

	uni, err := e.universe.Build(ctx)
	if err != nil {
		return nil, err
	}

	// A benchmark failure costs the relative-strength cut and the
	// drawdown exception, not the whole batch.
	bench, benchErr := e.gateway.FetchIndexHistory(ctx, e.cfg.Benchmark.IndexCode, window.Start, window.End)
	if benchErr != nil {
		e.logger.WithError(benchErr).Warn("Benchmark history unavailable, screening without relative strength")
		bench = nil
	}

	result := &contracts.ScreeningResult{
		RunDate:          referenceDate,
		WindowStart:      window.Start,
		WindowEnd:        window.End,
		PartialWindow:    window.Partial,
		BenchmarkMissing: benchErr != nil,
	}
	for code, reason := range uni.Excluded {
		result.Exclude(code, reason)
	}

	cands := make([]*contracts.FunnelCandidate, 0, len(uni.Symbols))
	for _, sym := range uni.Symbols {
		cands = append(cands, &contracts.FunnelCandidate{Symbol: sym})
	}
	result.Counts.Universe = len(cands)

	// Cheap static checks shrink the fetch set before any I/O.
	cands = e.layer1Static(result, cands)

	histories := e.fetchHistories(ctx, result, cands, window)
	var fetched []*contracts.FunnelCandidate
	for _, c := range cands {
		if h, ok := histories[c.Symbol.Code]; ok {
			c.Provider = string(h.Provider)
			fetched = append(fetched, c)
		}
	}
	result.FetchOK = len(fetched)
	result.FetchFailed = len(cands) - len(fetched)

	l1 := e.layer1Amount(result, fetched, histories)
	result.Counts.Layer1 = len(l1)

	l2 := e.layer2Trend(result, l1, histories, bench)
	result.Counts.Layer2 = len(l2)

	l3, topSectors := e.layer3Sector(result, l2)
	result.Counts.Layer3 = len(l3)
	result.TopSectors = topSectors

	l4 := e.layer4Pattern(result, l3, histories)
	result.Counts.Layer4 = len(l4)

	result.Candidates = make([]contracts.FunnelCandidate, len(l4))
	for i, c := range l4 {
		result.Candidates[i] = *c
	}

	if frac := result.ExcludedFraction(); frac > e.cfg.Run.PartialWarnAbove {
		result.PartialCoverage = true
		e.logger.WithField("excluded_fraction", frac).Warn("Run completed with partial universe coverage")
	}

	e.logger.WithFields(map[string]interface{}{
		"universe": result.Counts.Universe,
		"layer1":   result.Counts.Layer1,
		"layer2":   result.Counts.Layer2,
		"layer3":   result.Counts.Layer3,
		"layer4":   result.Counts.Layer4,
		"emitted":  len(result.Candidates),
	}).Info("Funnel run complete")
	return result, nil
}

// fetchHistories pulls the window series for every candidate through a
// bounded worker pool. This is the only parallel section of a run; the
// collector map is guarded by one mutex. A context deadline marks the
// not-yet-fetched remainder as timed out instead of failing the run.
func (e *Engine) fetchHistories(ctx context.Context, result *contracts.ScreeningResult, cands []*contracts.FunnelCandidate, window calendar.Window) map[string]*marketdata.History {
	adjust := marketdata.AdjustMode(e.cfg.Window.AdjustMode)
	histories := make(map[string]*marketdata.History, len(cands))
	var mu sync.Mutex

	jobs := make(chan *contracts.FunnelCandidate)
	var wg sync.WaitGroup
	workers := e.cfg.Run.BatchWorkers
	if workers > len(cands) {
		workers = len(cands)
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				hist, err := e.gateway.FetchHistory(ctx, c.Symbol.Code, window.Start, window.End, adjust)
				mu.Lock()
				if err != nil {
					result.Exclude(c.Symbol.Code, fetchFailureReason(err))
				} else {
					histories[c.Symbol.Code] = hist
				}
				mu.Unlock()
			}
		}()
	}
	for _, c := range cands {
		jobs <- c
	}
	close(jobs)
	wg.Wait()
	return histories
}

func fetchFailureReason(err error) contracts.Reason {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return contracts.ReasonTimeout
	}
	var qerr *contracts.DataQualityError
	if errors.As(err, &qerr) {
		return contracts.ReasonDataQuality
	}
	return contracts.ReasonFetchFailed
}

// compile-time checks that the production types satisfy the engine's
// collaborator interfaces.
var (
	_ HistoryFetcher = (*marketdata.Gateway)(nil)
	_ UniverseSource = (*universe.Builder)(nil)
	_ WindowResolver = (*calendar.Service)(nil)
)
