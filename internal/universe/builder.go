// Package universe builds the market-wide symbol pool for one screening
// run: full listing with board, special-risk flag, sector, and market-cap
// snapshot, minus the configured exclusions.
package universe

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/youngcan/wyckoff-funnel/internal/contracts"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
	"github.com/youngcan/wyckoff-funnel/pkg/redis"
)

// Lister loads the raw full-market symbol list.
type Lister interface {
	ListSymbols(ctx context.Context) ([]contracts.Symbol, error)
}

// Config holds universe filter criteria. The allowed-board set and the
// special-risk rule are parameters, not constants.
type Config struct {
	AllowedBoards      []contracts.Board `yaml:"allowed_boards"`
	ExcludeSpecialRisk bool              `yaml:"exclude_special_risk"`
	ExcludeSuspended   bool              `yaml:"exclude_suspended"`
	CacheTTL           time.Duration     `yaml:"cache_ttl"`
}

// DefaultConfig keeps main board + growth board, no ST, no suspended.
func DefaultConfig() Config {
	return Config{
		AllowedBoards:      []contracts.Board{contracts.BoardMain, contracts.BoardGrowth},
		ExcludeSpecialRisk: true,
		ExcludeSuspended:   true,
		CacheTTL:           24 * time.Hour,
	}
}

const cacheKey = "symbol_list"

// Builder constructs the screening universe. Listers are tried in order;
// the raw list is cached with a TTL so repeated runs within a day do not
// re-crawl the market.
type Builder struct {
	listers []Lister
	cache   *redis.Cache
	config  Config
	logger  *logger.Logger
}

// NewBuilder creates a universe builder.
func NewBuilder(config Config, cache *redis.Cache, log *logger.Logger, listers ...Lister) *Builder {
	return &Builder{
		listers: listers,
		cache:   cache,
		config:  config,
		logger:  log.WithField("module", "universe"),
	}
}

// Build loads the full market list and applies the exclusion rules. The
// returned universe is sorted by code and immutable for the run.
func (b *Builder) Build(ctx context.Context) (*contracts.SymbolUniverse, error) {
	raw, err := b.listSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	allowed := make(map[contracts.Board]bool, len(b.config.AllowedBoards))
	for _, board := range b.config.AllowedBoards {
		allowed[board] = true
	}

	universe := &contracts.SymbolUniverse{
		BuiltAt:  time.Now(),
		Excluded: make(map[string]contracts.Reason),
	}
	for _, sym := range raw {
		if reason, excluded := b.checkExclusion(sym, allowed); excluded {
			universe.Excluded[sym.Code] = reason
			continue
		}
		universe.Symbols = append(universe.Symbols, sym)
	}
	sort.Slice(universe.Symbols, func(i, j int) bool {
		return universe.Symbols[i].Code < universe.Symbols[j].Code
	})

	b.logger.WithFields(map[string]interface{}{
		"total":    len(raw),
		"kept":     len(universe.Symbols),
		"excluded": len(universe.Excluded),
	}).Info("Universe built")

	return universe, nil
}

// checkExclusion applies the configured rules in priority order.
func (b *Builder) checkExclusion(sym contracts.Symbol, allowed map[contracts.Board]bool) (contracts.Reason, bool) {
	if b.config.ExcludeSuspended && sym.Suspended {
		return contracts.ReasonSuspended, true
	}
	if b.config.ExcludeSpecialRisk && sym.SpecialRisk {
		return contracts.ReasonSpecialRisk, true
	}
	if !allowed[sym.Board] {
		return contracts.ReasonBoard, true
	}
	return "", false
}

// listSymbols loads the raw list from cache or the lister chain.
func (b *Builder) listSymbols(ctx context.Context) ([]contracts.Symbol, error) {
	var cached []contracts.Symbol
	if found, err := b.cache.Get(ctx, cacheKey, &cached); err == nil && found && len(cached) > 0 {
		return cached, nil
	}

	var lastErr error
	for _, lister := range b.listers {
		symbols, err := lister.ListSymbols(ctx)
		if err != nil {
			lastErr = err
			b.logger.WithError(err).Warn("Symbol lister failed, trying next")
			continue
		}
		if len(symbols) == 0 {
			lastErr = fmt.Errorf("lister returned empty symbol list")
			continue
		}
		if err := b.cache.Set(ctx, cacheKey, symbols, b.config.CacheTTL); err != nil {
			b.logger.WithError(err).Warn("Failed to cache symbol list")
		}
		return symbols, nil
	}
	return nil, lastErr
}

// IsSpecialRisk reports whether a stock name carries the ST / *ST marker
// or the delisting marker.
func IsSpecialRisk(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "ST") || strings.Contains(upper, "退")
}
