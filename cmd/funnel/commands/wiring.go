package commands

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/youngcan/wyckoff-funnel/internal/calendar"
	"github.com/youngcan/wyckoff-funnel/internal/funnel"
	"github.com/youngcan/wyckoff-funnel/internal/marketdata"
	"github.com/youngcan/wyckoff-funnel/internal/store"
	"github.com/youngcan/wyckoff-funnel/internal/universe"
	"github.com/youngcan/wyckoff-funnel/pkg/config"
	"github.com/youngcan/wyckoff-funnel/pkg/database"
	"github.com/youngcan/wyckoff-funnel/pkg/httputil"
	"github.com/youngcan/wyckoff-funnel/pkg/logger"
	"github.com/youngcan/wyckoff-funnel/pkg/redis"
)

// app holds the fully wired dependency graph shared by the commands.
// repo and db stay nil when no DATABASE_URL is configured.
type app struct {
	cfg      *config.Config
	strategy funnel.Config
	log      *logger.Logger

	redis    *redis.Client
	db       *database.DB
	repo     *store.Repository
	gateway  *marketdata.Gateway
	calendar *calendar.Service
	builder  *universe.Builder
	engine   *funnel.Engine
}

// initApp loads configuration and builds the provider chain, calendar,
// universe builder and funnel engine.
func initApp() (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Load strategy config
	strategyPath := cfg.FunnelConfigPath
	if strategyFile != "" {
		strategyPath = strategyFile
	}
	strategy, err := funnel.Load(strategyPath)
	if err != nil {
		// Missing default file falls back to built-in defaults; an
		// explicitly requested file must exist.
		if os.IsNotExist(err) && strategyFile == "" {
			log.WithField("path", strategyPath).Warn("Strategy file not found, using built-in defaults")
			strategy = funnel.Default()
		} else {
			return nil, fmt.Errorf("load strategy config: %w", err)
		}
	}

	// 4. Optional Redis cache
	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, caching disabled")
		redisClient = redis.NewDisabled()
	}

	// 5. Optional PostgreSQL persistence
	var db *database.DB
	var repo *store.Repository
	if cfg.Database.Enabled {
		db, err = database.New(cfg)
		if err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		repo = store.NewRepository(db.Pool)
		log.Info("Connected to database")
	}

	// 6. Provider chain, each with its own pacing
	emClient := httputil.New(log, 10*time.Second).
		WithRetry(2, 500*time.Millisecond).
		WithRateLimit(rate.NewLimiter(rate.Limit(8), 8))
	tencentClient := httputil.New(log, 10*time.Second).
		WithRetry(2, 500*time.Millisecond).
		WithRateLimit(rate.NewLimiter(rate.Limit(5), 5))
	sinaClient := httputil.New(log, 10*time.Second).
		WithRetry(2, 500*time.Millisecond).
		WithRateLimit(rate.NewLimiter(rate.Limit(5), 5))
	tushareClient := httputil.New(log, 15*time.Second).
		DisableRetry().
		WithRateLimit(rate.NewLimiter(rate.Limit(1), 1))

	gatewayCfg := marketdata.DefaultGatewayConfig()
	gatewayCfg.MinBars = strategy.Run.MinBars
	gateway := marketdata.NewGateway(gatewayCfg, log,
		marketdata.NewEastmoney(emClient, log),
		marketdata.NewTencent(tencentClient, log),
		marketdata.NewSina(sinaClient, log),
		marketdata.NewTushare(tushareClient, cfg.Tushare.BaseURL, cfg.Tushare.Token, log),
	)

	// 7. Trading calendar from the benchmark index
	calSource := calendar.NewIndexDateSource(gateway, strategy.Benchmark.IndexCode, 3*365*24*time.Hour)
	cal := calendar.NewService(calSource, redis.NewCache(redisClient, "calendar"), 12*time.Hour, log)

	// 8. Universe builder with HTML fallback
	builder := universe.NewBuilder(
		strategy.UniverseConfigFor(12*time.Hour),
		redis.NewCache(redisClient, "universe"),
		log,
		universe.NewEastmoneyLister(emClient, log),
		universe.NewHTMLLister(emClient, log),
	)

	// 9. Funnel engine
	engine := funnel.NewEngine(strategy, cal, builder, gateway, log)

	return &app{
		cfg:      cfg,
		strategy: strategy,
		log:      log,
		redis:    redisClient,
		db:       db,
		repo:     repo,
		gateway:  gateway,
		calendar: cal,
		builder:  builder,
		engine:   engine,
	}, nil
}

// close releases pooled connections.
func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
