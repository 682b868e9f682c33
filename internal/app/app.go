// Package app wires configuration, stores, fetch backend and use cases into
// one process-wide value shared by the API server and the CLI.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/crawl-tracker/internal/adapter/chromedp_crawler"
	"github.com/user/crawl-tracker/internal/adapter/postgres"
	redis_adapter "github.com/user/crawl-tracker/internal/adapter/redis"
	"github.com/user/crawl-tracker/internal/adapter/scrapeapi"
	"github.com/user/crawl-tracker/internal/delivery/http/handler"
	"github.com/user/crawl-tracker/internal/repository"
	"github.com/user/crawl-tracker/internal/usecase"
	"github.com/user/crawl-tracker/pkg/config"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

type App struct {
	Config *config.Config
	DB     *postgres.DB
	Redis  *redis.Client

	Crawler    usecase.Crawler
	Reporter   usecase.Reporter
	Reconciler usecase.Reconciler

	closers []func()
}

// New connects to PostgreSQL and Redis, selects the fetch backend and builds
// the use cases. Close releases everything New acquired.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	db, err := postgres.Open(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, func() { db.Close() })
	if err := waitFor(ctx, "postgres", db.Ping); err != nil {
		a.Close()
		return nil, err
	}
	slog.Info("PostgreSQL connection pool established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.Redis = rdb
	a.closers = append(a.closers, func() { rdb.Close() })
	if err := waitFor(ctx, "redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }); err != nil {
		a.Close()
		return nil, err
	}
	slog.Info("Redis connection established")

	fetcher, err := a.newFetcher()
	if err != nil {
		a.Close()
		return nil, err
	}

	// --- Repositories ---
	domainRepo := postgres.NewDomainRepo(db.DB)
	pageRepo := postgres.NewPageRepo(db.DB)
	historyRepo := postgres.NewHistoryRepo(db.DB)
	statsRepo := postgres.NewStatsRepo(db.DB)
	queueRepo := redis_adapter.NewQueueRepo(rdb, cfg.Redis.QueueKey, cfg.Redis.PopTimeout)
	cacheRepo := redis_adapter.NewPageCacheRepo(rdb, cfg.Redis.CacheTTL)

	// --- Use Cases ---
	a.Crawler = usecase.NewCrawlerUseCase(domainRepo, pageRepo, historyRepo, cacheRepo, queueRepo, fetcher, usecase.CrawlerOptions{
		FetchTimeout: cfg.Fetcher.Timeout,
		MaxInFlight:  cfg.Crawler.MaxInFlight,
		UserAgent:    cfg.Fetcher.UserAgent,
		ContentType:  cfg.Fetcher.ContentType,
	})
	a.Reporter = usecase.NewReporter(domainRepo, pageRepo, historyRepo, statsRepo)
	a.Reconciler = usecase.NewReconciler(pageRepo, queueRepo, cfg.Reconciler.CrawlTTL, cfg.Reconciler.RequeueStuck)

	return a, nil
}

func (a *App) newFetcher() (repository.PageFetcher, error) {
	cfg := a.Config.Fetcher
	switch cfg.Backend {
	case "chromedp":
		c, err := chromedp_crawler.NewChromedpCrawler(cfg.ChromePath, cfg.UserAgent)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, c.Close)
		slog.Info("Using headless Chrome fetch backend")
		return c, nil
	case "scrapeapi":
		slog.Info("Using scrape API fetch backend", "base_url", cfg.BaseURL)
		return scrapeapi.NewClient(cfg.BaseURL, cfg.APIKey, scrapeapi.WithRateLimit(cfg.RequestsPerSecond)), nil
	default:
		return nil, fmt.Errorf("unknown fetch backend %q", cfg.Backend)
	}
}

// HealthChecks lists the dependencies the health endpoint pings.
func (a *App) HealthChecks() map[string]handler.Pinger {
	return map[string]handler.Pinger{
		"postgres": a.DB,
		"redis":    pingFunc(func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }),
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// waitFor retries ping while a dependency is starting up.
func waitFor(ctx context.Context, name string, ping func(context.Context) error) error {
	var err error
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		slog.Warn("Dependency not ready, retrying", "component", name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return fmt.Errorf("unable to connect to %s: %w", name, err)
}
