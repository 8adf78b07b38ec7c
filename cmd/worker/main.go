package main

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"threatwatch/internal/classifier/cluster"
	"threatwatch/internal/classifier/keyword"
	"threatwatch/internal/config"
	"threatwatch/internal/domain/entity"
	"threatwatch/internal/geo"
	"threatwatch/internal/infra/adapter/persistence/memory"
	pgRepo "threatwatch/internal/infra/adapter/persistence/postgres"
	"threatwatch/internal/infra/aiclassify"
	"threatwatch/internal/infra/db"
	"threatwatch/internal/infra/feedfetch"
	workerPkg "threatwatch/internal/infra/worker"
	"threatwatch/internal/observability/logging"
	"threatwatch/internal/observability/tracing"
	"threatwatch/internal/repository"
	"threatwatch/internal/resilience/feedcache"
	"threatwatch/internal/usecase/dispatch"
	"threatwatch/internal/usecase/ingest"
	"threatwatch/pkg/clock"
)

// purger is implemented by cache stores that can drop expired rows.
type purger interface {
	Purge(ctx context.Context) (int64, error)
}

func main() {
	// Missing .env is fine; containers pass real environment variables.
	_ = godotenv.Load()

	logger := initLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing := tracing.Init()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error("tracer shutdown failed", slog.Any("error", err))
		}
	}()

	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	logger.Info("worker configuration loaded",
		slog.String("cron_schedule", workerConfig.CronSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("poll_timeout", workerConfig.PollTimeout),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	pipelineConfig := config.LoadPipelineConfig()
	logger.Info("pipeline configuration loaded",
		slog.String("variant", string(pipelineConfig.Variant)),
		slog.String("lang", pipelineConfig.ActiveLang),
		slog.String("provider", pipelineConfig.Provider),
		slog.Int("chunk_size", pipelineConfig.ChunkSize),
		slog.Int("escalate_count", pipelineConfig.EscalateCount))

	feeds, err := config.LoadFeeds(pipelineConfig.FeedsFile)
	if err != nil {
		logger.Error("failed to load feed roster",
			slog.String("path", pipelineConfig.FeedsFile),
			slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("feed roster loaded", slog.Int("feeds", len(feeds)))

	clk := &clock.SystemClock{}

	store, closeStore := setupCacheStore(logger, clk)
	defer closeStore()

	provider := createProvider(logger, pipelineConfig.Provider)

	dispatcher := dispatch.New(dispatch.Config{
		BatchSize:        pipelineConfig.Dispatch.BatchSize,
		FlushDelay:       pipelineConfig.Dispatch.FlushDelay,
		WindowLimit:      pipelineConfig.Dispatch.WindowLimit,
		DedupTTL:         pipelineConfig.Dispatch.DedupTTL,
		RateLimitPause:   pipelineConfig.Dispatch.RateLimitPause,
		ServerErrorPause: pipelineConfig.Dispatch.ServerErrorPause,
	}, provider, clk, dispatch.TimerScheduler{}, logger)

	guard := feedcache.New(store, clk, logger, feedcache.Config{
		TTL:              pipelineConfig.Cache.TTL,
		FailureThreshold: pipelineConfig.Cache.FailureThreshold,
		Cooldown:         pipelineConfig.Cache.Cooldown,
		MaxScopes:        pipelineConfig.Cache.MaxScopes,
		DurableTTL:       pipelineConfig.Cache.DurableTTL,
		DefaultLang:      entity.DefaultLang,
	})

	classifier := keyword.New(pipelineConfig.Variant)
	normalizer := feedfetch.NewNormalizer(classifier.Classify, geo.NewIndex(), clk)
	fetcher := feedfetch.NewFetcher(createHTTPClient())

	service := ingest.NewService(ingest.Config{
		ChunkSize:     pipelineConfig.ChunkSize,
		EscalateCount: pipelineConfig.EscalateCount,
	}, guard, fetcher, normalizer, dispatcher, clk, logger)
	service.OnReclassified(func(item *entity.NewsItem) {
		logger.Info("item reclassified",
			slog.String("source", item.Source),
			slog.String("title", item.Title),
			slog.String("level", string(item.Threat.Level)),
			slog.Bool("alert", item.IsAlert))
	})

	startMetricsServer(ctx, logger, workerConfig.MetricsPort)

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger, func() map[string]any {
		return map[string]any{
			"tracked_scopes":   guard.TrackedScopes(),
			"dispatch_queue":   dispatcher.QueueDepth(),
			"dispatch_paused":  dispatcher.Paused(),
			"configured_feeds": len(feeds),
		}
	})
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler := startCronWorker(logger, service, feeds, pipelineConfig, workerConfig, workerMetrics, store, healthServer)

	<-ctx.Done()
	logger.Info("shutdown signal received")
	healthServer.SetReady(false)

	// Let an in-flight poll finish, then drain the dispatcher.
	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(workerConfig.PollTimeout):
		logger.Warn("poll still running at shutdown deadline")
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Error("dispatcher drain failed", slog.Any("error", err))
	}
	service.Wait()
	logger.Info("worker stopped")
}

// initLogger installs the JSON logger as the process default.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	slog.SetDefault(logger)
	return logger
}

// setupCacheStore opens the durable cache behind the feed guard. With a
// DATABASE_URL it runs migrations and uses Postgres; without one it degrades
// to the in-process store.
func setupCacheStore(logger *slog.Logger, clk clock.Clock) (repository.CacheStore, func()) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Info("no DATABASE_URL set, using in-memory durable cache")
		return memory.NewCacheStore(clk), func() {}
	}

	database, err := db.Open(dsn)
	if err != nil {
		logger.Warn("database unavailable, using in-memory durable cache",
			slog.Any("error", err))
		return memory.NewCacheStore(clk), func() {}
	}

	if err := db.MigrateUp(database); err != nil {
		logger.Warn("cache migration failed, using in-memory durable cache",
			slog.Any("error", err))
		closeDB(logger, database)
		return memory.NewCacheStore(clk), func() {}
	}

	logger.Info("durable cache backed by postgres")
	return pgRepo.NewCacheStore(database, clk), func() { closeDB(logger, database) }
}

func closeDB(logger *slog.Logger, database *sql.DB) {
	if err := database.Close(); err != nil {
		logger.Error("failed to close database", slog.Any("error", err))
	}
}

// createProvider selects the remote classifier backend from configuration.
// A missing API key downgrades to the noop provider instead of failing the
// worker; the keyword cascade still covers every item.
func createProvider(logger *slog.Logger, name string) aiclassify.Provider {
	switch name {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Warn("OPENAI_API_KEY is empty, remote classification disabled")
			return aiclassify.NewNoOp()
		}
		logger.Info("remote classification via OpenAI")
		return aiclassify.NewOpenAI(apiKey, aiclassify.DefaultOpenAIConfig())
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Warn("ANTHROPIC_API_KEY is empty, remote classification disabled")
			return aiclassify.NewNoOp()
		}
		logger.Info("remote classification via Claude")
		return aiclassify.NewClaude(apiKey, aiclassify.DefaultClaudeConfig())
	default:
		logger.Info("remote classification disabled")
		return aiclassify.NewNoOp()
	}
}

// createHTTPClient builds the feed-fetch client. TLS 1.2+ is enforced.
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}

// startCronWorker schedules the poll job and the cache maintenance job, then
// marks the worker ready. The returned cron is stopped during shutdown.
func startCronWorker(
	logger *slog.Logger,
	service *ingest.Service,
	feeds []entity.FeedDescriptor,
	pipelineConfig *config.PipelineConfig,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
	store repository.CacheStore,
	healthServer *workerPkg.HealthServer,
) *cron.Cron {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	if _, err := c.AddFunc(cfg.CronSchedule, func() {
		runPollJob(logger, service, feeds, pipelineConfig.ActiveLang, cfg, metrics)
	}); err != nil {
		logger.Error("failed to schedule poll job", slog.Any("error", err))
		os.Exit(1)
	}

	if p, ok := store.(purger); ok {
		if _, err := c.AddFunc("@hourly", func() {
			runPurgeJob(logger, p)
		}); err != nil {
			logger.Error("failed to schedule purge job", slog.Any("error", err))
		}
	}

	c.Start()

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("schedule", cfg.CronSchedule),
		slog.String("timezone", cfg.Timezone))
	return c
}

// runPollJob executes one full poll with a timeout and records run metrics.
func runPollJob(
	logger *slog.Logger,
	service *ingest.Service,
	feeds []entity.FeedDescriptor,
	lang string,
	cfg *workerPkg.WorkerConfig,
	metrics *workerPkg.WorkerMetrics,
) {
	startTime := time.Now()
	logger.Info("poll started", slog.Int("feeds", len(feeds)))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PollTimeout)
	defer cancel()

	collected := 0
	items := service.FetchAll(ctx, feeds, lang, func(chunk []*entity.NewsItem) {
		collected += len(chunk)
		logger.Info("poll progress",
			slog.Int("chunk_items", len(chunk)),
			slog.Int("items_so_far", collected))
	})

	if err := ctx.Err(); err != nil {
		logger.Error("poll hit timeout", slog.Any("error", err))
		metrics.RecordPollRun("failure")
		metrics.RecordPollDuration(time.Since(startTime).Seconds())
		return
	}

	metrics.RecordPollRun("success")
	metrics.RecordPollDuration(time.Since(startTime).Seconds())
	metrics.RecordItemsCollected(len(items))
	metrics.RecordLastSuccess()

	summarizeHotspots(logger, items)

	logger.Info("poll completed",
		slog.Int("items", len(items)),
		slog.Duration("duration", time.Since(startTime)))
}

// summarizeHotspots aggregates this poll's items per located place and logs
// the places whose combined classification reaches alert severity.
func summarizeHotspots(logger *slog.Logger, items []*entity.NewsItem) {
	groups := make(map[string][]cluster.Member)
	for _, item := range items {
		if item.LocationName == "" {
			continue
		}
		groups[item.LocationName] = append(groups[item.LocationName], cluster.Member{
			Threat: item.Threat,
		})
	}

	for place, members := range groups {
		summary := cluster.Aggregate(members)
		if !summary.IsAlerting() {
			continue
		}
		logger.Info("hotspot detected",
			slog.String("place", place),
			slog.String("level", string(summary.Level)),
			slog.String("category", string(summary.Category)),
			slog.Float64("confidence", summary.Confidence),
			slog.Int("items", len(members)))
	}
}

// runPurgeJob drops expired durable-cache rows.
func runPurgeJob(logger *slog.Logger, store purger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := store.Purge(ctx)
	if err != nil {
		logger.Warn("cache purge failed", slog.Any("error", err))
		return
	}
	if removed > 0 {
		logger.Info("cache purged", slog.Int64("expired_rows", removed))
	}
}
