package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"digitalwall/internal/analysis"
	"digitalwall/internal/api"
	"digitalwall/internal/config"
	"digitalwall/internal/infrastructure/llm"
	"digitalwall/internal/infrastructure/redisstore"
	"digitalwall/internal/infrastructure/search"
	"digitalwall/internal/infrastructure/storage"
	"digitalwall/internal/logging"
	"digitalwall/internal/metadata"
	"digitalwall/internal/ports"
	"digitalwall/internal/priority"
	"digitalwall/internal/quota"
	"digitalwall/internal/usecase"
)

// Application wires configuration to the ingestion pipeline and its HTTP
// boundary.
type Application struct {
	cfg    config.Config
	server *api.Server
	logger *slog.Logger
}

// New builds a runnable application instance. With no Redis address the
// cache and counters fall back to in-process stores and progress events are
// dropped.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}

	var (
		cache    ports.CacheStore
		counters ports.CounterStore
		notifier ports.ProgressNotifier
	)
	if cfg.Redis.Addr != "" {
		store, err := redisstore.New(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		cache, counters = store, store
		notifier = redisstore.NewNotifier(store.Client())
	} else {
		memory := redisstore.NewMemoryStore()
		cache, counters = memory, memory
		baseLogger.Warn("no redis configured, using in-memory stores")
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	tracker := quota.New(counters, cfg.Quota, baseLogger.With("component", "quota"))
	prioritizer := priority.New(tracker, baseLogger.With("component", "prioritizer"))

	extractor := metadata.NewExtractor(
		&http.Client{Timeout: cfg.Pipeline.FetchTimeout},
		cfg.Pipeline.UserAgent,
		baseLogger.With("component", "metadata"),
	)

	analyzer := analysis.NewClient(
		llm.NewClaudeClient(cfg.Anthropic),
		cache,
		tracker,
		baseLogger.With("component", "analysis"),
	).WithTimeout(cfg.Pipeline.AITimeout).WithCacheTTL(cfg.Pipeline.CacheTTL)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Extractor: extractor,
		Analyzer:  analyzer,
		Fallback:  analysis.NewFallback(baseLogger.With("component", "fallback")),
		Store:     storage.NewItemStore(db),
		Index:     search.NewPostgresIndex(db),
		Notifier:  notifier,
		Config:    cfg.Pipeline,
		Logger:    baseLogger.With("component", "pipeline"),
	})

	server := api.New(pipeline, prioritizer, cfg, baseLogger.With("component", "api"))

	return &Application{cfg: cfg, server: server, logger: baseLogger}, nil
}

// Run serves the ingestion API until the listener fails.
func (a *Application) Run(_ context.Context) error {
	return a.server.Run()
}
