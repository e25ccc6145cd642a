package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/longregen/parallelproof/internal/adapters/circuitbreaker"
	"github.com/longregen/parallelproof/internal/adapters/embedding"
	"github.com/longregen/parallelproof/internal/adapters/fork"
	"github.com/longregen/parallelproof/internal/adapters/id"
	"github.com/longregen/parallelproof/internal/adapters/llm"
	"github.com/longregen/parallelproof/internal/adapters/metrics"
	"github.com/longregen/parallelproof/internal/adapters/postgres"
	"github.com/longregen/parallelproof/internal/application/agent"
	"github.com/longregen/parallelproof/internal/application/broadcast"
	"github.com/longregen/parallelproof/internal/application/coordinator"
	"github.com/longregen/parallelproof/internal/application/retrieval"
	"github.com/longregen/parallelproof/internal/application/strategies"
	"github.com/longregen/parallelproof/internal/application/usecases"
	"github.com/longregen/parallelproof/internal/config"
	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/longregen/parallelproof/internal/ports"
)

// Version information (set via ldflags)
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Shared global variables
var (
	cfg    *config.Config
	logger *slog.Logger
)

// newLogger builds the process logger from config and installs it as the
// slog default.
func newLogger(lc config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(lc.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

// initDB initializes a database connection pool
func initDB(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Database.PostgresURL == "" {
		return nil, fmt.Errorf("PostgreSQL connection required. Set PARALLELPROOF_POSTGRES_URL")
	}
	return postgres.NewPool(ctx, cfg.Database.PostgresURL, cfg.Database.MaxConns)
}

// app is the wired application graph shared by serve and optimize.
type app struct {
	ids         *id.Generator
	tasks       *postgres.TaskRepository
	results     *postgres.AgentResultRepository
	hub         *broadcast.Hub
	provisioner *fork.Provisioner
	coordinator *coordinator.Coordinator
	catalog     *strategies.Catalog
}

func loadCatalog() (*strategies.Catalog, error) {
	if cfg.Agent.StrategyCatalog != "" {
		return strategies.LoadFile(cfg.Agent.StrategyCatalog)
	}
	return strategies.Default()
}

func newApp(pool *pgxpool.Pool) (*app, error) {
	catalog, err := loadCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load strategy catalog: %w", err)
	}

	ids := id.New()
	tasks := postgres.NewTaskRepository(pool)
	results := postgres.NewAgentResultRepository(pool)
	patterns := postgres.NewPatternRepository(pool)

	llmClient := llm.NewClient(llm.Options{
		BaseURL:            cfg.LLM.URL,
		APIKey:             cfg.LLM.APIKey,
		Model:              cfg.LLM.Model,
		MaxTokens:          cfg.LLM.MaxTokens,
		Temperature:        cfg.LLM.Temperature,
		RateLimitPerMinute: cfg.LLM.RateLimitPerMinute,
		Timeout:            cfg.LLMTimeout(),
		Logger:             logger,
	})
	watchBreaker("llm", llmClient.Breaker())

	var embedder ports.EmbeddingService
	if cfg.IsEmbeddingConfigured() {
		client := embedding.NewClient(cfg.Embedding.URL, cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Dimensions).
			WithLogger(logger)
		watchBreaker("embedding", client.Breaker())
		embedder = client
	} else {
		logger.Info("embedding not configured, retrieval is lexical only")
	}

	engine := retrieval.NewEngine(patterns, embedder, logger)

	provisioner := fork.NewProvisioner(fork.Config{
		Mode:          models.ForkMode(cfg.Fork.Mode),
		BaseService:   cfg.Fork.BaseService,
		CLI:           cfg.Fork.CLI,
		MaxConcurrent: cfg.Fork.MaxConcurrent,
	}, fork.ExecRunner{}, ids.GenerateForkSuffix, logger)

	agents := agent.New(engine, llmClient, results, ids, agent.Config{
		Timeout:          cfg.AgentTimeout(),
		SearchLimit:      cfg.Agent.SearchLimit,
		QueryPrefixChars: cfg.Agent.QueryPrefixChars,
	}, logger)

	hub := broadcast.NewHub(broadcast.DefaultBufferSize, logger)

	coord := coordinator.New(tasks, provisioner, agents, catalog, hub, coordinator.Config{
		TaskTimeout: cfg.TaskTimeout(),
	}, logger)

	return &app{
		ids:         ids,
		tasks:       tasks,
		results:     results,
		hub:         hub,
		provisioner: provisioner,
		coordinator: coord,
		catalog:     catalog,
	}, nil
}

func (a *app) submitUseCase(ctx context.Context) *usecases.SubmitOptimization {
	return usecases.NewSubmitOptimization(ctx, a.tasks, a.coordinator, a.ids,
		cfg.Agent.DefaultCount, cfg.Agent.MaxCount, logger)
}

func watchBreaker(upstream string, cb *circuitbreaker.CircuitBreaker) {
	gauge := metrics.CircuitBreakerState.WithLabelValues(upstream)
	gauge.Set(float64(cb.State()))
	cb.OnStateChange(func(s circuitbreaker.State) {
		gauge.Set(float64(s))
		logger.Warn("circuit breaker state changed", "upstream", upstream, "state", s.String())
	})
}

// maskSecret masks a secret string for display
func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "(set)"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// boolStatus returns a status string for a boolean
func boolStatus(b bool) string {
	if b {
		return "configured"
	}
	return "not configured"
}

const shutdownTimeout = 30 * time.Second
