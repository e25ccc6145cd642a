package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/longregen/parallelproof/internal/adapters/http"
	"github.com/longregen/parallelproof/internal/adapters/tracing"
	"github.com/longregen/parallelproof/internal/application/usecases"
)

// serveCmd starts the HTTP API server
func serveCmd() *cobra.Command {
	var trace bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the ParallelProof HTTP API server.

Endpoints:
  POST /api/v1/optimize    submit code for optimization
  GET  /api/v1/task/{id}   task status and ranked agent results
  GET  /ws/{task_id}       live task events (?encoding=msgpack for binary frames)
  GET  /health, /metrics

Required configuration:
  - PostgreSQL database (PARALLELPROOF_POSTGRES_URL)
  - LLM endpoint (PARALLELPROOF_LLM_URL)

Optional:
  - Embedding endpoint for hybrid retrieval (PARALLELPROOF_EMBEDDING_URL)
  - Real forks (PARALLELPROOF_FORK_MODE=real, PARALLELPROOF_FORK_BASE_SERVICE)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var spans io.Writer
			if trace {
				spans = os.Stderr
			}
			return runServer(cmd.Context(), spans)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "export spans to stderr")
	return cmd
}

// runServer initializes and starts the HTTP API server
func runServer(ctx context.Context, spans io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Info("starting ParallelProof API server",
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"llm", cfg.LLM.URL,
		"fork_mode", cfg.Fork.Mode,
		"embedding", boolStatus(cfg.IsEmbeddingConfigured()),
	)

	shutdownTracer, err := tracing.InitTracer("parallelproof", spans)
	if err != nil {
		logger.Warn("failed to initialize tracing", "error", err)
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Warn("error shutting down tracer", "error", err)
			}
		}()
	}

	pool, err := initDB(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("database connection established")

	a, err := newApp(pool)
	if err != nil {
		return err
	}
	defer a.hub.Close()

	// Background task runs derive from runCtx so shutdown cancels them; each
	// still releases its environments on the way out.
	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()

	submit := a.submitUseCase(runCtx)
	server := http.NewServer(cfg, http.Deps{
		DB:      pool,
		Submit:  submit,
		Status:  usecases.NewGetTaskStatus(a.tasks, a.results),
		Events:  a.hub,
		Version: version,
	}, logger)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-serverErrors:
		cancelRuns()
		submit.Wait()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	cancelRuns()
	submit.Wait()
	a.hub.Close()

	logger.Info("server stopped")
	return nil
}
