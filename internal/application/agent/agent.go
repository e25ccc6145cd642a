// Package agent runs one strategy against one artifact inside one
// environment.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/longregen/parallelproof/internal/adapters/metrics"
	"github.com/longregen/parallelproof/internal/adapters/tracing"
	"github.com/longregen/parallelproof/internal/application/improvement"
	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/longregen/parallelproof/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	persistTimeout = 10 * time.Second
	maxSearchLimit = 5
)

// Config bounds one agent run.
type Config struct {
	// Timeout bounds retrieval plus generation. Zero means no bound beyond
	// the caller's context.
	Timeout          time.Duration
	SearchLimit      int
	QueryPrefixChars int
}

// Assignment binds an agent to its environment and strategy.
type Assignment struct {
	Env      models.Environment
	Strategy *models.Strategy
}

// Agent is stateless and safe for concurrent use; each Optimize call is one
// agent run.
type Agent struct {
	searcher  ports.PatternSearcher
	generator ports.GenerationService
	results   ports.AgentResultRepository
	ids       ports.IDGenerator
	cfg       Config
	logger    *slog.Logger
}

func New(searcher ports.PatternSearcher, generator ports.GenerationService, results ports.AgentResultRepository,
	ids ports.IDGenerator, cfg Config, logger *slog.Logger) *Agent {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 3
	}
	if cfg.SearchLimit > maxSearchLimit {
		cfg.SearchLimit = maxSearchLimit
	}
	if cfg.QueryPrefixChars <= 0 {
		cfg.QueryPrefixChars = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		searcher:  searcher,
		generator: generator,
		results:   results,
		ids:       ids,
		cfg:       cfg,
		logger:    logger.With("component", "agent"),
	}
}

// Optimize never returns nil and never panics. Failures come back as a
// result with status failed and an error kind; the result is persisted in
// both cases and Persisted reports whether that worked.
func (a *Agent) Optimize(ctx context.Context, task *models.OptimizationTask, as Assignment) (result *models.AgentResult) {
	start := time.Now()
	log := a.logger.With("task_id", task.ID, "agent_id", as.Env.AgentID, "fork", as.Env.Name, "strategy", as.Strategy.Name)

	ctx, span := tracing.Tracer().Start(ctx, "agent.optimize")
	span.SetAttributes(
		attribute.String("task_id", task.ID),
		attribute.String("agent_id", as.Env.AgentID),
		attribute.String("strategy", as.Strategy.Name),
	)
	defer span.End()

	result = &models.AgentResult{
		TaskID:       task.ID,
		ForkID:       as.Env.Name,
		AgentID:      as.Env.AgentID,
		Strategy:     as.Strategy.Name,
		Category:     as.Strategy.Category,
		OriginalCode: task.OriginalCode,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("agent panicked", "panic", r)
			a.fail(result, domain.Wrap(domain.KindInternal, "optimize", fmt.Errorf("panic: %v", r)))
		}
		a.persist(ctx, result, log)

		status := string(result.Status)
		metrics.AgentsTotal.WithLabelValues(as.Strategy.Name, status).Inc()
		metrics.AgentDuration.WithLabelValues(as.Strategy.Name).Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("status", status))
		if result.Status == models.AgentStatusFailed {
			span.SetStatus(codes.Error, derefString(result.ErrorMessage))
		}
	}()

	log.Info("agent starting")

	runCtx := ctx
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	resp, err := a.generate(runCtx, task, as.Strategy, log)
	if err != nil {
		log.Warn("agent failed", "kind", domain.KindOf(err), "error", err)
		a.fail(result, err)
		return result
	}

	code := resp.OptimizedCode
	imp := improvement.FromValue(resp.Improvement)
	result.OptimizedCode = code
	result.Explanation = resp.Explanation
	result.ImprovementPercent = &imp
	result.Status = models.AgentStatusCompleted
	result.CompletedAt = time.Now().UTC()

	log.Info("agent completed", "improvement_percent", imp, "shape", resp.Shape.String())
	return result
}

func (a *Agent) generate(ctx context.Context, task *models.OptimizationTask, strategy *models.Strategy, log *slog.Logger) (*Response, error) {
	patterns := a.searcher.Search(ctx, prefix(task.OriginalCode, a.cfg.QueryPrefixChars), strategy.Category, a.cfg.SearchLimit)
	log.Debug("patterns retrieved", "count", len(patterns))

	prompt, err := strategy.Render(models.PromptData{Code: task.OriginalCode, Language: task.Language})
	if err != nil {
		return nil, domain.Wrap(domain.KindGeneration, "render prompt", err)
	}
	if block := BuildContext(patterns); block != "" {
		prompt = "Context - Similar optimization patterns:\n" + block + "\n\n" + prompt
	}

	start := time.Now()
	raw, err := a.generator.Generate(ctx, prompt)
	metrics.LLMRequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.LLMRequestsTotal.WithLabelValues("error").Inc()
		if domain.KindOf(err) == domain.KindInternal {
			err = domain.Wrap(domain.KindGeneration, "generate", err)
		}
		return nil, err
	}
	metrics.LLMRequestsTotal.WithLabelValues("ok").Inc()

	return Decode(raw)
}

// BuildContext renders patterns as a numbered list, or "" when there are none.
func BuildContext(patterns []*models.OptimizationPattern) string {
	if len(patterns) == 0 {
		return ""
	}
	parts := make([]string, 0, len(patterns))
	for i, p := range patterns {
		name := p.Name
		if name == "" {
			name = "Unknown"
		}
		example := p.CodeExample
		if example == "" {
			example = "N/A"
		}
		parts = append(parts, fmt.Sprintf("%d. %s: %s\n   Example: %s", i+1, name, p.Description, example))
	}
	return strings.Join(parts, "\n")
}

func (a *Agent) fail(result *models.AgentResult, err error) {
	msg := err.Error()
	result.Status = models.AgentStatusFailed
	result.ErrorKind = domain.KindOf(err)
	result.ErrorMessage = &msg
	result.OptimizedCode = nil
	result.ImprovementPercent = nil
	result.CompletedAt = time.Now().UTC()
}

// persist writes the result once. It runs detached from cancellation so a
// timed-out agent still leaves its failure record.
func (a *Agent) persist(ctx context.Context, result *models.AgentResult, log *slog.Logger) {
	result.ID = a.ids.GenerateAgentResultID()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if err := a.results.Create(ctx, result); err != nil {
		log.Error("failed to persist agent result", "status", result.Status, "error", err)
		result.Persisted = false
		return
	}
	result.Persisted = true
}

// prefix returns at most n runes of s.
func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
