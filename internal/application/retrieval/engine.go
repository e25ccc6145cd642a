// Package retrieval finds optimization patterns relevant to an artifact by
// fusing lexical and vector search.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/longregen/parallelproof/internal/adapters/metrics"
	"github.com/longregen/parallelproof/internal/adapters/tracing"
	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/longregen/parallelproof/internal/ports"
	"go.opentelemetry.io/otel/attribute"
)

// CandidateLimit caps each ranked list before fusion.
const CandidateLimit = 20

// Engine implements ports.PatternSearcher.
type Engine struct {
	patterns ports.PatternRepository
	embedder ports.EmbeddingService // nil disables the vector leg
	k        int
	logger   *slog.Logger
}

func NewEngine(patterns ports.PatternRepository, embedder ports.EmbeddingService, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		patterns: patterns,
		embedder: embedder,
		k:        DefaultRRFConstant,
		logger:   logger.With("component", "retrieval"),
	}
}

// Search never fails. It returns hybrid results when both legs work, lexical
// results when embedding is unavailable, a plain lexical search when the
// pipeline errors, and nothing when that fails too.
func (e *Engine) Search(ctx context.Context, query string, category models.StrategyCategory, limit int) []*models.OptimizationPattern {
	if limit <= 0 {
		return nil
	}

	ctx, span := tracing.Tracer().Start(ctx, "retrieval.search")
	span.SetAttributes(attribute.String("category", string(category)), attribute.Int("limit", limit))
	defer span.End()

	patterns, path, err := e.hybrid(ctx, query, category, limit)
	if err == nil {
		metrics.RetrievalTotal.WithLabelValues(path).Inc()
		span.SetAttributes(attribute.String("path", path))
		return patterns
	}

	e.logger.Warn("hybrid search failed, falling back to lexical", "category", category, "error", err)
	span.RecordError(err)

	ranked, err := e.patterns.LexicalSearch(ctx, query, category, limit)
	if err != nil {
		e.logger.Error("lexical fallback failed", "category", category, "error", err)
		metrics.RetrievalTotal.WithLabelValues("empty").Inc()
		return []*models.OptimizationPattern{}
	}
	metrics.RetrievalTotal.WithLabelValues("lexical_fallback").Inc()
	return patternsOf(ranked, limit)
}

func (e *Engine) hybrid(ctx context.Context, query string, category models.StrategyCategory, limit int) (patterns []*models.OptimizationPattern, path string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in hybrid search: %v", r)
		}
	}()

	lexical, err := e.patterns.LexicalSearch(ctx, query, category, CandidateLimit)
	if err != nil {
		return nil, "", err
	}

	if e.embedder == nil {
		return patternsOf(lexical, limit), "lexical", nil
	}
	embedding, embErr := e.embedder.Embed(ctx, query)
	if embErr != nil || len(embedding) == 0 {
		e.logger.Warn("embedding unavailable, using lexical results only", "category", category, "error", embErr)
		return patternsOf(lexical, limit), "lexical", nil
	}

	vector, err := e.patterns.VectorSearch(ctx, embedding, category, CandidateLimit)
	if err != nil {
		return nil, "", err
	}

	fused := Fuse(e.k, lexical, vector)
	if len(fused) > limit {
		fused = fused[:limit]
	}
	out := make([]*models.OptimizationPattern, len(fused))
	for i, f := range fused {
		out[i] = f.Pattern
	}
	return out, "hybrid", nil
}

func patternsOf(ranked []models.RankedPattern, limit int) []*models.OptimizationPattern {
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	out := make([]*models.OptimizationPattern, 0, len(ranked))
	for _, rp := range ranked {
		if rp.Pattern != nil {
			out = append(out, rp.Pattern)
		}
	}
	return out
}
