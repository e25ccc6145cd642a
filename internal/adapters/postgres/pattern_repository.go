package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/pgvector/pgvector-go"
)

// PatternRepository reads the optimization pattern corpus. The lexical
// document is description plus name, matching the GIN index in migrations.
type PatternRepository struct {
	BaseRepository
}

func NewPatternRepository(pool *pgxpool.Pool) *PatternRepository {
	return &PatternRepository{BaseRepository: NewBaseRepository(pool)}
}

func (r *PatternRepository) LexicalSearch(ctx context.Context, query string, category models.StrategyCategory, limit int) ([]models.RankedPattern, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	sqlQuery := `
		SELECT id, category, pattern_name, description, code_example,
			   ts_rank(to_tsvector('english', description || ' ' || pattern_name),
					   plainto_tsquery('english', $1))::float8 AS score
		FROM optimization_patterns
		WHERE category = $2
		  AND to_tsvector('english', description || ' ' || pattern_name) @@ plainto_tsquery('english', $1)
		ORDER BY score DESC, id ASC
		LIMIT $3`

	rows, err := r.conn(ctx).Query(ctx, sqlQuery, query, category, limit)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetrieval, "lexical search", err)
	}
	return scanRanked(rows, "lexical search")
}

func (r *PatternRepository) VectorSearch(ctx context.Context, embedding []float32, category models.StrategyCategory, limit int) ([]models.RankedPattern, error) {
	if len(embedding) == 0 {
		return nil, domain.Wrap(domain.KindRetrieval, "vector search", errors.New("embedding cannot be empty"))
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	vector := pgvector.NewVector(embedding)
	sqlQuery := `
		SELECT id, category, pattern_name, description, code_example,
			   1 - (embedding <=> $1) AS score
		FROM optimization_patterns
		WHERE category = $2 AND embedding IS NOT NULL
		ORDER BY embedding <=> $1, id ASC
		LIMIT $3`

	rows, err := r.conn(ctx).Query(ctx, sqlQuery, vector, category, limit)
	if err != nil {
		return nil, domain.Wrap(domain.KindRetrieval, "vector search", err)
	}
	return scanRanked(rows, "vector search")
}

// scanRanked assigns 1-based ranks in row order.
func scanRanked(rows pgx.Rows, op string) ([]models.RankedPattern, error) {
	defer rows.Close()

	var ranked []models.RankedPattern
	for rows.Next() {
		var p models.OptimizationPattern
		var score float64
		if err := rows.Scan(&p.ID, &p.Category, &p.Name, &p.Description, &p.CodeExample, &score); err != nil {
			return nil, domain.Wrap(domain.KindRetrieval, op, err)
		}
		ranked = append(ranked, models.RankedPattern{
			Pattern: &p,
			Rank:    len(ranked) + 1,
			Score:   score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindRetrieval, op, err)
	}
	return ranked, nil
}
