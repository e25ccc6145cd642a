package postgres

import (
	"context"
	"database/sql"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
)

type AgentResultRepository struct {
	BaseRepository
}

func NewAgentResultRepository(pool *pgxpool.Pool) *AgentResultRepository {
	return &AgentResultRepository{BaseRepository: NewBaseRepository(pool)}
}

func (r *AgentResultRepository) Create(ctx context.Context, result *models.AgentResult) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO agent_results (
			id, task_id, fork_id, agent_id, strategy, category, original_code,
			optimized_code, explanation, improvement_percent, status,
			error_kind, error_message, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.conn(ctx).Exec(ctx, query,
		result.ID,
		result.TaskID,
		result.ForkID,
		result.AgentID,
		result.Strategy,
		nullString(string(result.Category)),
		result.OriginalCode,
		result.OptimizedCode,
		nullString(result.Explanation),
		result.ImprovementPercent,
		result.Status,
		nullString(string(result.ErrorKind)),
		result.ErrorMessage,
		result.CompletedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.Wrap(domain.KindPersistence, "create agent result", domain.ErrResultAlreadyRecorded)
		}
		return domain.Wrap(domain.KindPersistence, "create agent result", err)
	}
	return nil
}

func (r *AgentResultRepository) ListByTask(ctx context.Context, taskID string) ([]*models.AgentResult, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, task_id, fork_id, agent_id, strategy, category, original_code,
			   optimized_code, explanation, improvement_percent, status,
			   error_kind, error_message, completed_at
		FROM agent_results
		WHERE task_id = $1
		ORDER BY improvement_percent DESC NULLS LAST, completed_at ASC`

	rows, err := r.conn(ctx).Query(ctx, query, taskID)
	if err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "list agent results", err)
	}
	defer rows.Close()

	results := make([]*models.AgentResult, 0)
	for rows.Next() {
		var res models.AgentResult
		var category, explanation, errorKind, optimizedCode, errorMessage sql.NullString
		var improvement sql.NullFloat64

		if err := rows.Scan(
			&res.ID,
			&res.TaskID,
			&res.ForkID,
			&res.AgentID,
			&res.Strategy,
			&category,
			&res.OriginalCode,
			&optimizedCode,
			&explanation,
			&improvement,
			&res.Status,
			&errorKind,
			&errorMessage,
			&res.CompletedAt,
		); err != nil {
			return nil, domain.Wrap(domain.KindPersistence, "scan agent result", err)
		}

		res.Category = models.StrategyCategory(getString(category))
		res.Explanation = getString(explanation)
		res.ErrorKind = domain.ErrorKind(getString(errorKind))
		res.OptimizedCode = getStringPtr(optimizedCode)
		res.ErrorMessage = getStringPtr(errorMessage)
		res.ImprovementPercent = getFloatPtr(improvement)
		res.Persisted = true
		results = append(results, &res)
	}

	if err := rows.Err(); err != nil {
		return nil, domain.Wrap(domain.KindPersistence, "list agent results", err)
	}
	return results, nil
}
