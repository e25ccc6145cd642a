package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
)

type TaskRepository struct {
	BaseRepository
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{BaseRepository: NewBaseRepository(pool)}
}

func (r *TaskRepository) Create(ctx context.Context, task *models.OptimizationTask) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		INSERT INTO optimization_tasks (id, original_code, language, num_agents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.conn(ctx).Exec(ctx, query,
		task.ID, task.OriginalCode, task.Language, task.NumAgents, task.Status, task.CreatedAt,
	)
	if err != nil {
		return domain.Wrap(domain.KindPersistence, "create task", err)
	}
	return nil
}

func (r *TaskRepository) GetByID(ctx context.Context, id string) (*models.OptimizationTask, error) {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, original_code, language, num_agents, status, best_result_id, created_at, completed_at
		FROM optimization_tasks
		WHERE id = $1`

	var task models.OptimizationTask
	var bestResultID sql.NullString
	var completedAt sql.NullTime

	err := r.conn(ctx).QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.OriginalCode,
		&task.Language,
		&task.NumAgents,
		&task.Status,
		&bestResultID,
		&task.CreatedAt,
		&completedAt,
	)
	if err != nil {
		if checkNoRows(err) {
			return nil, domain.Wrap(domain.KindNotFound, "get task", domain.ErrTaskNotFound)
		}
		return nil, domain.Wrap(domain.KindPersistence, "get task", err)
	}

	task.BestResultID = getStringPtr(bestResultID)
	task.CompletedAt = getTimePtr(completedAt)
	return &task, nil
}

func (r *TaskRepository) MarkRunning(ctx context.Context, id string) error {
	query := `
		UPDATE optimization_tasks
		SET status = $2
		WHERE id = $1 AND status = $3`

	return r.transition(ctx, "mark task running", query, id, models.TaskStatusRunning, models.TaskStatusPending)
}

func (r *TaskRepository) Complete(ctx context.Context, id string, bestResultID *string) error {
	query := `
		UPDATE optimization_tasks
		SET status = $2, best_result_id = $4, completed_at = $5
		WHERE id = $1 AND status = $3`

	return r.transition(ctx, "complete task", query, id, models.TaskStatusCompleted, models.TaskStatusRunning,
		bestResultID, time.Now().UTC())
}

func (r *TaskRepository) Fail(ctx context.Context, id string) error {
	query := `
		UPDATE optimization_tasks
		SET status = $2, completed_at = $4
		WHERE id = $1 AND status IN ($3, 'pending')`

	return r.transition(ctx, "fail task", query, id, models.TaskStatusFailed, models.TaskStatusRunning,
		time.Now().UTC())
}

// transition runs a guarded status update. Zero affected rows means the task
// is missing or not in the expected source state.
func (r *TaskRepository) transition(ctx context.Context, op, query, id string, to, from models.TaskStatus, extra ...any) error {
	ctx, cancel := withTimeout(ctx)
	defer cancel()

	args := append([]any{id, to, from}, extra...)
	tag, err := r.conn(ctx).Exec(ctx, query, args...)
	if err != nil {
		return domain.Wrap(domain.KindPersistence, op, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Wrap(domain.KindPersistence, op,
			fmt.Errorf("%w: task %s is not %s", domain.ErrInvalidStatusTransition, id, from))
	}
	return nil
}
