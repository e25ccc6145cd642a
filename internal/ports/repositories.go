package ports

import (
	"context"

	"github.com/longregen/parallelproof/internal/domain/models"
)

// TaskRepository persists optimization tasks. Status updates are guarded in
// the store so a task never leaves a terminal state.
type TaskRepository interface {
	Create(ctx context.Context, task *models.OptimizationTask) error
	GetByID(ctx context.Context, id string) (*models.OptimizationTask, error)
	MarkRunning(ctx context.Context, id string) error
	// Complete records the terminal completed state with an optional winner.
	Complete(ctx context.Context, id string, bestResultID *string) error
	Fail(ctx context.Context, id string) error
}

// AgentResultRepository persists write-once agent results.
type AgentResultRepository interface {
	Create(ctx context.Context, result *models.AgentResult) error
	// ListByTask returns results ordered by improvement descending, nulls last.
	ListByTask(ctx context.Context, taskID string) ([]*models.AgentResult, error)
}

// PatternRepository searches the optimization pattern corpus.
type PatternRepository interface {
	// LexicalSearch ranks patterns of a category by full-text relevance.
	LexicalSearch(ctx context.Context, query string, category models.StrategyCategory, limit int) ([]models.RankedPattern, error)
	// VectorSearch ranks embedded patterns of a category by cosine similarity.
	VectorSearch(ctx context.Context, embedding []float32, category models.StrategyCategory, limit int) ([]models.RankedPattern, error)
}
