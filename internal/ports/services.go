package ports

import (
	"context"

	"github.com/longregen/parallelproof/internal/domain/models"
)

// GenerationService sends a prompt to the generative model and returns the
// raw response text. The text is expected to hold a JSON object or array,
// possibly wrapped in prose or markdown fences.
type GenerationService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbeddingService produces a dense vector for a text.
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// PatternSearcher returns contextual patterns for an agent. Implementations
// never fail; they degrade to fewer or no results.
type PatternSearcher interface {
	Search(ctx context.Context, query string, category models.StrategyCategory, limit int) []*models.OptimizationPattern
}

// Provisioner creates and releases isolated environments.
type Provisioner interface {
	// ProvisionMany is best-effort and returns at most n environments.
	ProvisionMany(ctx context.Context, n int) []models.Environment
	// Release is idempotent; unknown or already released handles are ignored.
	Release(ctx context.Context, env models.Environment)
	ReleaseMany(ctx context.Context, envs []models.Environment)
	Mode() models.ForkMode
}

// EventPublisher fans task events out to the task's current subscribers.
type EventPublisher interface {
	Publish(taskID string, event models.TaskEvent)
}

// IDGenerator produces identifiers for persisted entities.
type IDGenerator interface {
	GenerateTaskID() string
	GenerateAgentResultID() string
	GenerateForkSuffix() string
}

// TaskRunner drives one task to a terminal state. Run never returns an error;
// failures are recorded on the task and published.
type TaskRunner interface {
	Run(ctx context.Context, task *models.OptimizationTask)
}
