package ports

import (
	"context"

	"github.com/longregen/parallelproof/internal/domain/models"
)

// SubmitOptimizationInput is a client request to optimize an artifact. A nil
// NumAgents selects the configured default.
type SubmitOptimizationInput struct {
	Code      string `json:"code" validate:"required"`
	Language  string `json:"language" validate:"required,max=64"`
	NumAgents *int   `json:"num_agents,omitempty"`
}

type SubmitOptimizationOutput struct {
	TaskID       string            `json:"task_id"`
	Status       models.TaskStatus `json:"status"`
	NumAgents    int               `json:"num_agents"`
	WebSocketURL string            `json:"websocket_url"`
	Message      string            `json:"message"`
}

// SubmitOptimization records a pending task and starts it in the background.
type SubmitOptimization interface {
	Execute(ctx context.Context, input *SubmitOptimizationInput) (*SubmitOptimizationOutput, error)
}

// GetTaskStatus returns a task with its ranked results.
type GetTaskStatus interface {
	Execute(ctx context.Context, taskID string) (*models.TaskView, error)
}
