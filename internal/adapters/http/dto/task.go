package dto

import (
	"time"

	"github.com/longregen/parallelproof/internal/domain/models"
)

// TaskStatusResponse is the flat task status document.
type TaskStatusResponse struct {
	TaskID       string                `json:"task_id"`
	Status       models.TaskStatus     `json:"status"`
	Language     string                `json:"language"`
	NumAgents    int                   `json:"num_agents"`
	CreatedAt    *time.Time            `json:"created_at"`
	CompletedAt  *time.Time            `json:"completed_at"`
	BestResultID *string               `json:"best_result_id,omitempty"`
	AgentResults []*models.AgentResult `json:"agent_results"`
	BestResult   *models.AgentResult   `json:"best_result"`
}

func FromTaskView(view *models.TaskView) *TaskStatusResponse {
	t := view.Task
	resp := &TaskStatusResponse{
		TaskID:       t.ID,
		Status:       t.Status,
		Language:     t.Language,
		NumAgents:    t.NumAgents,
		CompletedAt:  t.CompletedAt,
		BestResultID: t.BestResultID,
		AgentResults: view.Results,
		BestResult:   view.BestResult,
	}
	if !t.CreatedAt.IsZero() {
		created := t.CreatedAt
		resp.CreatedAt = &created
	}
	if resp.AgentResults == nil {
		resp.AgentResults = []*models.AgentResult{}
	}
	return resp
}

type HealthResponse struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Environment string `json:"environment"`
	Database    string `json:"database"`
}

type RootResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
}
