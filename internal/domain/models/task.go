package models

import (
	"time"
)

// TaskStatus is the lifecycle state of an optimization task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// IsTerminal returns true for completed and failed tasks.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransitionTo enforces pending -> running -> {completed, failed}.
// A pending task may also fail directly when it cannot be started.
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusRunning || next == TaskStatusFailed
	case TaskStatusRunning:
		return next == TaskStatusCompleted || next == TaskStatusFailed
	default:
		return false
	}
}

// OptimizationTask is one end-to-end optimization request.
type OptimizationTask struct {
	ID           string     `json:"task_id"`
	OriginalCode string     `json:"original_code"`
	Language     string     `json:"language"`
	NumAgents    int        `json:"num_agents"`
	Status       TaskStatus `json:"status"`
	BestResultID *string    `json:"best_result_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

func NewOptimizationTask(id, code, language string, numAgents int) *OptimizationTask {
	return &OptimizationTask{
		ID:           id,
		OriginalCode: code,
		Language:     language,
		NumAgents:    numAgents,
		Status:       TaskStatusPending,
		CreatedAt:    time.Now().UTC(),
	}
}

// TaskView is the task as reported to clients: task fields, agent results
// ranked by improvement (nulls last) and the winning result if any.
type TaskView struct {
	Task       *OptimizationTask `json:"task"`
	Results    []*AgentResult    `json:"agent_results"`
	BestResult *AgentResult      `json:"best_result"`
}
