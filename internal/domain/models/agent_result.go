package models

import (
	"time"

	"github.com/longregen/parallelproof/internal/domain"
)

// AgentStatus is the terminal state of one agent run.
type AgentStatus string

const (
	AgentStatusCompleted AgentStatus = "completed"
	AgentStatusFailed    AgentStatus = "failed"
)

// AgentResult is written once per agent per task and never mutated after it
// has been persisted.
type AgentResult struct {
	ID                 string           `json:"id"`
	TaskID             string           `json:"task_id"`
	ForkID             string           `json:"fork_id"`
	AgentID            string           `json:"agent_id"`
	Strategy           string           `json:"strategy"`
	Category           StrategyCategory `json:"category,omitempty"`
	OriginalCode       string           `json:"original_code,omitempty"`
	OptimizedCode      *string          `json:"optimized_code"`
	Explanation        string           `json:"explanation"`
	ImprovementPercent *float64         `json:"improvement_percent"`
	Status             AgentStatus      `json:"status"`
	ErrorKind          domain.ErrorKind `json:"error_kind,omitempty"`
	ErrorMessage       *string          `json:"error_message,omitempty"`
	CompletedAt        time.Time        `json:"completed_at"`

	// Persisted is false when the store rejected the row; the result is still
	// reported to observers but cannot be referenced as a task's winner.
	Persisted bool `json:"-"`
}

// Improvement returns the normalized improvement, treating a missing value
// as zero.
func (r *AgentResult) Improvement() float64 {
	if r == nil || r.ImprovementPercent == nil {
		return 0
	}
	return *r.ImprovementPercent
}

// Succeeded reports whether the agent completed.
func (r *AgentResult) Succeeded() bool {
	return r != nil && r.Status == AgentStatusCompleted
}

// SelectBest returns the completed result with the strictly greatest positive
// improvement. Ties keep the first result in slice order; nil when nothing
// qualifies.
func SelectBest(results []*AgentResult) *AgentResult {
	var best *AgentResult
	for _, r := range results {
		if !r.Succeeded() || r.ImprovementPercent == nil {
			continue
		}
		imp := *r.ImprovementPercent
		if imp <= 0 {
			continue
		}
		if best == nil || imp > best.Improvement() {
			best = r
		}
	}
	return best
}
