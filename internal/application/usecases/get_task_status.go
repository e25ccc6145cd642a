package usecases

import (
	"context"

	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/longregen/parallelproof/internal/ports"
)

// GetTaskStatus loads a task, its results ranked by improvement, and the
// winning result.
type GetTaskStatus struct {
	tasks   ports.TaskRepository
	results ports.AgentResultRepository
}

func NewGetTaskStatus(tasks ports.TaskRepository, results ports.AgentResultRepository) *GetTaskStatus {
	return &GetTaskStatus{tasks: tasks, results: results}
}

func (uc *GetTaskStatus) Execute(ctx context.Context, taskID string) (*models.TaskView, error) {
	task, err := uc.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}

	results, err := uc.results.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*models.AgentResult{}
	}

	return &models.TaskView{
		Task:       task,
		Results:    results,
		BestResult: best(task, results),
	}, nil
}

// best prefers the recorded winner. A task still in flight has none yet, so
// the leading completed result with a positive improvement stands in. A
// terminal task without a recorded winner has no best result.
func best(task *models.OptimizationTask, results []*models.AgentResult) *models.AgentResult {
	if task.BestResultID != nil {
		for _, r := range results {
			if r.ID == *task.BestResultID {
				return r
			}
		}
		return nil
	}
	if task.Status.IsTerminal() {
		return nil
	}
	for _, r := range results {
		if r.Succeeded() && r.Improvement() > 0 {
			return r
		}
	}
	return nil
}
