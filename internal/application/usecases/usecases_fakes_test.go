package usecases

import (
	"context"
	"sync"

	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
)

type memTaskRepo struct {
	mu        sync.Mutex
	tasks     map[string]*models.OptimizationTask
	createErr error
}

func newMemTaskRepo() *memTaskRepo {
	return &memTaskRepo{tasks: make(map[string]*models.OptimizationTask)}
}

func (r *memTaskRepo) Create(_ context.Context, task *models.OptimizationTask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	cp := *task
	r.tasks[task.ID] = &cp
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id string) (*models.OptimizationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, domain.Wrap(domain.KindNotFound, "get task", domain.ErrTaskNotFound)
	}
	cp := *t
	return &cp, nil
}

func (r *memTaskRepo) MarkRunning(context.Context, string) error { return nil }
func (r *memTaskRepo) Complete(context.Context, string, *string) error {
	return nil
}
func (r *memTaskRepo) Fail(context.Context, string) error { return nil }

type memResultRepo struct {
	results []*models.AgentResult
	listErr error
}

func (r *memResultRepo) Create(context.Context, *models.AgentResult) error { return nil }
func (r *memResultRepo) ListByTask(context.Context, string) ([]*models.AgentResult, error) {
	return r.results, r.listErr
}

type recordingRunner struct {
	mu    sync.Mutex
	ran   []string
	block chan struct{}
}

func (r *recordingRunner) Run(ctx context.Context, task *models.OptimizationTask) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ran = append(r.ran, task.ID)
}

type fixedIDs struct{}

func (fixedIDs) GenerateTaskID() string        { return "0b6f2c1e-5a4d-4f43-9f7e-3c2d1b0a9e8f" }
func (fixedIDs) GenerateAgentResultID() string { return "ar_fixed" }
func (fixedIDs) GenerateForkSuffix() string    { return "abcdefgh" }
