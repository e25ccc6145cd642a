package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/longregen/parallelproof/internal/ports"
)

// SubmitOptimization inserts the task as pending and hands it to the runner
// on a background goroutine. Background runs derive from baseCtx, not from
// the request, so they outlive the HTTP call and stop on shutdown.
type SubmitOptimization struct {
	tasks         ports.TaskRepository
	runner        ports.TaskRunner
	ids           ports.IDGenerator
	validate      *validator.Validate
	defaultAgents int
	maxAgents     int
	baseCtx       context.Context
	wg            sync.WaitGroup
	logger        *slog.Logger
}

// NewSubmitOptimization creates the usecase. baseCtx scopes every background
// run; cancel it to stop in-flight tasks.
func NewSubmitOptimization(
	baseCtx context.Context,
	tasks ports.TaskRepository,
	runner ports.TaskRunner,
	ids ports.IDGenerator,
	defaultAgents, maxAgents int,
	logger *slog.Logger,
) *SubmitOptimization {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubmitOptimization{
		tasks:         tasks,
		runner:        runner,
		ids:           ids,
		validate:      validator.New(),
		defaultAgents: defaultAgents,
		maxAgents:     maxAgents,
		baseCtx:       baseCtx,
		logger:        logger.With("component", "submit_optimization"),
	}
}

func (uc *SubmitOptimization) Execute(ctx context.Context, input *ports.SubmitOptimizationInput) (*ports.SubmitOptimizationOutput, error) {
	if input == nil {
		return nil, domain.Wrap(domain.KindValidation, "submit optimization", domain.ErrInvalidInput)
	}

	numAgents, err := uc.check(input)
	if err != nil {
		return nil, err
	}

	task := models.NewOptimizationTask(uc.ids.GenerateTaskID(), input.Code, input.Language, numAgents)
	if err := uc.tasks.Create(ctx, task); err != nil {
		return nil, err
	}

	uc.logger.Info("optimization task submitted", "task_id", task.ID, "num_agents", numAgents, "language", task.Language)

	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		uc.runner.Run(uc.baseCtx, task)
	}()

	return &ports.SubmitOptimizationOutput{
		TaskID:       task.ID,
		Status:       models.TaskStatusPending,
		NumAgents:    numAgents,
		WebSocketURL: "/ws/" + task.ID,
		Message:      fmt.Sprintf("Optimization started with %d agents. Connect to WebSocket for real-time updates.", numAgents),
	}, nil
}

// Wait blocks until every background run started by Execute has returned.
func (uc *SubmitOptimization) Wait() {
	uc.wg.Wait()
}

func (uc *SubmitOptimization) check(input *ports.SubmitOptimizationInput) (int, error) {
	var problems []string

	if err := uc.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return 0, domain.Wrap(domain.KindValidation, "submit optimization", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	if input.Code != "" && strings.TrimSpace(input.Code) == "" {
		problems = append(problems, "code must not be blank")
	}

	numAgents := uc.defaultAgents
	if input.NumAgents != nil {
		numAgents = *input.NumAgents
	}
	if err := uc.validate.Var(numAgents, fmt.Sprintf("min=1,max=%d", uc.maxAgents)); err != nil {
		problems = append(problems, fmt.Sprintf("num_agents must be between 1 and %d", uc.maxAgents))
	}

	if len(problems) > 0 {
		return 0, domain.Wrap(domain.KindValidation, "submit optimization",
			fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; ")))
	}
	return numAgents, nil
}
