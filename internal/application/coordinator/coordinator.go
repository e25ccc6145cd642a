// Package coordinator drives one optimization task from running to a
// terminal state.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/longregen/parallelproof/internal/adapters/metrics"
	"github.com/longregen/parallelproof/internal/adapters/tracing"
	"github.com/longregen/parallelproof/internal/application/agent"
	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/longregen/parallelproof/internal/ports"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultReleaseTimeout = 60 * time.Second
	storeTimeout          = 10 * time.Second
)

// ErrTaskTimedOut is recorded when the task deadline passes before every
// agent has reported.
var ErrTaskTimedOut = errors.New("task deadline exceeded")

// Optimizer runs one agent. It must always return a result.
type Optimizer interface {
	Optimize(ctx context.Context, task *models.OptimizationTask, as agent.Assignment) *models.AgentResult
}

// StrategyCatalog assigns strategies to agent indexes.
type StrategyCatalog interface {
	Len() int
	ForAgent(i int) *models.Strategy
}

// Config bounds a task run.
type Config struct {
	// TaskTimeout bounds the whole run, provisioning through the last agent.
	// Zero leaves only the caller's context.
	TaskTimeout time.Duration
	// ReleaseTimeout bounds environment cleanup, which runs detached from
	// the task context.
	ReleaseTimeout time.Duration
}

// Coordinator implements ports.TaskRunner.
type Coordinator struct {
	tasks       ports.TaskRepository
	provisioner ports.Provisioner
	optimizer   Optimizer
	catalog     StrategyCatalog
	publisher   ports.EventPublisher
	cfg         Config
	logger      *slog.Logger
}

func New(
	tasks ports.TaskRepository,
	provisioner ports.Provisioner,
	optimizer Optimizer,
	catalog StrategyCatalog,
	publisher ports.EventPublisher,
	cfg Config,
	logger *slog.Logger,
) *Coordinator {
	if cfg.ReleaseTimeout <= 0 {
		cfg.ReleaseTimeout = defaultReleaseTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		tasks:       tasks,
		provisioner: provisioner,
		optimizer:   optimizer,
		catalog:     catalog,
		publisher:   publisher,
		cfg:         cfg,
		logger:      logger.With("component", "coordinator"),
	}
}

type outcome struct {
	index  int
	result *models.AgentResult
	// cut is set when the agent did not succeed and the task context was
	// already done as it returned.
	cut bool
}

// Run never returns an error. Every failure ends with the task marked failed
// and an error event published; environments obtained for the task are
// always released.
func (c *Coordinator) Run(ctx context.Context, task *models.OptimizationTask) {
	start := time.Now()
	log := c.logger.With("task_id", task.ID)

	ctx, span := tracing.Tracer().Start(ctx, "coordinator.run")
	span.SetAttributes(
		attribute.String("task_id", task.ID),
		attribute.Int("num_agents", task.NumAgents),
	)
	defer span.End()

	if c.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TaskTimeout)
		defer cancel()
	}

	metrics.TasksActive.Inc()
	defer func() {
		metrics.TasksActive.Dec()
		metrics.TaskDuration.Observe(time.Since(start).Seconds())
	}()

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			log.Error("task panicked", "panic", r)
			span.SetStatus(codes.Error, err.Error())
			c.fail(ctx, task, domain.Wrap(domain.KindInternal, "run task", err), log)
		}
	}()

	if err := c.tasks.MarkRunning(ctx, task.ID); err != nil {
		log.Error("failed to mark task running", "error", err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, task, err, log)
		return
	}
	task.Status = models.TaskStatusRunning
	log.Info("task started", "num_agents", task.NumAgents)
	c.publisher.Publish(task.ID, models.NewTaskStartedEvent(task.ID, task.NumAgents))

	envs := c.provisioner.ProvisionMany(ctx, task.NumAgents)
	if len(envs) == 0 {
		err := domain.Wrap(domain.KindProvisioning, "provision environments", domain.ErrNoEnvironments)
		log.Error("no environments obtained", "requested", task.NumAgents)
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, task, err, log)
		return
	}
	defer c.release(ctx, envs, log)

	if len(envs) < task.NumAgents {
		log.Warn("partial provisioning", "obtained", len(envs), "requested", task.NumAgents)
	}
	c.publisher.Publish(task.ID, models.NewForksCreatedEvent(task.ID, len(envs), task.NumAgents))

	results, cut := c.runAgents(ctx, task, envs, log)

	if cut {
		err := ErrTaskTimedOut
		if errors.Is(ctx.Err(), context.Canceled) {
			err = ctx.Err()
		}
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, task, domain.Wrap(domain.KindInternal, "run agents", err), log)
		return
	}

	best := models.SelectBest(persisted(results))
	successful := 0
	for _, r := range results {
		if r.Succeeded() {
			successful++
		}
	}

	var bestID *string
	if best != nil {
		id := best.ID
		bestID = &id
	}

	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()
	if err := c.tasks.Complete(storeCtx, task.ID, bestID); err != nil {
		log.Error("failed to complete task", "error", err)
		span.SetStatus(codes.Error, err.Error())
		c.fail(ctx, task, err, log)
		return
	}

	now := time.Now().UTC()
	task.Status = models.TaskStatusCompleted
	task.BestResultID = bestID
	task.CompletedAt = &now
	metrics.TasksTotal.WithLabelValues(string(models.TaskStatusCompleted)).Inc()

	if best != nil {
		log.Info("task completed", "agents", len(results), "successful", successful,
			"best_result_id", best.ID, "best_strategy", best.Strategy, "improvement_percent", best.Improvement())
	} else {
		log.Info("task completed without a winner", "agents", len(results), "successful", successful)
	}
	c.publisher.Publish(task.ID, models.NewCompleteEvent(task.ID, len(results), successful, best))
}

// runAgents starts one agent per environment and waits for all of them. The
// returned slice is in agent index order; agent_completed events go out in
// completion order. cut reports whether any agent was interrupted by the task
// context; agents that all finished before a late deadline leave it false.
func (c *Coordinator) runAgents(ctx context.Context, task *models.OptimizationTask, envs []models.Environment, log *slog.Logger) (results []*models.AgentResult, cut bool) {
	outcomes := make(chan outcome, len(envs))

	for i, env := range envs {
		as := agent.Assignment{Env: env, Strategy: c.catalog.ForAgent(i)}
		go func(i int, as agent.Assignment) {
			var result *models.AgentResult
			defer func() {
				if r := recover(); r != nil {
					log.Error("agent goroutine panicked", "agent_id", as.Env.AgentID, "panic", r)
					result = panicResult(task, as, r)
				}
				outcomes <- outcome{index: i, result: result, cut: !result.Succeeded() && ctx.Err() != nil}
			}()
			result = c.optimizer.Optimize(ctx, task, as)
		}(i, as)
	}

	results = make([]*models.AgentResult, len(envs))
	for range envs {
		o := <-outcomes
		results[o.index] = o.result
		cut = cut || o.cut
		c.publisher.Publish(task.ID, models.NewAgentCompletedEvent(task.ID, o.result))
	}
	return results, cut
}

// release runs detached so a cancelled or timed-out task still cleans up.
func (c *Coordinator) release(ctx context.Context, envs []models.Environment, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.ReleaseTimeout)
	defer cancel()

	c.provisioner.ReleaseMany(ctx, envs)
	log.Info("environments released", "count", len(envs))
}

func (c *Coordinator) fail(ctx context.Context, task *models.OptimizationTask, cause error, log *slog.Logger) {
	storeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeTimeout)
	defer cancel()

	if err := c.tasks.Fail(storeCtx, task.ID); err != nil {
		log.Error("failed to mark task failed", "error", err)
	} else {
		now := time.Now().UTC()
		task.Status = models.TaskStatusFailed
		task.CompletedAt = &now
	}
	metrics.TasksTotal.WithLabelValues(string(models.TaskStatusFailed)).Inc()
	log.Error("task failed", "kind", domain.KindOf(cause), "error", cause)
	c.publisher.Publish(task.ID, models.NewErrorEvent(task.ID, cause))
}

// persisted keeps index order so the first-seen tie-break is stable.
func persisted(results []*models.AgentResult) []*models.AgentResult {
	out := make([]*models.AgentResult, 0, len(results))
	for _, r := range results {
		if r != nil && r.Persisted {
			out = append(out, r)
		}
	}
	return out
}

func panicResult(task *models.OptimizationTask, as agent.Assignment, r any) *models.AgentResult {
	msg := fmt.Sprintf("panic: %v", r)
	result := &models.AgentResult{
		TaskID:       task.ID,
		ForkID:       as.Env.Name,
		AgentID:      as.Env.AgentID,
		OriginalCode: task.OriginalCode,
		Status:       models.AgentStatusFailed,
		ErrorKind:    domain.KindInternal,
		ErrorMessage: &msg,
		CompletedAt:  time.Now().UTC(),
	}
	if as.Strategy != nil {
		result.Strategy = as.Strategy.Name
		result.Category = as.Strategy.Category
	}
	return result
}
