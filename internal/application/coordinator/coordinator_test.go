package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/parallelproof/internal/application/agent"
	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
)

type fakeTasks struct {
	mu          sync.Mutex
	status      models.TaskStatus
	bestID      *string
	completeErr error
	runningErr  error
}

func (f *fakeTasks) Create(context.Context, *models.OptimizationTask) error { return nil }
func (f *fakeTasks) GetByID(context.Context, string) (*models.OptimizationTask, error) {
	return nil, domain.ErrTaskNotFound
}

func (f *fakeTasks) MarkRunning(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runningErr != nil {
		return f.runningErr
	}
	f.status = models.TaskStatusRunning
	return nil
}

func (f *fakeTasks) Complete(_ context.Context, _ string, bestID *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return f.completeErr
	}
	f.status = models.TaskStatusCompleted
	f.bestID = bestID
	return nil
}

func (f *fakeTasks) Fail(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = models.TaskStatusFailed
	return nil
}

type fakeProvisioner struct {
	mu       sync.Mutex
	obtain   int
	released []models.Environment
}

func (f *fakeProvisioner) ProvisionMany(_ context.Context, n int) []models.Environment {
	count := n
	if f.obtain >= 0 && f.obtain < n {
		count = f.obtain
	}
	envs := make([]models.Environment, count)
	for i := range envs {
		envs[i] = models.Environment{
			Name:    fmt.Sprintf("main-%d-abcdefgh", i),
			AgentID: fmt.Sprintf("agent-%d", i),
			Mode:    models.ForkModeVirtual,
		}
	}
	return envs
}

func (f *fakeProvisioner) Release(_ context.Context, env models.Environment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, env)
}

func (f *fakeProvisioner) ReleaseMany(ctx context.Context, envs []models.Environment) {
	for _, env := range envs {
		f.Release(ctx, env)
	}
}

func (f *fakeProvisioner) Mode() models.ForkMode { return models.ForkModeVirtual }

type fakeOptimizer struct {
	calls atomic.Int32
	run   func(ctx context.Context, as agent.Assignment) *models.AgentResult
}

func (f *fakeOptimizer) Optimize(ctx context.Context, task *models.OptimizationTask, as agent.Assignment) *models.AgentResult {
	f.calls.Add(1)
	r := f.run(ctx, as)
	r.TaskID = task.ID
	r.AgentID = as.Env.AgentID
	r.ForkID = as.Env.Name
	r.Strategy = as.Strategy.Name
	return r
}

type fakeCatalog struct {
	strategies []*models.Strategy
}

func newFakeCatalog(t *testing.T, n int) *fakeCatalog {
	t.Helper()
	c := &fakeCatalog{}
	for i := 0; i < n; i++ {
		s, err := models.NewStrategy(fmt.Sprintf("strategy-%d", i), models.CategoryAlgorithmic, "Optimize {{.Code}}")
		require.NoError(t, err)
		c.strategies = append(c.strategies, s)
	}
	return c
}

func (c *fakeCatalog) Len() int                        { return len(c.strategies) }
func (c *fakeCatalog) ForAgent(i int) *models.Strategy { return c.strategies[i%len(c.strategies)] }

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TaskEvent
}

func (p *recordingPublisher) Publish(_ string, ev models.TaskEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) types() []models.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]models.EventType, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Type
	}
	return out
}

func (p *recordingPublisher) last() models.TaskEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func completed(id string, imp float64) *models.AgentResult {
	code := "optimized"
	return &models.AgentResult{
		ID:                 id,
		Status:             models.AgentStatusCompleted,
		OptimizedCode:      &code,
		ImprovementPercent: &imp,
		Persisted:          true,
		CompletedAt:        time.Now().UTC(),
	}
}

func failed(id string) *models.AgentResult {
	msg := "generation request failed"
	return &models.AgentResult{
		ID:           id,
		Status:       models.AgentStatusFailed,
		ErrorKind:    domain.KindGeneration,
		ErrorMessage: &msg,
		Persisted:    true,
		CompletedAt:  time.Now().UTC(),
	}
}

func agentIndex(as agent.Assignment) int {
	var i int
	_, _ = fmt.Sscanf(as.Env.AgentID, "agent-%d", &i)
	return i
}

type harness struct {
	tasks     *fakeTasks
	prov      *fakeProvisioner
	opt       *fakeOptimizer
	pub       *recordingPublisher
	coord     *Coordinator
	catalog   *fakeCatalog
	task      *models.OptimizationTask
	numAgents int
}

func newHarness(t *testing.T, numAgents, obtain int, run func(context.Context, agent.Assignment) *models.AgentResult) *harness {
	h := &harness{
		tasks:     &fakeTasks{status: models.TaskStatusPending},
		prov:      &fakeProvisioner{obtain: obtain},
		opt:       &fakeOptimizer{run: run},
		pub:       &recordingPublisher{},
		catalog:   newFakeCatalog(t, 7),
		numAgents: numAgents,
	}
	h.task = models.NewOptimizationTask("task-1", "for a in x: pass", "python", numAgents)
	h.coord = New(h.tasks, h.prov, h.opt, h.catalog, h.pub, Config{TaskTimeout: 5 * time.Second}, nil)
	return h
}

func TestRun_SelectsGreatestPositiveImprovement(t *testing.T) {
	imps := []float64{10, 0, 25}
	h := newHarness(t, 3, -1, func(_ context.Context, as agent.Assignment) *models.AgentResult {
		i := agentIndex(as)
		return completed(fmt.Sprintf("ar_%d", i), imps[i])
	})

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusCompleted, h.tasks.status)
	require.NotNil(t, h.tasks.bestID)
	assert.Equal(t, "ar_2", *h.tasks.bestID)
	assert.Equal(t, models.TaskStatusCompleted, h.task.Status)

	types := h.pub.types()
	require.Len(t, types, 6)
	assert.Equal(t, models.EventTaskStarted, types[0])
	assert.Equal(t, models.EventForksCreated, types[1])
	for _, typ := range types[2:5] {
		assert.Equal(t, models.EventAgentCompleted, typ)
	}
	assert.Equal(t, models.EventComplete, types[5])

	done := h.pub.last()
	assert.Equal(t, models.EventComplete, done.Type)
	assert.Len(t, h.prov.released, 3)
}

func TestRun_AssignsStrategiesByIndex(t *testing.T) {
	var mu sync.Mutex
	seen := map[int]string{}
	h := newHarness(t, 9, -1, func(_ context.Context, as agent.Assignment) *models.AgentResult {
		mu.Lock()
		seen[agentIndex(as)] = as.Strategy.Name
		mu.Unlock()
		return completed("ar", 0)
	})

	h.coord.Run(context.Background(), h.task)

	require.Len(t, seen, 9)
	assert.Equal(t, "strategy-0", seen[0])
	assert.Equal(t, "strategy-6", seen[6])
	assert.Equal(t, "strategy-0", seen[7])
	assert.Equal(t, "strategy-1", seen[8])
}

func TestRun_TieKeepsFirstInIndexOrder(t *testing.T) {
	h := newHarness(t, 3, -1, func(_ context.Context, as agent.Assignment) *models.AgentResult {
		i := agentIndex(as)
		// later agents finish first
		time.Sleep(time.Duration(3-i) * 10 * time.Millisecond)
		return completed(fmt.Sprintf("ar_%d", i), 40)
	})

	h.coord.Run(context.Background(), h.task)

	require.NotNil(t, h.tasks.bestID)
	assert.Equal(t, "ar_0", *h.tasks.bestID)
}

func TestRun_NoPositiveImprovementHasNoWinner(t *testing.T) {
	h := newHarness(t, 2, -1, func(_ context.Context, as agent.Assignment) *models.AgentResult {
		if agentIndex(as) == 0 {
			return failed("ar_0")
		}
		return completed("ar_1", -5)
	})

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusCompleted, h.tasks.status)
	assert.Nil(t, h.tasks.bestID)
	assert.Equal(t, models.EventComplete, h.pub.last().Type)
}

func TestRun_UnpersistedResultCannotWin(t *testing.T) {
	h := newHarness(t, 2, -1, func(_ context.Context, as agent.Assignment) *models.AgentResult {
		if agentIndex(as) == 0 {
			r := completed("ar_0", 90)
			r.Persisted = false
			return r
		}
		return completed("ar_1", 20)
	})

	h.coord.Run(context.Background(), h.task)

	require.NotNil(t, h.tasks.bestID)
	assert.Equal(t, "ar_1", *h.tasks.bestID)
}

func TestRun_ZeroEnvironmentsFailsTask(t *testing.T) {
	h := newHarness(t, 5, 0, func(context.Context, agent.Assignment) *models.AgentResult {
		t.Fatal("no agent should run")
		return nil
	})

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusFailed, h.tasks.status)
	assert.Equal(t, int32(0), h.opt.calls.Load())
	assert.Empty(t, h.prov.released)

	types := h.pub.types()
	require.Len(t, types, 2)
	assert.Equal(t, models.EventTaskStarted, types[0])
	assert.Equal(t, models.EventError, types[1])
}

func TestRun_PartialProvisioningRunsObtainedAgents(t *testing.T) {
	h := newHarness(t, 5, 2, func(_ context.Context, as agent.Assignment) *models.AgentResult {
		return completed("ar_"+as.Env.AgentID, 5)
	})

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusCompleted, h.tasks.status)
	assert.Equal(t, int32(2), h.opt.calls.Load())
	assert.Len(t, h.prov.released, 2)
}

func TestRun_AgentFailureDoesNotCancelSiblings(t *testing.T) {
	h := newHarness(t, 3, -1, func(ctx context.Context, as agent.Assignment) *models.AgentResult {
		i := agentIndex(as)
		if i == 0 {
			return failed("ar_0")
		}
		time.Sleep(20 * time.Millisecond)
		if ctx.Err() != nil {
			return failed(fmt.Sprintf("ar_%d", i))
		}
		return completed(fmt.Sprintf("ar_%d", i), float64(i))
	})

	h.coord.Run(context.Background(), h.task)

	require.NotNil(t, h.tasks.bestID)
	assert.Equal(t, "ar_2", *h.tasks.bestID)
}

func TestRun_AgentPanicBecomesFailedResult(t *testing.T) {
	h := newHarness(t, 2, -1, func(_ context.Context, as agent.Assignment) *models.AgentResult {
		if agentIndex(as) == 1 {
			panic("boom")
		}
		return completed("ar_0", 12)
	})

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusCompleted, h.tasks.status)
	require.NotNil(t, h.tasks.bestID)
	assert.Equal(t, "ar_0", *h.tasks.bestID)
	assert.Len(t, h.prov.released, 2)
}

func TestRun_CompleteFailureFailsTaskAndReleases(t *testing.T) {
	h := newHarness(t, 2, -1, func(context.Context, agent.Assignment) *models.AgentResult {
		return completed("ar", 3)
	})
	h.tasks.completeErr = errors.New("connection reset")

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusFailed, h.tasks.status)
	assert.Equal(t, models.EventError, h.pub.last().Type)
	assert.Len(t, h.prov.released, 2)
}

func TestRun_MarkRunningFailure(t *testing.T) {
	h := newHarness(t, 2, -1, func(context.Context, agent.Assignment) *models.AgentResult {
		t.Fatal("no agent should run")
		return nil
	})
	h.tasks.runningErr = domain.ErrInvalidStatusTransition

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, []models.EventType{models.EventError}, h.pub.types())
}

func TestRun_TimeoutFailsTaskButReleases(t *testing.T) {
	h := newHarness(t, 2, -1, func(ctx context.Context, as agent.Assignment) *models.AgentResult {
		<-ctx.Done()
		return failed("ar_" + as.Env.AgentID)
	})
	h.coord.cfg.TaskTimeout = 30 * time.Millisecond

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusFailed, h.tasks.status)
	assert.Equal(t, models.EventError, h.pub.last().Type)
	assert.Len(t, h.prov.released, 2)
}

func TestRun_DeadlineAfterAgentsFinishStillCompletes(t *testing.T) {
	h := newHarness(t, 2, -1, func(ctx context.Context, as agent.Assignment) *models.AgentResult {
		<-ctx.Done()
		return completed(fmt.Sprintf("ar_%d", agentIndex(as)), 15)
	})
	h.coord.cfg.TaskTimeout = 20 * time.Millisecond

	h.coord.Run(context.Background(), h.task)

	assert.Equal(t, models.TaskStatusCompleted, h.tasks.status)
	require.NotNil(t, h.tasks.bestID)
	assert.Equal(t, "ar_0", *h.tasks.bestID)
	assert.Equal(t, models.EventComplete, h.pub.last().Type)
	assert.Len(t, h.prov.released, 2)
}
