package fork

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/longregen/parallelproof/internal/adapters/metrics"
	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const defaultCallTimeout = 5 * time.Minute

// Config configures a Provisioner.
type Config struct {
	Mode          models.ForkMode
	BaseService   string
	CLI           string
	MaxConcurrent int
	CallTimeout   time.Duration
}

// Provisioner creates and releases agent environments. In virtual mode every
// environment aliases the base service; in real mode each one is a service
// fork created through the CLI.
type Provisioner struct {
	cfg    Config
	runner CommandRunner
	suffix func() string
	sem    *semaphore.Weighted
	logger *slog.Logger

	mu    sync.Mutex
	forks map[string]string // environment name -> agent id
}

// NewProvisioner creates a provisioner. suffix supplies the random part of
// environment names so names never collide across tasks.
func NewProvisioner(cfg Config, runner CommandRunner, suffix func() string, logger *slog.Logger) *Provisioner {
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if runner == nil {
		runner = ExecRunner{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Provisioner{
		cfg:    cfg,
		runner: runner,
		suffix: suffix,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: logger.With("component", "fork", "mode", string(cfg.Mode)),
		forks:  make(map[string]string),
	}
	if cfg.Mode == models.ForkModeVirtual {
		p.logger.Warn("virtual forks enabled, all agents share the base service", "base_service", cfg.BaseService)
	}
	return p
}

func (p *Provisioner) Mode() models.ForkMode {
	return p.cfg.Mode
}

// Active returns the number of environments currently held.
func (p *Provisioner) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.forks)
}

// ProvisionMany returns up to n environments in agent-index order. Failed
// provisions are logged and omitted.
func (p *Provisioner) ProvisionMany(ctx context.Context, n int) []models.Environment {
	if n <= 0 {
		return nil
	}

	slots := make([]*models.Environment, n)

	if p.cfg.Mode == models.ForkModeVirtual {
		for i := 0; i < n; i++ {
			env := p.newEnvironment(i, "main")
			p.track(env)
			slots[i] = &env
		}
	} else {
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				env, err := p.createReal(ctx, i)
				if err != nil {
					p.logger.Error("fork creation failed", "agent_id", env.AgentID, "fork", env.Name, "error", err)
					metrics.ForksTotal.WithLabelValues(string(p.cfg.Mode), "create", "error").Inc()
					return
				}
				slots[i] = &env
			}(i)
		}
		wg.Wait()
	}

	envs := make([]models.Environment, 0, n)
	for _, env := range slots {
		if env != nil {
			envs = append(envs, *env)
		}
	}
	if len(envs) < n {
		p.logger.Warn("partial provisioning", "obtained", len(envs), "requested", n)
	} else {
		p.logger.Info("environments provisioned", "count", len(envs))
	}
	return envs
}

func (p *Provisioner) newEnvironment(i int, prefix string) models.Environment {
	return models.Environment{
		Name:    fmt.Sprintf("%s-%d-%s", prefix, i, p.suffix()),
		AgentID: fmt.Sprintf("agent-%d", i),
		Mode:    p.cfg.Mode,
	}
}

func (p *Provisioner) createReal(ctx context.Context, i int) (models.Environment, error) {
	env := p.newEnvironment(i, "agent")

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return env, domain.Wrap(domain.KindProvisioning, "create fork", err)
	}
	defer p.sem.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	err := p.runner.Run(callCtx, p.cfg.CLI,
		"service", "fork", p.cfg.BaseService, "--last-snapshot", "--name", env.Name)
	if err != nil {
		return env, domain.Wrap(domain.KindProvisioning, "create fork", err)
	}

	p.track(env)
	return env, nil
}

func (p *Provisioner) track(env models.Environment) {
	p.mu.Lock()
	p.forks[env.Name] = env.AgentID
	p.mu.Unlock()

	metrics.ForksTotal.WithLabelValues(string(p.cfg.Mode), "create", "ok").Inc()
	metrics.ForksActive.Inc()
}

// Release frees env. Unknown or already released environments are ignored,
// and backend errors are logged, never returned.
func (p *Provisioner) Release(ctx context.Context, env models.Environment) {
	p.mu.Lock()
	_, ok := p.forks[env.Name]
	delete(p.forks, env.Name)
	p.mu.Unlock()

	if !ok {
		return
	}
	metrics.ForksActive.Dec()

	if p.cfg.Mode == models.ForkModeVirtual {
		metrics.ForksTotal.WithLabelValues(string(p.cfg.Mode), "delete", "ok").Inc()
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.CallTimeout)
	defer cancel()

	if err := p.runner.Run(callCtx, p.cfg.CLI, "service", "delete", env.Name, "--force"); err != nil {
		p.logger.Error("fork deletion failed", "fork", env.Name, "agent_id", env.AgentID, "error", err)
		metrics.ForksTotal.WithLabelValues(string(p.cfg.Mode), "delete", "error").Inc()
		return
	}
	metrics.ForksTotal.WithLabelValues(string(p.cfg.Mode), "delete", "ok").Inc()
}

// ReleaseMany releases every environment concurrently and waits for all of
// them, whatever the individual outcomes.
func (p *Provisioner) ReleaseMany(ctx context.Context, envs []models.Environment) {
	if len(envs) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.MaxConcurrent)
	for _, env := range envs {
		g.Go(func() error {
			p.Release(ctx, env)
			return nil
		})
	}
	_ = g.Wait()
	p.logger.Info("environments released", "count", len(envs))
}
