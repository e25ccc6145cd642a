package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/longregen/parallelproof/internal/domain"
	"github.com/longregen/parallelproof/internal/domain/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	patterns []*models.OptimizationPattern
	query    string
	category models.StrategyCategory
	limit    int
	panics   bool
}

func (f *fakeSearcher) Search(ctx context.Context, query string, category models.StrategyCategory, limit int) []*models.OptimizationPattern {
	if f.panics {
		panic("index out of range")
	}
	f.query, f.category, f.limit = query, category, limit
	return f.patterns
}

type fakeGenerator struct {
	reply  string
	err    error
	delay  time.Duration
	prompt string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

type fakeResults struct {
	mu      sync.Mutex
	created []*models.AgentResult
	err     error
}

func (f *fakeResults) Create(ctx context.Context, r *models.AgentResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.created = append(f.created, r)
	return nil
}

func (f *fakeResults) ListByTask(ctx context.Context, taskID string) ([]*models.AgentResult, error) {
	return nil, nil
}

type fakeIDs struct{ n int }

func (f *fakeIDs) GenerateTaskID() string        { return "task" }
func (f *fakeIDs) GenerateForkSuffix() string    { return "sfx" }
func (f *fakeIDs) GenerateAgentResultID() string { f.n++; return fmt.Sprintf("ar_%d", f.n) }

func strategy(t *testing.T) *models.Strategy {
	t.Helper()
	s, err := models.NewStrategy("Hash Map Optimization", models.CategoryDataStructures,
		"Replace nested loops:\n\n{{.Code}}\n\nReturn JSON.")
	require.NoError(t, err)
	return s
}

func assignment(t *testing.T) Assignment {
	return Assignment{
		Env:      models.Environment{Name: "main-0-abc", AgentID: "agent-0", Mode: models.ForkModeVirtual},
		Strategy: strategy(t),
	}
}

func task() *models.OptimizationTask {
	return models.NewOptimizationTask("t1", "for a in xs:\n  for b in ys:\n    if a == b: out.append(a)", "python", 1)
}

func TestAgent_OptimizeSuccess(t *testing.T) {
	searcher := &fakeSearcher{patterns: []*models.OptimizationPattern{
		{Name: "Set intersection", Description: "use a set", CodeExample: "set(a) & set(b)"},
	}}
	gen := &fakeGenerator{reply: "```json\n{\"optimized_code\": \"set(xs) & set(ys)\", \"explanation\": \"hash\", \"complexity_improvement\": \"O(n²) to O(n)\"}\n```"}
	results := &fakeResults{}
	a := New(searcher, gen, results, &fakeIDs{}, Config{SearchLimit: 3, QueryPrefixChars: 10}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	require.Equal(t, models.AgentStatusCompleted, res.Status)
	assert.Equal(t, 75.0, res.Improvement())
	assert.Equal(t, "set(xs) & set(ys)", *res.OptimizedCode)
	assert.Equal(t, "hash", res.Explanation)
	assert.Equal(t, "agent-0", res.AgentID)
	assert.Equal(t, "main-0-abc", res.ForkID)
	assert.Equal(t, "ar_1", res.ID)
	assert.True(t, res.Persisted)
	require.Len(t, results.created, 1)

	assert.Equal(t, "for a in x", searcher.query)
	assert.Equal(t, models.CategoryDataStructures, searcher.category)
	assert.Equal(t, 3, searcher.limit)

	assert.True(t, strings.HasPrefix(gen.prompt, "Context - Similar optimization patterns:\n1. Set intersection: use a set\n   Example: set(a) & set(b)\n\nReplace nested loops:"))
}

func TestAgent_NoPatternsNoContextBlock(t *testing.T) {
	gen := &fakeGenerator{reply: `{"improvement": "10%"}`}
	a := New(&fakeSearcher{}, gen, &fakeResults{}, &fakeIDs{}, Config{}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	assert.Equal(t, 10.0, res.Improvement())
	assert.True(t, strings.HasPrefix(gen.prompt, "Replace nested loops:"))
}

func TestAgent_SearchLimitIsCapped(t *testing.T) {
	searcher := &fakeSearcher{}
	a := New(searcher, &fakeGenerator{reply: `{"improvement": "1%"}`}, &fakeResults{}, &fakeIDs{}, Config{SearchLimit: 20}, nil)

	a.Optimize(context.Background(), task(), assignment(t))

	assert.Equal(t, 5, searcher.limit)
}

func TestAgent_NumericImprovementIsUnitless(t *testing.T) {
	results := &fakeResults{}
	gen := &fakeGenerator{reply: `{"optimized_code": "y", "improvement": 40}`}
	a := New(&fakeSearcher{}, gen, results, &fakeIDs{}, Config{}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	require.Equal(t, models.AgentStatusCompleted, res.Status)
	assert.Equal(t, 0.0, res.Improvement())
	require.Len(t, results.created, 1)
	assert.Equal(t, 0.0, results.created[0].Improvement())
}

func TestAgent_GenerationFailureIsPersistedAsFailed(t *testing.T) {
	results := &fakeResults{}
	gen := &fakeGenerator{err: domain.Wrap(domain.KindGeneration, "generate", errors.New("503"))}
	a := New(&fakeSearcher{}, gen, results, &fakeIDs{}, Config{}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	assert.Equal(t, models.AgentStatusFailed, res.Status)
	assert.Equal(t, domain.KindGeneration, res.ErrorKind)
	require.NotNil(t, res.ErrorMessage)
	assert.Contains(t, *res.ErrorMessage, "503")
	assert.Nil(t, res.OptimizedCode)
	require.Len(t, results.created, 1)
	assert.Equal(t, models.AgentStatusFailed, results.created[0].Status)
}

func TestAgent_UndecodableResponseFails(t *testing.T) {
	a := New(&fakeSearcher{}, &fakeGenerator{reply: "I cannot help with that."}, &fakeResults{}, &fakeIDs{}, Config{}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	assert.Equal(t, models.AgentStatusFailed, res.Status)
	assert.Equal(t, domain.KindGeneration, res.ErrorKind)
}

func TestAgent_WrappedListHasZeroImprovement(t *testing.T) {
	a := New(&fakeSearcher{}, &fakeGenerator{reply: `["x = 1"]`}, &fakeResults{}, &fakeIDs{}, Config{}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	assert.Equal(t, models.AgentStatusCompleted, res.Status)
	assert.Equal(t, 0.0, res.Improvement())
	assert.Equal(t, "Wrapped list result", res.Explanation)
}

func TestAgent_TimeoutFailsAgent(t *testing.T) {
	results := &fakeResults{}
	gen := &fakeGenerator{reply: `{"improvement": "10%"}`, delay: time.Second}
	a := New(&fakeSearcher{}, gen, results, &fakeIDs{}, Config{Timeout: 20 * time.Millisecond}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	assert.Equal(t, models.AgentStatusFailed, res.Status)
	assert.Equal(t, domain.KindGeneration, res.ErrorKind)
	assert.Len(t, results.created, 1, "failure record must be written after the deadline")
}

func TestAgent_PanicIsContained(t *testing.T) {
	results := &fakeResults{}
	a := New(&fakeSearcher{panics: true}, &fakeGenerator{}, results, &fakeIDs{}, Config{}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	require.NotNil(t, res)
	assert.Equal(t, models.AgentStatusFailed, res.Status)
	assert.Equal(t, domain.KindInternal, res.ErrorKind)
	assert.Len(t, results.created, 1)
}

func TestAgent_PersistenceFailureStillReportsResult(t *testing.T) {
	results := &fakeResults{err: errors.New("connection reset")}
	a := New(&fakeSearcher{}, &fakeGenerator{reply: `{"improvement": "2x"}`}, results, &fakeIDs{}, Config{}, nil)

	res := a.Optimize(context.Background(), task(), assignment(t))

	assert.Equal(t, models.AgentStatusCompleted, res.Status)
	assert.Equal(t, 100.0, res.Improvement())
	assert.False(t, res.Persisted)
}

func TestBuildContext(t *testing.T) {
	assert.Equal(t, "", BuildContext(nil))
	got := BuildContext([]*models.OptimizationPattern{
		{Name: "A", Description: "first", CodeExample: "a()"},
		{Description: "second"},
	})
	assert.Equal(t, "1. A: first\n   Example: a()\n2. Unknown: second\n   Example: N/A", got)
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "abc", prefix("abc", 5))
	assert.Equal(t, "ab", prefix("abc", 2))
	assert.Equal(t, "né", prefix("néé", 2))
}
