package usage

import (
	"context"
	"sync"

	"github.com/signalwork-ai/agent-relay/internal/models"
)

// Task is a single-resolution future carrying a run's usage outcome. The run
// executor resolves it once the provider stream ends; the SSE layer awaits it
// after the last chunk. The result is deliberately untyped: the consumer
// type-checks at the boundary, so a producer handing over the wrong record
// type is caught at runtime instead of silently streamed.
type Task struct {
	done   chan struct{}
	once   sync.Once
	result any
	err    error
}

// NewTask creates an unresolved task.
func NewTask() *Task {
	return &Task{done: make(chan struct{})}
}

// Complete resolves the task with a result. The first resolution wins; later
// calls are no-ops.
func (t *Task) Complete(result any) {
	t.once.Do(func() {
		t.result = result
		close(t.done)
	})
}

// Fail resolves the task with an error. The first resolution wins; later
// calls are no-ops.
func (t *Task) Fail(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}

// Await blocks until the task resolves or ctx ends. A ctx error means the
// caller gave up waiting; the task itself may still resolve later.
func (t *Task) Await(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
		return t.result, t.err
	}
}

// Go runs fn on its own goroutine and resolves the returned task with fn's
// outcome.
func Go(fn func() (any, error)) *Task {
	t := NewTask()
	go func() {
		result, err := fn()
		if err != nil {
			t.Fail(err)
			return
		}
		t.Complete(result)
	}()
	return t
}

// Collector accumulates per-step token counts while the provider stream is
// still running. Safe for concurrent use.
type Collector struct {
	mu    sync.Mutex
	stats *models.UsageStatistics
}

// NewCollector creates a collector for one run.
func NewCollector(runID string) *Collector {
	return &Collector{stats: models.NewUsageStatistics(runID)}
}

// AddStep folds one generation step's token counts into the aggregate.
func (c *Collector) AddStep(promptTokens, completionTokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Add(promptTokens, completionTokens)
}

// Snapshot returns a copy of the aggregate so far.
func (c *Collector) Snapshot() *models.UsageStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot := *c.stats
	return &snapshot
}
