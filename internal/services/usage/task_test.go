package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/signalwork-ai/agent-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskAwaitReturnsResult(t *testing.T) {
	task := NewTask()
	stats := models.NewUsageStatistics("run_1")

	go task.Complete(stats)

	result, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Same(t, stats, result)
}

func TestTaskAwaitReturnsFailure(t *testing.T) {
	task := NewTask()
	failure := errors.New("tokenizer unavailable")

	task.Fail(failure)

	result, err := task.Await(context.Background())
	assert.Nil(t, result)
	assert.ErrorIs(t, err, failure)
}

func TestTaskFirstResolutionWins(t *testing.T) {
	task := NewTask()

	task.Complete("first")
	task.Fail(errors.New("too late"))
	task.Complete("also too late")

	result, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", result)
}

func TestTaskAwaitHonorsContext(t *testing.T) {
	task := NewTask() // never resolved

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := task.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTaskAwaitIsRepeatable(t *testing.T) {
	task := NewTask()
	task.Complete(7)

	for range 3 {
		result, err := task.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, result)
	}
}

func TestGoResolvesFromFunction(t *testing.T) {
	task := Go(func() (any, error) {
		return "done", nil
	})

	result, err := task.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "done", result)

	failed := Go(func() (any, error) {
		return nil, errors.New("boom")
	})

	_, err = failed.Await(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestCollectorAccumulatesSteps(t *testing.T) {
	collector := NewCollector("run_9")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.AddStep(100, 20)
		}()
	}
	wg.Wait()

	stats := collector.Snapshot()
	assert.Equal(t, 1000, stats.PromptTokens)
	assert.Equal(t, 200, stats.CompletionTokens)
	assert.Equal(t, 1200, stats.TotalTokens)
	assert.Equal(t, 10, stats.StepCount)
	assert.Equal(t, "run_9", stats.RunID)
	assert.Equal(t, models.MessageTypeUsageStatistics, stats.MessageType)
}

func TestCollectorSnapshotIsIsolated(t *testing.T) {
	collector := NewCollector("run_1")
	collector.AddStep(5, 5)

	snapshot := collector.Snapshot()
	collector.AddStep(5, 5)

	assert.Equal(t, 1, snapshot.StepCount)
	assert.Equal(t, 2, collector.Snapshot().StepCount)
}
