package usage

import (
	"context"
	"sync"

	"github.com/signalwork-ai/agent-relay/internal/models"
	fiberlog "github.com/gofiber/fiber/v2/log"
)

// Worker records usage rows off the request path so a slow database never
// stalls frame delivery.
type Worker struct {
	service  *Service
	tasks    chan RecordTask
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

// RecordTask represents a usage recording task
type RecordTask struct {
	Params    models.RecordUsageParams
	RequestID string
}

// NewWorker creates a new usage recording worker with the specified pool size
func NewWorker(service *Service, poolSize, bufferSize int) *Worker {
	w := &Worker{
		service: service,
		tasks:   make(chan RecordTask, bufferSize),
		stopped: make(chan struct{}),
	}

	for range poolSize {
		w.wg.Add(1)
		go w.run()
	}

	return w
}

// Submit enqueues a usage recording task. Submission never blocks: when the
// buffer is full the row is dropped with a warning, trading durability for
// stream latency.
func (w *Worker) Submit(params models.RecordUsageParams, requestID string) {
	select {
	case <-w.stopped:
		fiberlog.Warnf("[%s] Usage worker stopped, cannot submit recording task", requestID)
		return
	case w.tasks <- RecordTask{Params: params, RequestID: requestID}:
	default:
		fiberlog.Warnf("[%s] Usage recording buffer full, dropping task", requestID)
	}
}

// run processes tasks from the queue until it is closed and empty.
func (w *Worker) run() {
	defer w.wg.Done()

	for task := range w.tasks {
		if _, err := w.service.RecordUsage(context.Background(), task.Params); err != nil {
			fiberlog.Errorf("[%s] Failed to record run usage: %v", task.RequestID, err)
		}
	}
}

// Stop rejects further submissions, drains buffered tasks and waits for the
// pool to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopped)
		close(w.tasks)
		w.wg.Wait()
	})
}
