package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/qubi-project/qubi/pkg/lib/backoff"
)

const (
	WorkerStatusInit     = "Initialized"
	WorkerStatusStarting = "Starting"
	WorkerStatusRunning  = "Running"
	WorkerStatusStopping = "Stopping"
	WorkerStatusStopped  = "Stopped"

	DefaultDequeueTimeout = 5 * time.Second
)

type WorkerParams struct {
	// Executor processes a dequeued run to a terminal state.
	Executor *RunExecutor
	// Broker is the queue of runs awaiting execution.
	Broker RunBroker
	// DequeueTimeout is the maximum duration for dequeueing a task.
	DequeueTimeout time.Duration
	// DequeueFailureBackoff defines the backoff strategy when dequeueing fails.
	DequeueFailureBackoff backoff.Backoff
}

// Worker is a long-running process that dequeues run tasks and hands them to
// the executor one at a time. A node runs multiple workers in parallel to
// overlap waiting on slow remote backends.
type Worker struct {
	executor              *RunExecutor
	broker                RunBroker
	dequeueTimeout        time.Duration
	dequeueFailureBackoff backoff.Backoff

	status       atomic.String
	startOnce    sync.Once
	shutdownOnce sync.Once
}

func NewWorker(params WorkerParams) *Worker {
	if params.DequeueTimeout == 0 {
		params.DequeueTimeout = DefaultDequeueTimeout
	}
	if params.DequeueFailureBackoff == nil {
		params.DequeueFailureBackoff = backoff.NewExponential(100*time.Millisecond, 10*time.Second)
	}
	return &Worker{
		executor:              params.Executor,
		broker:                params.Broker,
		dequeueTimeout:        params.DequeueTimeout,
		dequeueFailureBackoff: params.DequeueFailureBackoff,
		status:                *atomic.NewString(WorkerStatusInit),
	}
}

// Start triggers the worker to start processing runs. The worker can only
// start once, and subsequent calls to Start will be ignored.
func (w *Worker) Start(ctx context.Context) {
	w.startOnce.Do(func() {
		w.setStatus(WorkerStatusStarting)
		go w.run(ctx)
	})
}

// Stop triggers the worker to stop after the in-flight run is processed.
func (w *Worker) Stop() {
	w.shutdownOnce.Do(func() {
		w.setStatus(WorkerStatusStopping)
	})
}

// Status returns the current status of the worker.
func (w *Worker) Status() string {
	return w.status.Load()
}

func (w *Worker) run(ctx context.Context) {
	defer w.setStatus(WorkerStatusStopped)
	w.setStatus(WorkerStatusRunning)

	var dequeueFailures int
	for !w.isShuttingDown(ctx) {
		task, err := w.dequeueTask(ctx)
		if err != nil {
			dequeueFailures++
			w.dequeueFailureBackoff.Backoff(ctx, dequeueFailures)
			continue
		}
		dequeueFailures = 0

		if task == nil {
			continue
		}

		if err := w.executor.Process(ctx, *task); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str("RunID", task.RunID).
				Msg("failed to process run")
		}
	}
}

func (w *Worker) dequeueTask(ctx context.Context) (*RunTask, error) {
	task, err := w.broker.Dequeue(ctx, w.dequeueTimeout)
	if err != nil && ctx.Err() == nil {
		log.Ctx(ctx).Error().Err(err).Msg("failed to dequeue run task")
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, nil
	}
	return task, nil
}

func (w *Worker) isShuttingDown(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	status := w.status.Load()
	return status == WorkerStatusStopping || status == WorkerStatusStopped
}

func (w *Worker) setStatus(status string) {
	w.status.Store(status)
}
