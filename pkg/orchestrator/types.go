package orchestrator

import (
	"context"
	"time"
)

// RunTask names a run awaiting execution. Tasks carry only the run id; the
// executor re-reads the request from the store so a task can never act on
// stale data.
type RunTask struct {
	RunID string
}

// RunBroker hands submitted runs to the worker pool.
type RunBroker interface {
	// Enqueue adds a task without blocking. If the broker is at capacity it
	// returns ErrQueueFull and the task is not accepted.
	Enqueue(task RunTask) error

	// Dequeue blocks until a task is available, the timeout elapses, or the
	// context is cancelled. A nil task with a nil error means the timeout
	// elapsed with nothing to do.
	Dequeue(ctx context.Context, timeout time.Duration) (*RunTask, error)
}
