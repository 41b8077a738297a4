package orchestrator

import (
	"context"
	"fmt"
	"time"
)

const DefaultQueueDepth = 256

type ErrQueueFull struct {
	Depth int
}

func NewErrQueueFull(depth int) ErrQueueFull {
	return ErrQueueFull{Depth: depth}
}

func (e ErrQueueFull) Error() string {
	return fmt.Sprintf("run queue is full at %d pending tasks", e.Depth)
}

// InMemoryBroker is a bounded FIFO queue of run tasks backed by a channel.
// Bounding the queue keeps a submission burst from holding an unbounded
// number of runs in memory; callers that see ErrQueueFull fail the run
// rather than block the API.
type InMemoryBroker struct {
	queue chan RunTask
}

func NewInMemoryBroker(depth int) *InMemoryBroker {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &InMemoryBroker{
		queue: make(chan RunTask, depth),
	}
}

func (b *InMemoryBroker) Enqueue(task RunTask) error {
	select {
	case b.queue <- task:
		return nil
	default:
		return NewErrQueueFull(cap(b.queue))
	}
}

func (b *InMemoryBroker) Dequeue(ctx context.Context, timeout time.Duration) (*RunTask, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task := <-b.queue:
		return &task, nil
	case <-timer.C:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Len returns the number of tasks waiting in the queue.
func (b *InMemoryBroker) Len() int {
	return len(b.queue)
}

var _ RunBroker = (*InMemoryBroker)(nil)
