package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/lib/validate"
	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
)

// DefaultHousekeepingWorkers is the default number of parallel workers for
// housekeeping tasks.
const DefaultHousekeepingWorkers = 3

type HousekeepingParams struct {
	Store runstore.Store
	// Interval is the interval at which housekeeping tasks are run.
	Interval time.Duration
	// Workers is the maximum number of parallel workers for housekeeping tasks.
	Workers int
	// RunTimeout is how long a run may stay RUNNING before it is failed. A
	// generous value is expected since hardware queues can hold jobs for a
	// long time.
	RunTimeout time.Duration
	// Clock is the clock used for time-based operations.
	// If not provided, the system clock is used.
	Clock clock.Clock
}

// Housekeeping periodically sweeps in-progress runs and fails the ones that
// have been RUNNING longer than the timeout, so a crashed worker or a hung
// vendor API cannot leave a run in flight forever.
type Housekeeping struct {
	store      runstore.Store
	interval   time.Duration
	runTimeout time.Duration

	workersSem chan struct{}
	waitGroup  sync.WaitGroup
	startOnce  sync.Once
	stopOnce   sync.Once
	stopChan   chan struct{}
	running    bool
	clock      clock.Clock
}

func NewHousekeeping(params HousekeepingParams) (*Housekeeping, error) {
	if params.Workers == 0 {
		params.Workers = DefaultHousekeepingWorkers
	}
	if params.Clock == nil {
		params.Clock = clock.New()
	}

	err := multierror.Append(nil,
		validate.NotNil(params.Store, "run store cannot be nil"),
		validate.IsGreaterThanZero(params.Interval, "interval must be greater than zero"),
		validate.IsGreaterThanZero(params.Workers, "workers must be greater than zero"),
		validate.IsGreaterThanZero(params.RunTimeout, "run timeout must be greater than zero"),
	).ErrorOrNil()
	if err != nil {
		return nil, fmt.Errorf("error validating housekeeping params: %w", err)
	}

	return &Housekeeping{
		store:      params.Store,
		interval:   params.Interval,
		runTimeout: params.RunTimeout,
		workersSem: make(chan struct{}, params.Workers),
		stopChan:   make(chan struct{}),
		clock:      params.Clock,
	}, nil
}

// IsRunning returns true if the housekeeping task is running.
func (h *Housekeeping) IsRunning() bool {
	return h.running
}

// Start starts the housekeeping task.
func (h *Housekeeping) Start(ctx context.Context) {
	h.startOnce.Do(func() {
		go h.runHousekeepingTasks(ctx)
	})
}

// Stop stops the housekeeping task and waits for inflight sweeps to finish,
// or until the context is done.
func (h *Housekeeping) Stop(ctx context.Context) {
	h.stopOnce.Do(func() {
		close(h.stopChan)

		waitGroupDone := make(chan struct{})
		go func() {
			h.waitGroup.Wait()
			close(waitGroupDone)
		}()

		select {
		case <-waitGroupDone:
		case <-ctx.Done():
		}
	})
}

func (h *Housekeeping) runHousekeepingTasks(ctx context.Context) {
	h.running = true
	defer func() { h.running = false }()
	ticker := h.clock.Ticker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.sweepStuckRuns(ctx)
		case <-ctx.Done():
			log.Ctx(ctx).Debug().Msg("Context cancelled, stopping housekeeping task")
			return
		case <-h.stopChan:
			log.Ctx(ctx).Debug().Msg("Stop channel closed, stopping housekeeping task")
			return
		}
	}
}

func (h *Housekeeping) sweepStuckRuns(ctx context.Context) {
	inProgress, err := h.store.GetInProgressRuns(ctx)
	if err != nil {
		log.Ctx(ctx).Err(err).Msg("failed to get in-progress runs")
		return
	}

	now := h.clock.Now().UTC()
	for i := range inProgress {
		request := inProgress[i]
		if request.Status != models.RunStateRunning {
			continue
		}
		if now.Sub(request.UpdatedAt) < h.runTimeout {
			continue
		}

		select {
		case h.workersSem <- struct{}{}:
		case <-ctx.Done():
			return
		case <-h.stopChan:
			return
		}

		h.waitGroup.Add(1)
		go func() {
			defer h.waitGroup.Done()
			defer func() { <-h.workersSem }()
			h.failStuckRun(ctx, request)
		}()
	}
}

func (h *Housekeeping) failStuckRun(ctx context.Context, request models.RunRequest) {
	err := h.store.CompleteRun(ctx, runstore.CompleteRunRequest{
		RunID:    request.ID,
		NewState: models.RunStateFailed,
		Result: models.RunResult{
			RunRequestID: request.ID,
			UserID:       request.UserID,
			CircuitID:    request.CircuitID,
			Success:      false,
			BackendName:  request.BackendID,
			ErrorMessage: fmt.Sprintf("run timed out after %s in RUNNING state", h.runTimeout),
		},
	})
	if err != nil {
		log.Ctx(ctx).Err(err).
			Str("RunID", request.ID).
			Msg("failed to time out stuck run")
		return
	}

	log.Ctx(ctx).Warn().
		Str("RunID", request.ID).
		Dur("Timeout", h.runTimeout).
		Msg("timed out stuck run")
}
