package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/backend"
	"github.com/qubi-project/qubi/pkg/credentials"
	"github.com/qubi-project/qubi/pkg/logger"
	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
)

type RunExecutorParams struct {
	Store       runstore.Store
	Backends    backend.BackendProvider
	Credentials credentials.Source
	Clock       clock.Clock
}

// RunExecutor drives a single run from PENDING to a terminal state: it
// claims the run, resolves the backend and credentials, executes the
// circuit, and records the outcome. Every failure after the claim ends in a
// FAILED result so the run can never be left RUNNING by a returned error.
type RunExecutor struct {
	store       runstore.Store
	backends    backend.BackendProvider
	credentials credentials.Source
	clock       clock.Clock
}

func NewRunExecutor(params RunExecutorParams) *RunExecutor {
	if params.Clock == nil {
		params.Clock = clock.New()
	}
	return &RunExecutor{
		store:       params.Store,
		backends:    params.Backends,
		credentials: params.Credentials,
		clock:       params.Clock,
	}
}

func (e *RunExecutor) Process(ctx context.Context, task RunTask) error {
	ctx = logger.ContextWithRunIDLogger(ctx, task.RunID)

	request, err := e.store.GetRunRequest(ctx, task.RunID)
	if err != nil {
		return err
	}
	if request.IsTerminal() {
		log.Ctx(ctx).Debug().
			Str("Status", request.Status.String()).
			Msg("run already terminal, nothing to do")
		return nil
	}

	// claim the run; losing the claim means another worker has it
	err = e.store.UpdateRunState(ctx, runstore.UpdateRunStateRequest{
		RunID: task.RunID,
		Condition: runstore.UpdateRunCondition{
			ExpectedStates: []models.RunStateType{models.RunStatePending},
		},
		NewState: models.RunStateRunning,
		Comment:  "claimed by worker",
	})
	if err != nil {
		var invalidState runstore.ErrInvalidRunState
		var alreadyTerminal runstore.ErrRunAlreadyTerminal
		if errors.As(err, &invalidState) || errors.As(err, &alreadyTerminal) {
			log.Ctx(ctx).Debug().Err(err).Msg("run claimed elsewhere, skipping")
			return nil
		}
		return err
	}

	started := e.clock.Now()
	result, execErr := e.execute(ctx, request)
	elapsed := e.clock.Since(started).Seconds()

	if execErr != nil {
		return e.fail(ctx, request, elapsed, execErr)
	}
	return e.complete(ctx, request, elapsed, result)
}

func (e *RunExecutor) execute(ctx context.Context, request models.RunRequest) (*backend.UnifiedResult, error) {
	circuit, err := e.store.GetCircuit(ctx, request.CircuitID)
	if err != nil {
		return nil, err
	}

	family, err := backend.FamilyForBackendID(request.BackendID)
	if err != nil {
		return nil, err
	}

	executor, err := e.backends.Get(ctx, family)
	if err != nil {
		return nil, fmt.Errorf("no backend installed for family %s: %w", family, err)
	}

	var creds credentials.Credentials
	if family != backend.FamilySimulator {
		creds, err = e.credentials.Get(ctx, request.UserID, family)
		if err != nil {
			return nil, err
		}
	}

	return executor.Execute(ctx, &backend.ExecuteRequest{
		RunID:       request.ID,
		Circuit:     circuit,
		BackendID:   request.BackendID,
		Shots:       request.Shots,
		Credentials: creds,
	})
}

func (e *RunExecutor) complete(
	ctx context.Context, request models.RunRequest, elapsed float64, result *backend.UnifiedResult) error {
	err := e.store.CompleteRun(ctx, runstore.CompleteRunRequest{
		RunID:    request.ID,
		NewState: models.RunStateCompleted,
		Result: models.RunResult{
			RunRequestID:       request.ID,
			UserID:             request.UserID,
			CircuitID:          request.CircuitID,
			Success:            true,
			BackendName:        result.BackendName,
			Counts:             result.Counts,
			Probabilities:      result.Probabilities,
			Shots:              result.Shots,
			ElapsedTimeSeconds: elapsed,
		},
	})
	if err != nil {
		return e.tolerateTerminal(ctx, err)
	}

	log.Ctx(ctx).Info().
		Str("Backend", result.BackendName).
		Int("Shots", result.Shots).
		Float64("ElapsedSeconds", elapsed).
		Msg("run completed")
	return nil
}

func (e *RunExecutor) fail(ctx context.Context, request models.RunRequest, elapsed float64, cause error) error {
	err := e.store.CompleteRun(ctx, runstore.CompleteRunRequest{
		RunID:    request.ID,
		NewState: models.RunStateFailed,
		Result: models.RunResult{
			RunRequestID:       request.ID,
			UserID:             request.UserID,
			CircuitID:          request.CircuitID,
			Success:            false,
			BackendName:        request.BackendID,
			ElapsedTimeSeconds: elapsed,
			ErrorMessage:       cause.Error(),
		},
	})
	if err != nil {
		return e.tolerateTerminal(ctx, err)
	}

	log.Ctx(ctx).Warn().Err(cause).Msg("run failed")
	return nil
}

// tolerateTerminal swallows the race where the run reached a terminal state
// between our claim and our write. The first terminal write wins.
func (e *RunExecutor) tolerateTerminal(ctx context.Context, err error) error {
	var alreadyTerminal runstore.ErrRunAlreadyTerminal
	if errors.As(err, &alreadyTerminal) {
		log.Ctx(ctx).Debug().Err(err).Msg("run completed elsewhere, keeping first result")
		return nil
	}
	return err
}
