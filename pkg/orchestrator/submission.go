package orchestrator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
	"github.com/qubi-project/qubi/pkg/util/idgen"
)

type SubmissionParams struct {
	Store  runstore.Store
	Broker RunBroker
}

// Submission is the entry point of the run pipeline: it persists the circuit
// and the run request, then queues the run for the worker pool.
type Submission struct {
	store  runstore.Store
	broker RunBroker
}

func NewSubmission(params SubmissionParams) *Submission {
	return &Submission{
		store:  params.Store,
		broker: params.Broker,
	}
}

type SubmitRunRequest struct {
	UserID    string
	Circuit   models.Circuit
	BackendID string
	Shots     int
}

type SubmitRunResponse struct {
	RunID     string
	CircuitID string
}

// SubmitRun accepts a run. The circuit write is idempotent, so resubmitting
// the same circuit reuses the stored copy. A run that cannot be queued is
// recorded as FAILED rather than rejected, so the caller can still poll it;
// the submission itself only fails when the store does.
func (s *Submission) SubmitRun(ctx context.Context, request SubmitRunRequest) (*SubmitRunResponse, error) {
	circuitID, err := models.HashCircuit(request.Circuit)
	if err != nil {
		return nil, err
	}

	// content-addressed, so a known hash means the exact bytes are stored
	exists, err := s.store.HasCircuit(ctx, circuitID)
	if err != nil {
		return nil, err
	}
	if !exists {
		if circuitID, err = s.store.CreateCircuit(ctx, request.Circuit); err != nil {
			return nil, err
		}
	}

	runID := idgen.NewRunID()
	err = s.store.CreateRunRequest(ctx, models.RunRequest{
		ID:        runID,
		UserID:    request.UserID,
		CircuitID: circuitID,
		BackendID: request.BackendID,
		Shots:     request.Shots,
		Status:    models.RunStatePending,
	})
	if err != nil {
		return nil, err
	}

	if err = s.broker.Enqueue(RunTask{RunID: runID}); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str("RunID", runID).
			Msg("failed to queue run, recording failure")

		// walk the run through RUNNING so its state history stays a prefix
		// of PENDING -> RUNNING -> FAILED
		claimErr := s.store.UpdateRunState(ctx, runstore.UpdateRunStateRequest{
			RunID:    runID,
			NewState: models.RunStateRunning,
			Condition: runstore.UpdateRunCondition{
				ExpectedStates: []models.RunStateType{models.RunStatePending},
			},
			Comment: "run could not be queued",
		})
		if claimErr != nil {
			return nil, claimErr
		}

		completeErr := s.store.CompleteRun(ctx, runstore.CompleteRunRequest{
			RunID:    runID,
			NewState: models.RunStateFailed,
			Result: models.RunResult{
				RunRequestID: runID,
				UserID:       request.UserID,
				CircuitID:    circuitID,
				Success:      false,
				BackendName:  request.BackendID,
				ErrorMessage: err.Error(),
			},
		})
		if completeErr != nil {
			return nil, completeErr
		}
	}

	return &SubmitRunResponse{
		RunID:     runID,
		CircuitID: circuitID,
	}, nil
}
