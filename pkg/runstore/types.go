package runstore

import (
	"context"

	"github.com/qubi-project/qubi/pkg/models"
)

// RunHistoryQuery selects terminal run results for a single user.
type RunHistoryQuery struct {
	UserID string `json:"user_id"`
	// Limit caps the number of results returned, newest first. Zero means
	// no limit.
	Limit int `json:"limit"`
}

// A Store persists circuits, run requests and run results.
//
// Ownership: the submission path creates circuits and run requests; the
// orchestrator is the only mutator of a request's status after creation and
// the only writer of results.
type Store interface {
	// HasCircuit returns true if a circuit with the given content hash is
	// already stored.
	HasCircuit(ctx context.Context, circuitID string) (bool, error)

	// GetCircuit returns the circuit stored under the given content hash, or
	// ErrCircuitNotFound.
	GetCircuit(ctx context.Context, circuitID string) (models.Circuit, error)

	// CreateCircuit stores a circuit under its content hash. The write is
	// idempotent: storing a circuit that already exists is a no-op, since the
	// content is a pure function of the id.
	CreateCircuit(ctx context.Context, circuit models.Circuit) (string, error)

	// CreateRunRequest persists a new run request. The request must be in
	// PENDING state and carry an id.
	CreateRunRequest(ctx context.Context, request models.RunRequest) error

	// GetRunRequest returns the run request with the given id, or
	// ErrRunNotFound.
	GetRunRequest(ctx context.Context, runID string) (models.RunRequest, error)

	// GetInProgressRuns returns all run requests that have not reached a
	// terminal state.
	GetInProgressRuns(ctx context.Context) ([]models.RunRequest, error)

	// UpdateRunState updates the status of a run request as a single atomic
	// update, subject to the request's condition.
	UpdateRunState(ctx context.Context, request UpdateRunStateRequest) error

	// CompleteRun writes the terminal result and the terminal status in one
	// atomic operation, so a reader that observes the terminal status is
	// guaranteed to find the result. A second completion for the same run
	// fails with ErrRunAlreadyTerminal.
	CompleteRun(ctx context.Context, request CompleteRunRequest) error

	// GetRunResult returns the result stored for the given run id, or
	// ErrResultNotFound.
	GetRunResult(ctx context.Context, runID string) (models.RunResult, error)

	// GetRunHistory returns terminal results for a user ordered by creation
	// time descending.
	GetRunHistory(ctx context.Context, query RunHistoryQuery) ([]models.RunResult, error)

	// Close releases any resources held by the store.
	Close(ctx context.Context) error
}

type UpdateRunStateRequest struct {
	RunID     string
	Condition UpdateRunCondition
	NewState  models.RunStateType
	Comment   string
}

type UpdateRunCondition struct {
	ExpectedStates []models.RunStateType
}

// Validate checks if the condition matches the given run request.
func (condition UpdateRunCondition) Validate(request models.RunRequest) error {
	if len(condition.ExpectedStates) == 0 {
		return nil
	}
	for _, s := range condition.ExpectedStates {
		if s == request.Status {
			return nil
		}
	}
	return NewErrInvalidRunState(request.ID, request.Status, condition.ExpectedStates...)
}

type CompleteRunRequest struct {
	RunID    string
	NewState models.RunStateType
	Result   models.RunResult
}
