package runstore

import (
	"fmt"

	"github.com/qubi-project/qubi/pkg/models"
)

// ErrCircuitNotFound is returned when the circuit is not found
type ErrCircuitNotFound struct {
	CircuitID string
}

func NewErrCircuitNotFound(id string) ErrCircuitNotFound {
	return ErrCircuitNotFound{CircuitID: id}
}

func (e ErrCircuitNotFound) Error() string {
	return "circuit not found: " + e.CircuitID
}

// ErrRunNotFound is returned when the run request is not found
type ErrRunNotFound struct {
	RunID string
}

func NewErrRunNotFound(id string) ErrRunNotFound {
	return ErrRunNotFound{RunID: id}
}

func (e ErrRunNotFound) Error() string {
	return "run request not found: " + e.RunID
}

// ErrRunAlreadyExists is returned when a run request already exists
type ErrRunAlreadyExists struct {
	RunID string
}

func NewErrRunAlreadyExists(id string) ErrRunAlreadyExists {
	return ErrRunAlreadyExists{RunID: id}
}

func (e ErrRunAlreadyExists) Error() string {
	return "run request already exists: " + e.RunID
}

// ErrInvalidRunState is returned when a run request is in an unexpected state.
type ErrInvalidRunState struct {
	RunID    string
	Actual   models.RunStateType
	Expected []models.RunStateType
}

func NewErrInvalidRunState(id string, actual models.RunStateType, expected ...models.RunStateType) ErrInvalidRunState {
	return ErrInvalidRunState{RunID: id, Actual: actual, Expected: expected}
}

func (e ErrInvalidRunState) Error() string {
	if len(e.Expected) == 0 {
		return fmt.Sprintf("run %s is in unexpected state %s", e.RunID, e.Actual)
	}
	return fmt.Sprintf("run %s is in state %s but expected one of %s", e.RunID, e.Actual, e.Expected)
}

// ErrRunAlreadyTerminal is returned when a run request is already in a
// terminal state and cannot be updated.
type ErrRunAlreadyTerminal struct {
	RunID    string
	Actual   models.RunStateType
	NewState models.RunStateType
}

func NewErrRunAlreadyTerminal(id string, actual models.RunStateType, newState models.RunStateType) ErrRunAlreadyTerminal {
	return ErrRunAlreadyTerminal{RunID: id, Actual: actual, NewState: newState}
}

func (e ErrRunAlreadyTerminal) Error() string {
	return fmt.Sprintf("run %s is in terminal state %s and cannot transition to %s",
		e.RunID, e.Actual, e.NewState)
}

// ErrResultNotFound is returned when no result has been stored for a run.
type ErrResultNotFound struct {
	RunID string
}

func NewErrResultNotFound(id string) ErrResultNotFound {
	return ErrResultNotFound{RunID: id}
}

func (e ErrResultNotFound) Error() string {
	return "run result not found: " + e.RunID
}
