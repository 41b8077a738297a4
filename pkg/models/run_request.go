package models

import (
	"errors"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/qubi-project/qubi/pkg/lib/validate"
)

// RunRequest tracks the lifecycle of one submission. It is created by the
// submission endpoint in PENDING state and mutated only by the orchestrator
// afterwards. It is never deleted.
type RunRequest struct {
	// ID is the opaque identifier returned to the caller at submission time
	// and used as the polling key.
	ID string `json:"id"`

	UserID    string `json:"user_id"`
	CircuitID string `json:"circuit_id"`

	// BackendID is the backend the caller asked for, e.g. "sim" or
	// "ionq_simulator". The result may record a different resolved backend.
	BackendID string `json:"backend_id"`

	Shots  int          `json:"shots"`
	Status RunStateType `json:"status"`

	// CreatedAt is set once at creation and never changes.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt tracks the time of the last status transition.
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the request is complete enough to persist.
func (r *RunRequest) Validate() error {
	mErr := new(multierror.Error)

	if r.ID == "" {
		mErr = multierror.Append(mErr, errors.New("run request is missing an id"))
	}
	if r.UserID == "" {
		mErr = multierror.Append(mErr, errors.New("run request is missing a user id"))
	}
	if r.CircuitID == "" {
		mErr = multierror.Append(mErr, errors.New("run request is missing a circuit id"))
	}
	if r.BackendID == "" {
		mErr = multierror.Append(mErr, errors.New("run request is missing a backend id"))
	}
	if err := validate.IsGreaterThanZero(r.Shots, "shots must be greater than zero"); err != nil {
		mErr = multierror.Append(mErr, err)
	}

	return mErr.ErrorOrNil()
}

// IsTerminal returns true once the request reached COMPLETED or FAILED.
func (r *RunRequest) IsTerminal() bool {
	return r.Status.IsTerminal()
}
