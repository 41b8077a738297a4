package apimodels

import (
	"errors"

	"github.com/hashicorp/go-multierror"

	"github.com/qubi-project/qubi/pkg/lib/validate"
	"github.com/qubi-project/qubi/pkg/models"
)

// PutRunRequest is the submission payload: a circuit, the quantum computer
// to run it on and the number of shots.
type PutRunRequest struct {
	UserID          string          `json:"user_id"`
	Circuit         *models.Circuit `json:"circuit"`
	QuantumComputer string          `json:"quantum_computer"`
	Shots           int             `json:"shots"`
}

// Normalize is used to canonicalize fields in the PutRunRequest.
func (r *PutRunRequest) Normalize() {
	if r.Circuit != nil {
		r.Circuit.Normalize()
	}
}

// Validate is used to validate fields in the PutRunRequest.
func (r *PutRunRequest) Validate() error {
	mErr := new(multierror.Error)
	mErr = multierror.Append(mErr,
		validate.NotBlank(r.UserID, "user_id is required"),
		validate.NotBlank(r.QuantumComputer, "quantum_computer is required"),
		validate.IsGreaterThanZero(r.Shots, "shots must be greater than zero"),
	)
	if r.Circuit == nil {
		mErr = multierror.Append(mErr, errors.New("circuit is required"))
	} else if err := r.Circuit.Validate(); err != nil {
		mErr = multierror.Append(mErr, err)
	}
	return mErr.ErrorOrNil()
}

type PutRunResponse struct {
	RunRequestID string `json:"run_request_id"`
}

// GetRunResponse is returned while a run is still in flight (202) and when
// it has finished (200). Only one of the two shapes is populated at a time.
type GetRunResponse struct {
	Status string `json:"status"`

	// set once the run has a terminal result
	RunResult *models.RunResult `json:"run_result,omitempty"`

	// set while the run is still waiting or executing
	QuantumComputer string `json:"quantum_computer,omitempty"`
	Shots           int    `json:"shots,omitempty"`
}

type ListRunHistoryRequest struct {
	UserID string `query:"user_id"`
	Limit  int    `query:"limit"`
}

func (r *ListRunHistoryRequest) Validate() error {
	mErr := new(multierror.Error)
	mErr = multierror.Append(mErr,
		validate.NotBlank(r.UserID, "user_id is required"),
		validate.IsGreaterOrEqualToZero(r.Limit, "limit cannot be negative"),
	)
	return mErr.ErrorOrNil()
}

type ListRunHistoryResponse struct {
	History []models.RunResult `json:"history"`
}
