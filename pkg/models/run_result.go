package models

import (
	"fmt"
	"math"
	"time"

	"github.com/hashicorp/go-multierror"
)

// probabilityTolerance bounds the acceptable drift between a stored
// probability and count/shots.
const probabilityTolerance = 1e-9

// RunResult is the terminal outcome of a run, stored under the same id as its
// RunRequest. It is written exactly once and never mutated.
type RunResult struct {
	RunRequestID string `json:"run_request_id"`
	UserID       string `json:"user_id"`
	CircuitID    string `json:"circuit_id"`

	Success bool `json:"success"`

	// BackendName is the concrete backend that executed the run, which may
	// differ from the requested backend id (e.g. least-busy selection).
	BackendName string `json:"backend_name,omitempty"`

	// Counts maps measured bitstrings to occurrence counts. Keys use the
	// canonical binary encoding regardless of which provider produced them.
	Counts map[string]int `json:"counts,omitempty"`

	// Probabilities maps the same bitstrings to count/shots.
	Probabilities map[string]float64 `json:"probabilities,omitempty"`

	Shots int `json:"shots"`

	// ElapsedTimeSeconds is wall-clock time spent in execution.
	ElapsedTimeSeconds float64 `json:"elapsed_time_s"`

	// ErrorMessage describes what failed. Only set when Success is false.
	ErrorMessage string `json:"error_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate enforces the result invariants: successful results carry a
// histogram whose counts sum to shots and whose probabilities match; failed
// results carry an error message instead.
func (r *RunResult) Validate() error {
	mErr := new(multierror.Error)

	if r.RunRequestID == "" {
		mErr = multierror.Append(mErr, fmt.Errorf("run result is missing a run request id"))
	}

	if !r.Success {
		if r.ErrorMessage == "" {
			mErr = multierror.Append(mErr, fmt.Errorf("failed run result is missing an error message"))
		}
		return mErr.ErrorOrNil()
	}

	total := 0
	for _, count := range r.Counts {
		total += count
	}
	if total != r.Shots {
		mErr = multierror.Append(mErr, fmt.Errorf(
			"counts sum to %d but the run used %d shots", total, r.Shots))
	}

	for state, count := range r.Counts {
		p, ok := r.Probabilities[state]
		if !ok {
			mErr = multierror.Append(mErr, fmt.Errorf("state %q has a count but no probability", state))
			continue
		}
		expected := float64(count) / float64(r.Shots)
		if math.Abs(p-expected) > probabilityTolerance {
			mErr = multierror.Append(mErr, fmt.Errorf(
				"state %q probability %v does not match count %d over %d shots", state, p, count, r.Shots))
		}
	}

	return mErr.ErrorOrNil()
}
