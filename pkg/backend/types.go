package backend

import (
	"context"

	"github.com/qubi-project/qubi/pkg/credentials"
	"github.com/qubi-project/qubi/pkg/lib/provider"
	"github.com/qubi-project/qubi/pkg/models"
)

// Backend families. A family is a class of quantum computers reachable
// through one vendor surface; concrete backend ids (ionq_simulator,
// ibm_brisbane, ...) are resolved within a family.
const (
	FamilySimulator = "simulator"
	FamilyIonQ      = "ionq"
	FamilyIBM       = "ibm"
)

// ExecuteRequest carries everything a backend needs to run a circuit once.
// Credentials are resolved by the caller; a backend must not read secrets
// from its environment.
type ExecuteRequest struct {
	RunID       string
	Circuit     models.Circuit
	BackendID   string
	Shots       int
	Credentials credentials.Credentials
}

// UnifiedResult is the family-independent execution outcome. Counts and
// Probabilities are keyed by classical bitstring, zero-padded to the
// circuit's classical register width, clbit 0 rightmost.
type UnifiedResult struct {
	BackendName   string
	Shots         int
	NumQubits     int
	Counts        map[string]int
	Probabilities map[string]float64
}

// Backend executes circuits against one family of quantum computers.
type Backend interface {
	provider.Providable

	// Execute runs the circuit and blocks until a terminal outcome. The
	// returned result always has both counts and probabilities populated
	// and normalized.
	Execute(ctx context.Context, request *ExecuteRequest) (*UnifiedResult, error)
}

// BackendProvider maps a family name to an installed Backend.
type BackendProvider = provider.Provider[Backend]

func NewMappedBackendProvider(backends map[string]Backend) BackendProvider {
	return provider.NewMappedProvider(backends)
}
