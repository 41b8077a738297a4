//go:build unit || !integration

package inmemory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
)

func pendingRun(t *testing.T, store *InMemoryRunStore, runID string) {
	t.Helper()
	ctx := context.Background()

	circuitID, err := store.CreateCircuit(ctx, models.Circuit{
		NumQubits: 1,
		NumClbits: 1,
		Gates: []models.Gate{
			{Name: models.GateX, Qubits: []int{0}},
			{Name: models.GateMeasure, Qubits: []int{0}, Clbits: []int{0}},
		},
	})
	require.NoError(t, err)

	require.NoError(t, store.CreateRunRequest(ctx, models.RunRequest{
		ID:        runID,
		UserID:    "alice",
		CircuitID: circuitID,
		BackendID: "sim_local",
		Shots:     100,
		Status:    models.RunStatePending,
	}))
}

func TestCompleteRunRequiresRunning(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRunStore()
	pendingRun(t, store, "run-1")

	// still PENDING; a terminal write would skip RUNNING
	err := store.CompleteRun(ctx, runstore.CompleteRunRequest{
		RunID:    "run-1",
		NewState: models.RunStateFailed,
		Result: models.RunResult{
			RunRequestID: "run-1",
			ErrorMessage: "never ran",
		},
	})
	assert.ErrorAs(t, err, &runstore.ErrInvalidRunState{})

	request, err := store.GetRunRequest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatePending, request.Status)

	_, err = store.GetRunResult(ctx, "run-1")
	assert.ErrorAs(t, err, &runstore.ErrResultNotFound{})
}

func TestCompleteRunAfterClaim(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryRunStore()
	pendingRun(t, store, "run-1")

	require.NoError(t, store.UpdateRunState(ctx, runstore.UpdateRunStateRequest{
		RunID:    "run-1",
		NewState: models.RunStateRunning,
		Condition: runstore.UpdateRunCondition{
			ExpectedStates: []models.RunStateType{models.RunStatePending},
		},
	}))

	require.NoError(t, store.CompleteRun(ctx, runstore.CompleteRunRequest{
		RunID:    "run-1",
		NewState: models.RunStateFailed,
		Result: models.RunResult{
			RunRequestID: "run-1",
			ErrorMessage: "backend rejected the circuit",
		},
	}))

	request, err := store.GetRunRequest(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, models.RunStateFailed, request.Status)

	result, err := store.GetRunResult(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, result.Success)
}
