//go:build unit || !integration

package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore/inmemory"
)

func xCircuit() models.Circuit {
	return models.Circuit{
		NumQubits: 1,
		NumClbits: 1,
		Gates: []models.Gate{
			{Name: models.GateX, Qubits: []int{0}},
			{Name: models.GateMeasure, Qubits: []int{0}, Clbits: []int{0}},
		},
	}
}

func TestSubmitRun(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewInMemoryRunStore()
	broker := NewInMemoryBroker(4)
	submission := NewSubmission(SubmissionParams{Store: store, Broker: broker})

	resp, err := submission.SubmitRun(ctx, SubmitRunRequest{
		UserID:    "alice",
		Circuit:   xCircuit(),
		BackendID: "sim_local",
		Shots:     100,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RunID)

	request, err := store.GetRunRequest(ctx, resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatePending, request.Status)
	assert.Equal(t, resp.CircuitID, request.CircuitID)
	assert.Equal(t, 1, broker.Len())
}

func TestSubmitRunDeduplicatesCircuits(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewInMemoryRunStore()
	submission := NewSubmission(SubmissionParams{Store: store, Broker: NewInMemoryBroker(8)})

	var circuitID string
	for i := 0; i < 3; i++ {
		resp, err := submission.SubmitRun(ctx, SubmitRunRequest{
			UserID:    "alice",
			Circuit:   xCircuit(),
			BackendID: "sim_local",
			Shots:     100,
		})
		require.NoError(t, err)
		if circuitID == "" {
			circuitID = resp.CircuitID
		}
		assert.Equal(t, circuitID, resp.CircuitID)
	}

	// three runs, one stored circuit
	assert.Equal(t, 1, store.CircuitWriteCount())
}

func TestSubmitRunQueueFull(t *testing.T) {
	ctx := context.Background()
	store := inmemory.NewInMemoryRunStore()
	broker := NewInMemoryBroker(1)
	submission := NewSubmission(SubmissionParams{Store: store, Broker: broker})

	submit := func() *SubmitRunResponse {
		resp, err := submission.SubmitRun(ctx, SubmitRunRequest{
			UserID:    "alice",
			Circuit:   xCircuit(),
			BackendID: "sim_local",
			Shots:     100,
		})
		require.NoError(t, err)
		return resp
	}

	submit()
	overflow := submit()

	// the overflowing run is accepted but immediately failed
	request, err := store.GetRunRequest(ctx, overflow.RunID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStateFailed, request.Status)

	result, err := store.GetRunResult(ctx, overflow.RunID)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "queue is full")
}
