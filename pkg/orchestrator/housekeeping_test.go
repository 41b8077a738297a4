//go:build unit || !integration

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
	"github.com/qubi-project/qubi/pkg/runstore/inmemory"
)

func TestHousekeepingParamsValidated(t *testing.T) {
	_, err := NewHousekeeping(HousekeepingParams{})
	require.Error(t, err)
}

func TestHousekeepingTimesOutStuckRuns(t *testing.T) {
	ctx := context.Background()
	mockClock := clock.NewMock()
	store := inmemory.NewInMemoryRunStore(inmemory.WithClock(mockClock))

	createRun := func(id string, state models.RunStateType) {
		circuitID, err := store.CreateCircuit(ctx, models.Circuit{
			NumQubits: 1,
			NumClbits: 1,
			Gates: []models.Gate{
				{Name: models.GateMeasure, Qubits: []int{0}, Clbits: []int{0}},
			},
		})
		require.NoError(t, err)
		require.NoError(t, store.CreateRunRequest(ctx, models.RunRequest{
			ID:        id,
			UserID:    "alice",
			CircuitID: circuitID,
			BackendID: "ionq_qpu.aria-1",
			Shots:     10,
		}))
		if state != models.RunStatePending {
			require.NoError(t, store.UpdateRunState(ctx, runstore.UpdateRunStateRequest{
				RunID:    id,
				NewState: state,
			}))
		}
	}

	createRun("run-stuck", models.RunStateRunning)
	createRun("run-pending", models.RunStatePending)

	housekeeping, err := NewHousekeeping(HousekeepingParams{
		Store:      store,
		Interval:   time.Minute,
		RunTimeout: time.Hour,
		Clock:      mockClock,
	})
	require.NoError(t, err)

	housekeeping.Start(ctx)
	defer housekeeping.Stop(ctx)

	// let the sweep goroutine reach the ticker before advancing time
	require.Eventually(t, housekeeping.IsRunning, time.Second, 5*time.Millisecond)

	// first sweep happens well before the timeout: nothing to do
	mockClock.Add(2 * time.Minute)
	request, err := store.GetRunRequest(ctx, "run-stuck")
	require.NoError(t, err)
	assert.Equal(t, models.RunStateRunning, request.Status)

	// pass the RUNNING timeout and sweep again
	mockClock.Add(2 * time.Hour)
	require.Eventually(t, func() bool {
		request, err := store.GetRunRequest(ctx, "run-stuck")
		return err == nil && request.Status == models.RunStateFailed
	}, time.Second, 5*time.Millisecond)

	result, err := store.GetRunResult(ctx, "run-stuck")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "timed out")

	// pending runs are left for the workers, however old they are
	request, err = store.GetRunRequest(ctx, "run-pending")
	require.NoError(t, err)
	assert.Equal(t, models.RunStatePending, request.Status)
}
