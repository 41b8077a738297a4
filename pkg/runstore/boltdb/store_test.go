//go:build unit || !integration

package boltrunstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/suite"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
)

type BoltRunstoreTestSuite struct {
	suite.Suite
	store  *BoltRunStore
	dbFile string
	ctx    context.Context
	clock  *clock.Mock
}

func TestBoltRunstoreTestSuite(t *testing.T) {
	suite.Run(t, new(BoltRunstoreTestSuite))
}

func (s *BoltRunstoreTestSuite) SetupTest() {
	s.clock = clock.NewMock()
	s.clock.Set(time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC))

	dir, _ := os.MkdirTemp("", "qubi-runstore")
	s.dbFile = filepath.Join(dir, "test.boltdb")

	var err error
	s.store, err = NewBoltRunStore(s.dbFile, WithClock(s.clock))
	s.Require().NoError(err)
	s.ctx = context.Background()
}

func (s *BoltRunstoreTestSuite) TearDownTest() {
	s.store.Close(s.ctx)
	os.RemoveAll(filepath.Dir(s.dbFile))
}

func bellCircuit() models.Circuit {
	return models.Circuit{
		NumQubits: 2,
		NumClbits: 2,
		Gates: []models.Gate{
			{Name: models.GateH, Qubits: []int{0}},
			{Name: models.GateCX, Qubits: []int{0, 1}},
			{Name: models.GateMeasure, Qubits: []int{0, 1}, Clbits: []int{0, 1}},
		},
	}
}

func (s *BoltRunstoreTestSuite) createRun(id, userID string, states ...models.RunStateType) string {
	circuitID, err := s.store.CreateCircuit(s.ctx, bellCircuit())
	s.Require().NoError(err)

	err = s.store.CreateRunRequest(s.ctx, models.RunRequest{
		ID:        id,
		UserID:    userID,
		CircuitID: circuitID,
		BackendID: "sim_local",
		Shots:     100,
	})
	s.Require().NoError(err)

	for _, state := range states {
		s.clock.Add(time.Second)
		if state.IsTerminal() {
			err = s.store.CompleteRun(s.ctx, runstore.CompleteRunRequest{
				RunID:    id,
				NewState: state,
				Result: models.RunResult{
					RunRequestID: id,
					UserID:       userID,
					CircuitID:    circuitID,
					Success:      state == models.RunStateCompleted,
					BackendName:  "sim_local",
					Counts:       map[string]int{"00": 50, "11": 50},
					Probabilities: map[string]float64{
						"00": 0.5,
						"11": 0.5,
					},
					Shots: 100,
				},
			})
		} else {
			err = s.store.UpdateRunState(s.ctx, runstore.UpdateRunStateRequest{
				RunID:    id,
				NewState: state,
			})
		}
		s.Require().NoError(err)
	}
	return circuitID
}

func (s *BoltRunstoreTestSuite) TestCreateCircuitIsIdempotent() {
	first, err := s.store.CreateCircuit(s.ctx, bellCircuit())
	s.NoError(err)

	second, err := s.store.CreateCircuit(s.ctx, bellCircuit())
	s.NoError(err)
	s.Equal(first, second)

	found, err := s.store.HasCircuit(s.ctx, first)
	s.NoError(err)
	s.True(found)

	stored, err := s.store.GetCircuit(s.ctx, first)
	s.NoError(err)
	s.Equal(2, stored.NumQubits)
	s.Len(stored.Gates, 3)
}

func (s *BoltRunstoreTestSuite) TestGetCircuitNotFound() {
	_, err := s.store.GetCircuit(s.ctx, "deadbeef")
	s.ErrorAs(err, &runstore.ErrCircuitNotFound{})
}

func (s *BoltRunstoreTestSuite) TestCreateRunRequestDefaults() {
	s.createRun("run-1", "alice")

	request, err := s.store.GetRunRequest(s.ctx, "run-1")
	s.NoError(err)
	s.Equal(models.RunStatePending, request.Status)
	s.Equal(s.clock.Now().UTC(), request.CreatedAt)
	s.Equal(request.CreatedAt, request.UpdatedAt)
}

func (s *BoltRunstoreTestSuite) TestCreateRunRequestAlreadyExists() {
	s.createRun("run-1", "alice")

	err := s.store.CreateRunRequest(s.ctx, models.RunRequest{
		ID:        "run-1",
		UserID:    "alice",
		CircuitID: "whatever",
		BackendID: "sim_local",
		Shots:     1,
	})
	s.ErrorAs(err, &runstore.ErrRunAlreadyExists{})
}

func (s *BoltRunstoreTestSuite) TestGetRunRequestNotFound() {
	_, err := s.store.GetRunRequest(s.ctx, "run-missing")
	s.ErrorAs(err, &runstore.ErrRunNotFound{})
}

func (s *BoltRunstoreTestSuite) TestUpdateRunState() {
	s.createRun("run-1", "alice")

	s.clock.Add(time.Minute)
	err := s.store.UpdateRunState(s.ctx, runstore.UpdateRunStateRequest{
		RunID: "run-1",
		Condition: runstore.UpdateRunCondition{
			ExpectedStates: []models.RunStateType{models.RunStatePending},
		},
		NewState: models.RunStateRunning,
	})
	s.NoError(err)

	request, err := s.store.GetRunRequest(s.ctx, "run-1")
	s.NoError(err)
	s.Equal(models.RunStateRunning, request.Status)
	s.Equal(s.clock.Now().UTC(), request.UpdatedAt)
	s.True(request.CreatedAt.Before(request.UpdatedAt))
}

func (s *BoltRunstoreTestSuite) TestUpdateRunStateConditionFailed() {
	s.createRun("run-1", "alice", models.RunStateRunning)

	err := s.store.UpdateRunState(s.ctx, runstore.UpdateRunStateRequest{
		RunID: "run-1",
		Condition: runstore.UpdateRunCondition{
			ExpectedStates: []models.RunStateType{models.RunStatePending},
		},
		NewState: models.RunStateRunning,
	})
	s.ErrorAs(err, &runstore.ErrInvalidRunState{})

	request, err := s.store.GetRunRequest(s.ctx, "run-1")
	s.NoError(err)
	s.Equal(models.RunStateRunning, request.Status)
}

func (s *BoltRunstoreTestSuite) TestUpdateRunStateTerminalIsFinal() {
	s.createRun("run-1", "alice", models.RunStateRunning, models.RunStateCompleted)

	err := s.store.UpdateRunState(s.ctx, runstore.UpdateRunStateRequest{
		RunID:    "run-1",
		NewState: models.RunStateRunning,
	})
	s.ErrorAs(err, &runstore.ErrRunAlreadyTerminal{})
}

func (s *BoltRunstoreTestSuite) TestCompleteRun() {
	s.createRun("run-1", "alice", models.RunStateRunning, models.RunStateCompleted)

	request, err := s.store.GetRunRequest(s.ctx, "run-1")
	s.NoError(err)
	s.Equal(models.RunStateCompleted, request.Status)

	result, err := s.store.GetRunResult(s.ctx, "run-1")
	s.NoError(err)
	s.True(result.Success)
	s.Equal("run-1", result.RunRequestID)
	s.Equal(100, result.Shots)
	s.Equal(map[string]int{"00": 50, "11": 50}, result.Counts)
	s.Equal(s.clock.Now().UTC(), result.CreatedAt)
}

func (s *BoltRunstoreTestSuite) TestCompleteRunRejectsNonTerminalState() {
	s.createRun("run-1", "alice")

	err := s.store.CompleteRun(s.ctx, runstore.CompleteRunRequest{
		RunID:    "run-1",
		NewState: models.RunStateRunning,
	})
	s.Error(err)
}

func (s *BoltRunstoreTestSuite) TestCompleteRunRequiresRunning() {
	s.createRun("run-1", "alice")

	// still PENDING; a terminal write would skip RUNNING
	err := s.store.CompleteRun(s.ctx, runstore.CompleteRunRequest{
		RunID:    "run-1",
		NewState: models.RunStateFailed,
		Result: models.RunResult{
			RunRequestID: "run-1",
			ErrorMessage: "never ran",
		},
	})
	s.ErrorAs(err, &runstore.ErrInvalidRunState{})

	request, err := s.store.GetRunRequest(s.ctx, "run-1")
	s.NoError(err)
	s.Equal(models.RunStatePending, request.Status)

	_, err = s.store.GetRunResult(s.ctx, "run-1")
	s.ErrorAs(err, &runstore.ErrResultNotFound{})
}

func (s *BoltRunstoreTestSuite) TestCompleteRunOnlyOnce() {
	s.createRun("run-1", "alice", models.RunStateRunning, models.RunStateCompleted)

	err := s.store.CompleteRun(s.ctx, runstore.CompleteRunRequest{
		RunID:    "run-1",
		NewState: models.RunStateFailed,
		Result: models.RunResult{
			RunRequestID: "run-1",
			ErrorMessage: "too late",
		},
	})
	s.ErrorAs(err, &runstore.ErrRunAlreadyTerminal{})

	// the original result must survive
	result, err := s.store.GetRunResult(s.ctx, "run-1")
	s.NoError(err)
	s.True(result.Success)
}

func (s *BoltRunstoreTestSuite) TestGetRunResultNotFound() {
	s.createRun("run-1", "alice")

	_, err := s.store.GetRunResult(s.ctx, "run-1")
	s.ErrorAs(err, &runstore.ErrResultNotFound{})
}

func (s *BoltRunstoreTestSuite) TestGetInProgressRuns() {
	s.createRun("run-1", "alice")
	s.createRun("run-2", "alice", models.RunStateRunning)
	s.createRun("run-3", "bob", models.RunStateRunning, models.RunStateCompleted)
	s.createRun("run-4", "bob", models.RunStateRunning, models.RunStateFailed)

	inProgress, err := s.store.GetInProgressRuns(s.ctx)
	s.NoError(err)

	ids := make([]string, 0, len(inProgress))
	for _, request := range inProgress {
		ids = append(ids, request.ID)
	}
	s.ElementsMatch([]string{"run-1", "run-2"}, ids)
}

func (s *BoltRunstoreTestSuite) TestGetRunHistory() {
	for i := 1; i <= 5; i++ {
		s.clock.Add(time.Minute)
		s.createRun(fmt.Sprintf("run-%d", i), "alice",
			models.RunStateRunning, models.RunStateCompleted)
	}
	s.clock.Add(time.Minute)
	s.createRun("run-bob", "bob", models.RunStateRunning, models.RunStateCompleted)
	s.createRun("run-pending", "alice")

	history, err := s.store.GetRunHistory(s.ctx, runstore.RunHistoryQuery{UserID: "alice"})
	s.NoError(err)
	s.Len(history, 5)
	for i := 1; i < len(history); i++ {
		s.False(history[i-1].CreatedAt.Before(history[i].CreatedAt))
	}
	s.Equal("run-5", history[0].RunRequestID)

	limited, err := s.store.GetRunHistory(s.ctx, runstore.RunHistoryQuery{UserID: "alice", Limit: 2})
	s.NoError(err)
	s.Len(limited, 2)
	s.Equal("run-5", limited[0].RunRequestID)
	s.Equal("run-4", limited[1].RunRequestID)

	none, err := s.store.GetRunHistory(s.ctx, runstore.RunHistoryQuery{UserID: "carol"})
	s.NoError(err)
	s.Empty(none)
}

func (s *BoltRunstoreTestSuite) TestSurvivesReopen() {
	s.createRun("run-1", "alice", models.RunStateRunning, models.RunStateCompleted)
	s.Require().NoError(s.store.Close(s.ctx))

	reopened, err := NewBoltRunStore(s.dbFile, WithClock(s.clock))
	s.Require().NoError(err)
	s.store = reopened

	request, err := s.store.GetRunRequest(s.ctx, "run-1")
	s.NoError(err)
	s.Equal(models.RunStateCompleted, request.Status)

	result, err := s.store.GetRunResult(s.ctx, "run-1")
	s.NoError(err)
	s.True(result.Success)
}
