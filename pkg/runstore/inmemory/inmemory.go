package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
)

// InMemoryRunStore is a runstore.Store held entirely in process memory. It is
// used by tests and by dev-mode nodes that do not want a database file.
type InMemoryRunStore struct {
	mtx sync.RWMutex

	circuits map[string]models.Circuit
	requests map[string]models.RunRequest
	results  map[string]models.RunResult

	// circuitWrites counts logical circuit inserts, so tests can assert the
	// dedup invariant without poking at internals.
	circuitWrites int

	clock clock.Clock
}

type Option func(store *InMemoryRunStore)

func WithClock(clock clock.Clock) Option {
	return func(store *InMemoryRunStore) {
		store.clock = clock
	}
}

func NewInMemoryRunStore(options ...Option) *InMemoryRunStore {
	store := &InMemoryRunStore{
		circuits: make(map[string]models.Circuit),
		requests: make(map[string]models.RunRequest),
		results:  make(map[string]models.RunResult),
		clock:    clock.New(),
	}
	for _, opt := range options {
		opt(store)
	}
	return store
}

func (s *InMemoryRunStore) HasCircuit(ctx context.Context, circuitID string) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	_, ok := s.circuits[circuitID]
	return ok, nil
}

func (s *InMemoryRunStore) GetCircuit(ctx context.Context, circuitID string) (models.Circuit, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	circuit, ok := s.circuits[circuitID]
	if !ok {
		return models.Circuit{}, runstore.NewErrCircuitNotFound(circuitID)
	}
	return circuit, nil
}

func (s *InMemoryRunStore) CreateCircuit(ctx context.Context, circuit models.Circuit) (string, error) {
	circuitID, err := models.HashCircuit(circuit)
	if err != nil {
		return "", err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.circuits[circuitID]; ok {
		return circuitID, nil
	}
	circuit.Normalize()
	s.circuits[circuitID] = circuit
	s.circuitWrites++
	return circuitID, nil
}

// CircuitWriteCount returns the number of logical circuit inserts performed.
func (s *InMemoryRunStore) CircuitWriteCount() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return s.circuitWrites
}

func (s *InMemoryRunStore) CreateRunRequest(ctx context.Context, request models.RunRequest) error {
	if request.ID == "" {
		return fmt.Errorf("cannot create a run request with no id")
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if _, ok := s.requests[request.ID]; ok {
		return runstore.NewErrRunAlreadyExists(request.ID)
	}

	if request.Status.IsUndefined() {
		request.Status = models.RunStatePending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = s.clock.Now().UTC()
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = request.CreatedAt
	}

	s.requests[request.ID] = request
	return nil
}

func (s *InMemoryRunStore) GetRunRequest(ctx context.Context, runID string) (models.RunRequest, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	request, ok := s.requests[runID]
	if !ok {
		return models.RunRequest{}, runstore.NewErrRunNotFound(runID)
	}
	return request, nil
}

func (s *InMemoryRunStore) GetInProgressRuns(ctx context.Context) ([]models.RunRequest, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	var requests []models.RunRequest
	for _, request := range s.requests {
		if !request.IsTerminal() {
			requests = append(requests, request)
		}
	}
	return requests, nil
}

func (s *InMemoryRunStore) UpdateRunState(ctx context.Context, request runstore.UpdateRunStateRequest) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.updateRunState(request)
}

func (s *InMemoryRunStore) updateRunState(request runstore.UpdateRunStateRequest) error {
	current, ok := s.requests[request.RunID]
	if !ok {
		return runstore.NewErrRunNotFound(request.RunID)
	}

	if err := request.Condition.Validate(current); err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return runstore.NewErrRunAlreadyTerminal(request.RunID, current.Status, request.NewState)
	}

	current.Status = request.NewState
	current.UpdatedAt = s.clock.Now().UTC()
	s.requests[request.RunID] = current
	return nil
}

func (s *InMemoryRunStore) CompleteRun(ctx context.Context, request runstore.CompleteRunRequest) error {
	if !request.NewState.IsTerminal() {
		return fmt.Errorf("cannot complete run %s with non-terminal state %s",
			request.RunID, request.NewState)
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	current, ok := s.requests[request.RunID]
	if !ok {
		return runstore.NewErrRunNotFound(request.RunID)
	}
	if current.Status.IsTerminal() {
		return runstore.NewErrRunAlreadyTerminal(request.RunID, current.Status, request.NewState)
	}
	// a run must pass through RUNNING before it can end
	if current.Status != models.RunStateRunning {
		return runstore.NewErrInvalidRunState(request.RunID, current.Status, models.RunStateRunning)
	}

	result := request.Result
	result.RunRequestID = request.RunID
	if result.CreatedAt.IsZero() {
		result.CreatedAt = s.clock.Now().UTC()
	}
	s.results[request.RunID] = result

	return s.updateRunState(runstore.UpdateRunStateRequest{
		RunID:    request.RunID,
		NewState: request.NewState,
		Comment:  "run completed",
	})
}

func (s *InMemoryRunStore) GetRunResult(ctx context.Context, runID string) (models.RunResult, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	result, ok := s.results[runID]
	if !ok {
		return models.RunResult{}, runstore.NewErrResultNotFound(runID)
	}
	return result, nil
}

func (s *InMemoryRunStore) GetRunHistory(ctx context.Context, query runstore.RunHistoryQuery) ([]models.RunResult, error) {
	s.mtx.RLock()
	var results []models.RunResult
	for _, result := range s.results {
		if result.UserID == query.UserID {
			results = append(results, result)
		}
	}
	s.mtx.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.UTC().After(results[j].CreatedAt.UTC())
	})

	if query.Limit > 0 {
		results = lo.Slice(results, 0, query.Limit)
	}

	return results, nil
}

func (s *InMemoryRunStore) Close(ctx context.Context) error {
	return nil
}

// compile-time check that we implement the interface
var _ runstore.Store = (*InMemoryRunStore)(nil)
