package boltrunstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	bolt "go.etcd.io/bbolt"

	"github.com/qubi-project/qubi/pkg/models"
	"github.com/qubi-project/qubi/pkg/runstore"
)

const (
	BucketCircuits = "circuits"
	BucketRuns     = "runs"

	BucketUsersIndex    = "idx_users"      // user-id -> run id
	BucketProgressIndex = "idx_inprogress" // run-id -> {}
)

var RequestKey = []byte("request")
var ResultKey = []byte("result")

// BoltRunStore is a runstore.Store backed by a single bolt database file.
// Data is structured as follows
//
// bucket circuits
//
//	key <content hash> -> Circuit
//
// bucket runs
//
//	bucket runID
//		key request -> RunRequest
//		key result  -> RunResult (written once, with the terminal status)
//
// Indexes are structured as:
//
//	UsersIndex    = user-id -> run id
//	ProgressIndex = run-id -> {}
type BoltRunStore struct {
	database *bolt.DB
	clock    clock.Clock

	usersIndex      *Index
	inProgressIndex *Index
}

type Option func(store *BoltRunStore)

func WithClock(clock clock.Clock) Option {
	return func(store *BoltRunStore) {
		store.clock = clock
	}
}

// NewBoltRunStore creates a new run store where data is held in buckets and
// indexed by sentinel [Index] buckets.
func NewBoltRunStore(dbPath string, options ...Option) (*BoltRunStore, error) {
	db, err := GetDatabase(dbPath)
	if err != nil {
		return nil, err
	}

	store := &BoltRunStore{
		database: db,
		clock:    clock.New(),
	}

	for _, opt := range options {
		opt(store)
	}

	// Create the top level buckets ready for use as they
	// will definitely be required
	err = db.Update(func(tx *bolt.Tx) (err error) {
		buckets := []string{
			BucketCircuits,
			BucketRuns,
			BucketUsersIndex,
			BucketProgressIndex,
		}
		for _, b := range buckets {
			_, err = tx.CreateBucketIfNotExists([]byte(b))
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create required buckets at startup: %s", err)
	}

	log.Debug().Str("DBFile", dbPath).Msg("created bolt-backed run store")

	store.usersIndex = NewIndex(BucketUsersIndex)
	store.inProgressIndex = NewIndex(BucketProgressIndex)

	return store, nil
}

// HasCircuit returns true if a circuit with this content hash is stored.
func (b *BoltRunStore) HasCircuit(ctx context.Context, circuitID string) (bool, error) {
	var exists bool
	err := b.database.View(func(tx *bolt.Tx) error {
		exists = b.hasCircuit(tx, circuitID)
		return nil
	})
	return exists, err
}

func (b *BoltRunStore) hasCircuit(tx *bolt.Tx, circuitID string) bool {
	return GetBucketData(tx, NewBucketPath(BucketCircuits), []byte(circuitID)) != nil
}

// GetCircuit retrieves the circuit stored under the given content hash.
func (b *BoltRunStore) GetCircuit(ctx context.Context, circuitID string) (models.Circuit, error) {
	var circuit models.Circuit
	err := b.database.View(func(tx *bolt.Tx) error {
		data := GetBucketData(tx, NewBucketPath(BucketCircuits), []byte(circuitID))
		if data == nil {
			return runstore.NewErrCircuitNotFound(circuitID)
		}
		return json.Unmarshal(data, &circuit)
	})
	return circuit, err
}

// CreateCircuit stores the circuit under its content hash. A circuit that is
// already present is left untouched: the content is a pure function of the
// hash, so replaying the write cannot change anything.
func (b *BoltRunStore) CreateCircuit(ctx context.Context, circuit models.Circuit) (string, error) {
	circuitID, err := models.HashCircuit(circuit)
	if err != nil {
		return "", err
	}

	err = b.database.Update(func(tx *bolt.Tx) error {
		if b.hasCircuit(tx, circuitID) {
			return nil
		}

		circuit.Normalize()
		data, err := json.Marshal(circuit)
		if err != nil {
			return err
		}

		bkt, err := NewBucketPath(BucketCircuits).Get(tx, false)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(circuitID), data)
	})

	return circuitID, err
}

// CreateRunRequest creates a new record of a run request in the store.
func (b *BoltRunStore) CreateRunRequest(ctx context.Context, request models.RunRequest) error {
	if request.ID == "" {
		return fmt.Errorf("cannot create a run request with no id")
	}
	if request.UserID == "" {
		return fmt.Errorf("run request is missing a user id")
	}

	return b.database.Update(func(tx *bolt.Tx) (err error) {
		return b.createRunRequest(tx, request)
	})
}

func (b *BoltRunStore) createRunRequest(tx *bolt.Tx, request models.RunRequest) error {
	if _, err := b.getRunRequest(tx, request.ID); err == nil {
		return runstore.NewErrRunAlreadyExists(request.ID)
	}

	runIDKey := []byte(request.ID)

	if request.Status.IsUndefined() {
		request.Status = models.RunStatePending
	}
	if request.CreatedAt.IsZero() {
		request.CreatedAt = b.clock.Now().UTC()
	}
	if request.UpdatedAt.IsZero() {
		request.UpdatedAt = request.CreatedAt
	}

	data, err := json.Marshal(request)
	if err != nil {
		return err
	}

	bkt, err := NewBucketPath(BucketRuns, request.ID).Get(tx, true)
	if err != nil {
		return err
	}
	if err = bkt.Put(RequestKey, data); err != nil {
		return err
	}

	if err = b.inProgressIndex.Add(tx, runIDKey); err != nil {
		return err
	}

	return b.usersIndex.Add(tx, runIDKey, []byte(request.UserID))
}

// GetRunRequest retrieves the run request identified by the id string.
func (b *BoltRunStore) GetRunRequest(ctx context.Context, runID string) (models.RunRequest, error) {
	var request models.RunRequest
	err := b.database.View(func(tx *bolt.Tx) (err error) {
		request, err = b.getRunRequest(tx, runID)
		return
	})
	return request, err
}

func (b *BoltRunStore) getRunRequest(tx *bolt.Tx, runID string) (models.RunRequest, error) {
	var request models.RunRequest

	data := GetBucketData(tx, NewBucketPath(BucketRuns, runID), RequestKey)
	if data == nil {
		return request, runstore.NewErrRunNotFound(runID)
	}

	err := json.Unmarshal(data, &request)
	return request, err
}

// GetInProgressRuns returns all runs that have not reached a terminal state.
func (b *BoltRunStore) GetInProgressRuns(ctx context.Context) ([]models.RunRequest, error) {
	var requests []models.RunRequest
	err := b.database.View(func(tx *bolt.Tx) error {
		keys, err := b.inProgressIndex.List(tx)
		if err != nil {
			return err
		}

		for _, runIDKey := range keys {
			request, err := b.getRunRequest(tx, string(runIDKey))
			if err != nil {
				return err
			}
			requests = append(requests, request)
		}
		return nil
	})
	return requests, err
}

// UpdateRunState updates the status for a single run request as one atomic
// write, subject to the supplied condition.
func (b *BoltRunStore) UpdateRunState(ctx context.Context, request runstore.UpdateRunStateRequest) error {
	return b.database.Update(func(tx *bolt.Tx) (err error) {
		return b.updateRunState(tx, request)
	})
}

func (b *BoltRunStore) updateRunState(tx *bolt.Tx, request runstore.UpdateRunStateRequest) error {
	current, err := b.getRunRequest(tx, request.RunID)
	if err != nil {
		return err
	}

	// check the expected state
	if err := request.Condition.Validate(current); err != nil {
		return err
	}
	if current.Status.IsTerminal() {
		return runstore.NewErrRunAlreadyTerminal(request.RunID, current.Status, request.NewState)
	}

	current.Status = request.NewState
	current.UpdatedAt = b.clock.Now().UTC()

	data, err := json.Marshal(current)
	if err != nil {
		return err
	}

	bkt, err := NewBucketPath(BucketRuns, request.RunID).Get(tx, false)
	if err != nil {
		return err
	}
	if err = bkt.Put(RequestKey, data); err != nil {
		return err
	}

	if request.NewState.IsTerminal() {
		return b.inProgressIndex.Remove(tx, []byte(request.RunID))
	}

	return nil
}

// CompleteRun writes the run result and flips the request to its terminal
// status inside a single transaction, so no reader can observe a terminal
// status without a readable result.
func (b *BoltRunStore) CompleteRun(ctx context.Context, request runstore.CompleteRunRequest) error {
	if !request.NewState.IsTerminal() {
		return fmt.Errorf("cannot complete run %s with non-terminal state %s",
			request.RunID, request.NewState)
	}

	return b.database.Update(func(tx *bolt.Tx) (err error) {
		return b.completeRun(tx, request)
	})
}

func (b *BoltRunStore) completeRun(tx *bolt.Tx, request runstore.CompleteRunRequest) error {
	current, err := b.getRunRequest(tx, request.RunID)
	if err != nil {
		return err
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
		result.CreatedAt = b.clock.Now().UTC()
	}

	resultData, err := json.Marshal(result)
	if err != nil {
		return err
	}

	bkt, err := NewBucketPath(BucketRuns, request.RunID).Get(tx, false)
	if err != nil {
		return err
	}
	if err = bkt.Put(ResultKey, resultData); err != nil {
		return err
	}

	return b.updateRunState(tx, runstore.UpdateRunStateRequest{
		RunID:    request.RunID,
		NewState: request.NewState,
		Comment:  "run completed",
	})
}

// GetRunResult returns the result stored for the given run id, if any.
func (b *BoltRunStore) GetRunResult(ctx context.Context, runID string) (models.RunResult, error) {
	var result models.RunResult
	err := b.database.View(func(tx *bolt.Tx) error {
		data := GetBucketData(tx, NewBucketPath(BucketRuns, runID), ResultKey)
		if data == nil {
			return runstore.NewErrResultNotFound(runID)
		}
		return json.Unmarshal(data, &result)
	})
	return result, err
}

// GetRunHistory returns terminal results for a user, newest first.
func (b *BoltRunStore) GetRunHistory(ctx context.Context, query runstore.RunHistoryQuery) ([]models.RunResult, error) {
	var results []models.RunResult
	err := b.database.View(func(tx *bolt.Tx) error {
		keys, err := b.usersIndex.List(tx, []byte(query.UserID))
		if err != nil {
			return err
		}

		for _, runIDKey := range keys {
			data := GetBucketData(tx, NewBucketPath(BucketRuns, string(runIDKey)), ResultKey)
			if data == nil {
				// still pending or running; history is of terminal outcomes only
				continue
			}
			var result models.RunResult
			if err := json.Unmarshal(data, &result); err != nil {
				return err
			}
			results = append(results, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].CreatedAt.UTC().After(results[j].CreatedAt.UTC())
	})

	if query.Limit > 0 {
		results = lo.Slice(results, 0, query.Limit)
	}

	return results, nil
}

// Close provides an interface to cleanup the store when it is no longer
// required
func (b *BoltRunStore) Close(ctx context.Context) error {
	log.Ctx(ctx).Debug().Msg("closing bolt-backed run store")
	return b.database.Close()
}

// compile-time check that we implement the interface
var _ runstore.Store = (*BoltRunStore)(nil)
