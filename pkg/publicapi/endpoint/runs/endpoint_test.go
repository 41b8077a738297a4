//go:build unit || !integration

package runs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"

	"github.com/qubi-project/qubi/pkg/backend"
	"github.com/qubi-project/qubi/pkg/backend/simulator"
	"github.com/qubi-project/qubi/pkg/credentials"
	"github.com/qubi-project/qubi/pkg/orchestrator"
	"github.com/qubi-project/qubi/pkg/publicapi"
	"github.com/qubi-project/qubi/pkg/publicapi/apimodels"
	"github.com/qubi-project/qubi/pkg/publicapi/middleware"
	"github.com/qubi-project/qubi/pkg/runstore/inmemory"
)

type RunsEndpointTestSuite struct {
	suite.Suite
	router   *echo.Echo
	store    *inmemory.InMemoryRunStore
	broker   *orchestrator.InMemoryBroker
	executor *orchestrator.RunExecutor
	ctx      context.Context
}

func TestRunsEndpointTestSuite(t *testing.T) {
	suite.Run(t, new(RunsEndpointTestSuite))
}

func (s *RunsEndpointTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = inmemory.NewInMemoryRunStore()
	s.broker = orchestrator.NewInMemoryBroker(16)

	s.executor = orchestrator.NewRunExecutor(orchestrator.RunExecutorParams{
		Store: s.store,
		Backends: backend.NewMappedBackendProvider(map[string]backend.Backend{
			backend.FamilySimulator: simulator.NewSimulator(simulator.WithSeed(42)),
		}),
		Credentials: credentials.NewStaticSource(nil),
	})

	s.router = echo.New()
	s.router.Validator = publicapi.NewCustomValidator()
	s.router.HTTPErrorHandler = middleware.CustomHTTPErrorHandler

	NewEndpoint(EndpointParams{
		Router:     s.router,
		Submission: orchestrator.NewSubmission(orchestrator.SubmissionParams{Store: s.store, Broker: s.broker}),
		Store:      s.store,
	})
}

func (s *RunsEndpointTestSuite) request(method, path string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RunsEndpointTestSuite) submit() string {
	body := `{
		"user_id": "alice",
		"shots": 100,
		"quantum_computer": "sim_local",
		"circuit": {
			"num_qubits": 1,
			"num_clbits": 1,
			"gates": [
				{"name": "h", "qubits": [0]},
				{"name": "measure", "qubits": [0], "clbits": [0]}
			]
		}
	}`
	rec := s.request(http.MethodPost, "/api/v1/runs", body)
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var resp apimodels.PutRunResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Require().NotEmpty(resp.RunRequestID)
	return resp.RunRequestID
}

// drain processes every queued run synchronously.
func (s *RunsEndpointTestSuite) drain() {
	for s.broker.Len() > 0 {
		task, err := s.broker.Dequeue(s.ctx, time.Second)
		s.Require().NoError(err)
		s.Require().NotNil(task)
		s.Require().NoError(s.executor.Process(s.ctx, *task))
	}
}

func (s *RunsEndpointTestSuite) TestSubmitThenPoll() {
	runID := s.submit()

	// before any worker picks it up the run is in flight
	rec := s.request(http.MethodGet, "/api/v1/runs/"+runID, "")
	s.Equal(http.StatusAccepted, rec.Code)

	var waiting apimodels.GetRunResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &waiting))
	s.Equal("waiting for quantum computer", waiting.Status)
	s.Equal("sim_local", waiting.QuantumComputer)
	s.Equal(100, waiting.Shots)
	s.Nil(waiting.RunResult)

	s.drain()

	rec = s.request(http.MethodGet, "/api/v1/runs/"+runID, "")
	s.Equal(http.StatusOK, rec.Code)

	var done apimodels.GetRunResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &done))
	s.Equal("completed", done.Status)
	s.Require().NotNil(done.RunResult)
	s.True(done.RunResult.Success)
	s.Equal(runID, done.RunResult.RunRequestID)
	s.Equal(simulator.BackendName, done.RunResult.BackendName)

	total := 0
	for _, c := range done.RunResult.Counts {
		total += c
	}
	s.Equal(100, total)
}

func (s *RunsEndpointTestSuite) TestPollUnknownRun() {
	rec := s.request(http.MethodGet, "/api/v1/runs/run-nope", "")
	s.Equal(http.StatusNotFound, rec.Code)

	var resp apimodels.GetRunResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("request with id run-nope does not exist", resp.Status)
}

func (s *RunsEndpointTestSuite) TestSubmitValidation() {
	testcases := []struct {
		name string
		body string
	}{
		{
			name: "missing circuit",
			body: `{"user_id": "alice", "shots": 100, "quantum_computer": "sim_local"}`,
		},
		{
			name: "zero shots",
			body: `{"user_id": "alice", "shots": 0, "quantum_computer": "sim_local",
				"circuit": {"num_qubits": 1, "num_clbits": 1,
					"gates": [{"name": "measure", "qubits": [0], "clbits": [0]}]}}`,
		},
		{
			name: "blank user",
			body: `{"user_id": "", "shots": 10, "quantum_computer": "sim_local",
				"circuit": {"num_qubits": 1, "num_clbits": 1,
					"gates": [{"name": "measure", "qubits": [0], "clbits": [0]}]}}`,
		},
		{
			name: "unknown gate",
			body: `{"user_id": "alice", "shots": 10, "quantum_computer": "sim_local",
				"circuit": {"num_qubits": 1, "num_clbits": 1,
					"gates": [{"name": "toffoli", "qubits": [0]}]}}`,
		},
		{
			name: "qubit out of range",
			body: `{"user_id": "alice", "shots": 10, "quantum_computer": "sim_local",
				"circuit": {"num_qubits": 1, "num_clbits": 1,
					"gates": [{"name": "h", "qubits": [3]}]}}`,
		},
		{
			name: "not json",
			body: `this is not json`,
		},
	}

	for _, tc := range testcases {
		s.Run(tc.name, func() {
			rec := s.request(http.MethodPost, "/api/v1/runs", tc.body)
			s.Equal(http.StatusBadRequest, rec.Code)
		})
	}
}

func (s *RunsEndpointTestSuite) TestMalformedSubmissionStoresNothing() {
	rec := s.request(http.MethodPost, "/api/v1/runs",
		`{"user_id": "alice", "shots": 100, "quantum_computer": "sim_local"}`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(0, s.store.CircuitWriteCount())
}

func (s *RunsEndpointTestSuite) TestHistory() {
	var runIDs []string
	for i := 0; i < 3; i++ {
		runIDs = append(runIDs, s.submit())
	}
	s.drain()

	rec := s.request(http.MethodGet, "/api/v1/runs?user_id=alice", "")
	s.Equal(http.StatusOK, rec.Code)

	var resp apimodels.ListRunHistoryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Len(resp.History, 3)
	for _, result := range resp.History {
		s.True(result.Success)
		s.Contains(runIDs, result.RunRequestID)
	}
}

func (s *RunsEndpointTestSuite) TestHistoryLimit() {
	for i := 0; i < 5; i++ {
		s.submit()
	}
	s.drain()

	rec := s.request(http.MethodGet, "/api/v1/runs?user_id=alice&limit=2", "")
	s.Equal(http.StatusOK, rec.Code)

	var resp apimodels.ListRunHistoryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Len(resp.History, 2)
}

func (s *RunsEndpointTestSuite) TestHistoryExcludesInFlightRuns() {
	s.submit()

	rec := s.request(http.MethodGet, "/api/v1/runs?user_id=alice", "")
	s.Equal(http.StatusOK, rec.Code)

	var resp apimodels.ListRunHistoryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Empty(resp.History)
}

func (s *RunsEndpointTestSuite) TestHistoryRequiresUserID() {
	rec := s.request(http.MethodGet, "/api/v1/runs", "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *RunsEndpointTestSuite) TestHistoryIsPerUser() {
	s.submit()
	s.drain()

	rec := s.request(http.MethodGet, fmt.Sprintf("/api/v1/runs?user_id=%s", "bob"), "")
	s.Equal(http.StatusOK, rec.Code)

	var resp apimodels.ListRunHistoryResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Empty(resp.History)
}
