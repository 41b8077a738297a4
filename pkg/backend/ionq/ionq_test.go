//go:build unit || !integration

package ionq

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qubi-project/qubi/pkg/backend"
	"github.com/qubi-project/qubi/pkg/credentials"
	"github.com/qubi-project/qubi/pkg/models"
)

func bellRequest() *backend.ExecuteRequest {
	return &backend.ExecuteRequest{
		RunID: "run-test",
		Circuit: models.Circuit{
			NumQubits: 2,
			NumClbits: 2,
			Gates: []models.Gate{
				{Name: models.GateH, Qubits: []int{0}},
				{Name: models.GateCX, Qubits: []int{0, 1}},
				{Name: models.GateMeasure, Qubits: []int{0, 1}, Clbits: []int{0, 1}},
			},
		},
		BackendID:   "ionq_simulator",
		Shots:       1000,
		Credentials: credentials.Credentials{APIToken: "tok-test"},
	}
}

func TestTargetForBackendID(t *testing.T) {
	assert.Equal(t, "simulator", TargetForBackendID("ionq"))
	assert.Equal(t, "simulator", TargetForBackendID("ionq_simulator"))
	assert.Equal(t, "qpu.aria-1", TargetForBackendID("ionq_qpu.aria-1"))
}

func TestExecute(t *testing.T) {
	var polls atomic.Int32
	var submitted submitRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "apiKey tok-test", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			require.NoError(t, json.NewDecoder(r.Body).Decode(&submitted))
			json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: "submitted"})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1":
			status := "running"
			if polls.Add(1) >= 3 {
				status = "completed"
			}
			json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: status})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1/results":
			// |00> and |11> with equal weight, keyed by decimal qubit state
			json.NewEncoder(w).Encode(map[string]float64{"0": 0.5, "3": 0.5})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	b := NewIonQBackend(
		WithBaseURL(server.URL),
		WithPollInterval(time.Millisecond),
	)

	result, err := b.Execute(context.Background(), bellRequest())
	require.NoError(t, err)

	assert.Equal(t, "ionq_simulator", result.BackendName)
	assert.Equal(t, 1000, result.Shots)
	assert.Equal(t, map[string]int{"00": 500, "11": 500}, result.Counts)
	assert.InDelta(t, 0.5, result.Probabilities["00"], 1e-9)
	assert.InDelta(t, 0.5, result.Probabilities["11"], 1e-9)

	// the submission must be in IonQ's wire format, without measure gates
	assert.Equal(t, "simulator", submitted.Target)
	assert.Equal(t, circuitFormat, submitted.Input.Format)
	require.Len(t, submitted.Input.Circuit, 2)
	assert.Equal(t, "h", submitted.Input.Circuit[0].Gate)
	assert.Equal(t, "cnot", submitted.Input.Circuit[1].Gate)
	require.NotNil(t, submitted.Input.Circuit[1].Control)
	assert.Equal(t, 0, *submitted.Input.Circuit[1].Control)
	assert.Equal(t, 1, submitted.Input.Circuit[1].Target)
}

func TestExecuteUnevenDistribution(t *testing.T) {
	// 1/3 vs 2/3 does not divide evenly into 1000 shots; the reported
	// probabilities must still match the apportioned counts exactly.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: "submitted"})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1":
			json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: "completed"})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1/results":
			json.NewEncoder(w).Encode(map[string]float64{"0": 0.3333, "3": 0.6667})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	b := NewIonQBackend(WithBaseURL(server.URL), WithPollInterval(time.Millisecond))

	result, err := b.Execute(context.Background(), bellRequest())
	require.NoError(t, err)

	total := 0
	for _, count := range result.Counts {
		total += count
	}
	assert.Equal(t, result.Shots, total)

	require.Len(t, result.Probabilities, len(result.Counts))
	for state, count := range result.Counts {
		assert.InDelta(t, float64(count)/float64(result.Shots), result.Probabilities[state], 1e-9,
			"state %s", state)
	}
}

func TestExecuteJobFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: "submitted"})
		case r.Method == http.MethodGet && r.URL.Path == "/jobs/job-1":
			resp := jobResponse{ID: "job-1", Status: "failed"}
			resp.Failure = &struct {
				Code  string `json:"code"`
				Error string `json:"error"`
			}{Code: "TooManyQubits", Error: "too many qubits for target"}
			json.NewEncoder(w).Encode(resp)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	b := NewIonQBackend(WithBaseURL(server.URL), WithPollInterval(time.Millisecond))

	_, err := b.Execute(context.Background(), bellRequest())
	var execErr *backend.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message, "too many qubits")
}

func TestExecuteRequiresCredentials(t *testing.T) {
	b := NewIonQBackend(WithBaseURL("http://unreachable.invalid"))
	request := bellRequest()
	request.Credentials = credentials.Credentials{}

	_, err := b.Execute(context.Background(), request)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api token")
}

func TestExecuteCancelledWhilePolling(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/jobs":
			json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: "submitted"})
		default:
			json.NewEncoder(w).Encode(jobResponse{ID: "job-1", Status: "running"})
		}
	}))
	defer server.Close()

	b := NewIonQBackend(WithBaseURL(server.URL), WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Execute(ctx, bellRequest())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
