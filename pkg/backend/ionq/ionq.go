package ionq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/backend"
	"github.com/qubi-project/qubi/pkg/models"
)

const (
	DefaultBaseURL      = "https://api.ionq.co/v0.3"
	DefaultPollInterval = 2 * time.Second

	circuitFormat = "ionq.circuit.v0"
)

// IonQBackend submits circuits to the IonQ cloud API and polls the job to a
// terminal status. IonQ reports results as a probability distribution over
// qubit basis states keyed by decimal integers.
type IonQBackend struct {
	baseURL      string
	client       *http.Client
	clock        clock.Clock
	pollInterval time.Duration
}

type Option func(*IonQBackend)

func WithBaseURL(baseURL string) Option {
	return func(b *IonQBackend) {
		b.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithClock(clock clock.Clock) Option {
	return func(b *IonQBackend) {
		b.clock = clock
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(b *IonQBackend) {
		b.pollInterval = interval
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(b *IonQBackend) {
		b.client = client
	}
}

func NewIonQBackend(options ...Option) *IonQBackend {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	b := &IonQBackend{
		baseURL:      DefaultBaseURL,
		client:       retryClient.StandardClient(),
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

func (b *IonQBackend) IsInstalled(ctx context.Context) (bool, error) {
	return b.baseURL != "", nil
}

// TargetForBackendID strips the family prefix from a backend id, turning
// ionq_simulator into simulator and ionq_qpu.aria-1 into qpu.aria-1. A bare
// "ionq" targets the simulator.
func TargetForBackendID(backendID string) string {
	target := strings.TrimPrefix(backendID, "ionq")
	target = strings.TrimPrefix(target, "_")
	if target == "" {
		return "simulator"
	}
	return target
}

type instruction struct {
	Gate     string   `json:"gate"`
	Target   int      `json:"target"`
	Control  *int     `json:"control,omitempty"`
	Rotation *float64 `json:"rotation,omitempty"`
}

type submitRequest struct {
	Name   string       `json:"name,omitempty"`
	Target string       `json:"target"`
	Shots  int          `json:"shots"`
	Input  circuitInput `json:"input"`
}

type circuitInput struct {
	Format  string        `json:"format"`
	Qubits  int           `json:"qubits"`
	Circuit []instruction `json:"circuit"`
}

type jobResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Target  string `json:"target"`
	Failure *struct {
		Code  string `json:"code"`
		Error string `json:"error"`
	} `json:"failure"`
}

func (b *IonQBackend) Execute(ctx context.Context, request *backend.ExecuteRequest) (*backend.UnifiedResult, error) {
	if request.Credentials.IsZero() {
		return nil, fmt.Errorf("no IonQ api token provided for run %s", request.RunID)
	}

	payload, err := b.buildSubmission(request)
	if err != nil {
		return nil, err
	}

	job, err := b.submit(ctx, payload, request.Credentials.APIToken)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Str("RunID", request.RunID).
		Str("JobID", job.ID).
		Str("Target", payload.Target).
		Msg("submitted circuit to IonQ")

	job, err = b.awaitTerminal(ctx, job.ID, request.Credentials.APIToken)
	if err != nil {
		return nil, err
	}

	if job.Status != "completed" {
		message := fmt.Sprintf("job %s ended with status %s", job.ID, job.Status)
		if job.Failure != nil {
			message = fmt.Sprintf("%s: %s", message, job.Failure.Error)
		}
		return nil, backend.NewExecutionError(request.BackendID, "%s", message)
	}

	rawProbabilities, err := b.fetchResults(ctx, job.ID, request.Credentials.APIToken)
	if err != nil {
		return nil, err
	}

	return b.unifyResults(request, payload.Target, rawProbabilities)
}

// buildSubmission translates the circuit into IonQ's wire format. Measure
// gates are dropped here since IonQ measures the full register; the measured
// clbit mapping is applied again when results come back.
func (b *IonQBackend) buildSubmission(request *backend.ExecuteRequest) (*submitRequest, error) {
	circuit := request.Circuit
	instructions := make([]instruction, 0, len(circuit.Gates))

	for _, gate := range circuit.Gates {
		switch gate.Name {
		case models.GateH, models.GateX:
			instructions = append(instructions, instruction{
				Gate:   string(gate.Name),
				Target: gate.Qubits[0],
			})
		case models.GateCX:
			control := gate.Qubits[0]
			instructions = append(instructions, instruction{
				Gate:    "cnot",
				Control: &control,
				Target:  gate.Qubits[1],
			})
		case models.GateRZ:
			rotation := gate.Params[0]
			instructions = append(instructions, instruction{
				Gate:     "rz",
				Target:   gate.Qubits[0],
				Rotation: &rotation,
			})
		case models.GateMeasure:
			continue
		default:
			return nil, backend.NewExecutionError(request.BackendID,
				"gate %s cannot be expressed in %s", gate.Name, circuitFormat)
		}
	}

	return &submitRequest{
		Name:   request.RunID,
		Target: TargetForBackendID(request.BackendID),
		Shots:  request.Shots,
		Input: circuitInput{
			Format:  circuitFormat,
			Qubits:  circuit.NumQubits,
			Circuit: instructions,
		},
	}, nil
}

func (b *IonQBackend) submit(ctx context.Context, payload *submitRequest, token string) (*jobResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "apiKey "+token)

	var job jobResponse
	if err := b.do(req, &job); err != nil {
		return nil, fmt.Errorf("submitting IonQ job: %w", err)
	}
	return &job, nil
}

func (b *IonQBackend) awaitTerminal(ctx context.Context, jobID, token string) (*jobResponse, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/jobs/"+jobID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "apiKey "+token)

		var job jobResponse
		if err := b.do(req, &job); err != nil {
			return nil, fmt.Errorf("polling IonQ job %s: %w", jobID, err)
		}

		switch job.Status {
		case "completed", "failed", "canceled":
			return &job, nil
		}

		timer := b.clock.Timer(b.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *IonQBackend) fetchResults(ctx context.Context, jobID, token string) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/jobs/"+jobID+"/results", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "apiKey "+token)

	var probabilities map[string]float64
	if err := b.do(req, &probabilities); err != nil {
		return nil, fmt.Errorf("fetching IonQ job %s results: %w", jobID, err)
	}
	return probabilities, nil
}

// unifyResults projects the qubit-state distribution onto the classical
// register and derives integer counts from it.
func (b *IonQBackend) unifyResults(
	request *backend.ExecuteRequest, target string, raw map[string]float64) (*backend.UnifiedResult, error) {
	circuit := request.Circuit
	sources := backend.MeasurementMap(circuit)

	probabilities := make(map[string]float64, len(raw))
	for key, p := range raw {
		value, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, backend.NewExecutionError(request.BackendID,
				"unexpected outcome key %q in results", key)
		}
		probabilities[backend.RenderOutcome(value, sources, circuit.NumClbits)] += p
	}

	// Counts are the record of truth: re-derive probabilities from them so
	// that probability == count/shots exactly, even when the raw
	// distribution does not divide evenly into the shot budget.
	counts := backend.ProbabilitiesToCounts(probabilities, request.Shots)

	return &backend.UnifiedResult{
		BackendName:   "ionq_" + target,
		Shots:         request.Shots,
		NumQubits:     circuit.NumQubits,
		Counts:        counts,
		Probabilities: backend.CountsToProbabilities(counts, request.Shots),
	}, nil
}

func (b *IonQBackend) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ionq api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

var _ backend.Backend = (*IonQBackend)(nil)
