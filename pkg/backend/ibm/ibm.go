package ibm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/qubi-project/qubi/pkg/backend"
)

const (
	DefaultBaseURL      = "https://api.quantum.ibm.com/v1"
	DefaultPollInterval = 5 * time.Second
)

// IBMBackend submits circuits to IBM Quantum as OpenQASM 3 programs. A bare
// "ibm" backend id picks the least busy operational device; a concrete id
// such as ibm_brisbane names the device directly.
type IBMBackend struct {
	baseURL      string
	client       *http.Client
	clock        clock.Clock
	pollInterval time.Duration
}

type Option func(*IBMBackend)

func WithBaseURL(baseURL string) Option {
	return func(b *IBMBackend) {
		b.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithClock(clock clock.Clock) Option {
	return func(b *IBMBackend) {
		b.clock = clock
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(b *IBMBackend) {
		b.pollInterval = interval
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(b *IBMBackend) {
		b.client = client
	}
}

func NewIBMBackend(options ...Option) *IBMBackend {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.Logger = nil

	b := &IBMBackend{
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

func (b *IBMBackend) IsInstalled(ctx context.Context) (bool, error) {
	return b.baseURL != "", nil
}

type device struct {
	Name        string `json:"name"`
	Operational bool   `json:"operational"`
	Simulator   bool   `json:"simulator"`
	PendingJobs int    `json:"pending_jobs"`
}

type submitRequest struct {
	Backend string `json:"backend"`
	Shots   int    `json:"shots"`
	Program string `json:"program"`
}

type jobResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Backend string `json:"backend"`
	Error   string `json:"error,omitempty"`
}

type jobResults struct {
	// Counts keys outcomes in qiskit's hex spelling, e.g. "0x3"
	Counts map[string]int `json:"counts"`
}

func (b *IBMBackend) Execute(ctx context.Context, request *backend.ExecuteRequest) (*backend.UnifiedResult, error) {
	if request.Credentials.IsZero() {
		return nil, fmt.Errorf("no IBM api token provided for run %s", request.RunID)
	}
	token := request.Credentials.APIToken

	deviceName, err := b.resolveDevice(ctx, request.BackendID, token)
	if err != nil {
		return nil, err
	}

	program, err := QASMProgram(request.Circuit)
	if err != nil {
		return nil, backend.NewExecutionError(request.BackendID, "%s", err)
	}

	job, err := b.submit(ctx, &submitRequest{
		Backend: deviceName,
		Shots:   request.Shots,
		Program: program,
	}, token)
	if err != nil {
		return nil, err
	}

	log.Ctx(ctx).Debug().
		Str("RunID", request.RunID).
		Str("JobID", job.ID).
		Str("Device", deviceName).
		Msg("submitted circuit to IBM Quantum")

	job, err = b.awaitTerminal(ctx, job.ID, token)
	if err != nil {
		return nil, err
	}

	if job.Status != "Completed" {
		message := fmt.Sprintf("job %s ended with status %s", job.ID, job.Status)
		if job.Error != "" {
			message = fmt.Sprintf("%s: %s", message, job.Error)
		}
		return nil, backend.NewExecutionError(request.BackendID, "%s", message)
	}

	results, err := b.fetchResults(ctx, job.ID, token)
	if err != nil {
		return nil, err
	}

	counts, err := backend.NormalizeCounts(results.Counts, request.Circuit.NumClbits)
	if err != nil {
		return nil, backend.NewExecutionError(request.BackendID, "%s", err)
	}

	return &backend.UnifiedResult{
		BackendName:   deviceName,
		Shots:         request.Shots,
		NumQubits:     request.Circuit.NumQubits,
		Counts:        counts,
		Probabilities: backend.CountsToProbabilities(counts, request.Shots),
	}, nil
}

// resolveDevice picks the device to run on. The bare family id delegates the
// choice to whatever operational non-simulator device has the shortest
// queue, mirroring the provider's least_busy selection.
func (b *IBMBackend) resolveDevice(ctx context.Context, backendID, token string) (string, error) {
	if backendID != backend.FamilyIBM {
		return backendID, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/backends", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var devices []device
	if err := b.do(req, &devices); err != nil {
		return "", fmt.Errorf("listing IBM devices: %w", err)
	}

	candidates := lo.Filter(devices, func(d device, _ int) bool {
		return d.Operational && !d.Simulator
	})
	if len(candidates) == 0 {
		return "", backend.NewExecutionError(backendID, "no operational IBM device available")
	}

	leastBusy := lo.MinBy(candidates, func(x device, y device) bool {
		return x.PendingJobs < y.PendingJobs
	})
	return leastBusy.Name, nil
}

func (b *IBMBackend) submit(ctx context.Context, payload *submitRequest, token string) (*jobResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/jobs", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var job jobResponse
	if err := b.do(req, &job); err != nil {
		return nil, fmt.Errorf("submitting IBM job: %w", err)
	}
	return &job, nil
}

func (b *IBMBackend) awaitTerminal(ctx context.Context, jobID, token string) (*jobResponse, error) {
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/jobs/"+jobID, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)

		var job jobResponse
		if err := b.do(req, &job); err != nil {
			return nil, fmt.Errorf("polling IBM job %s: %w", jobID, err)
		}

		switch job.Status {
		case "Completed", "Failed", "Cancelled":
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

func (b *IBMBackend) fetchResults(ctx context.Context, jobID, token string) (*jobResults, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/jobs/"+jobID+"/results", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var results jobResults
	if err := b.do(req, &results); err != nil {
		return nil, fmt.Errorf("fetching IBM job %s results: %w", jobID, err)
	}
	return &results, nil
}

func (b *IBMBackend) do(req *http.Request, out any) error {
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("ibm api returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

var _ backend.Backend = (*IBMBackend)(nil)
