package simulator

import (
	"context"
	"math"
	"math/cmplx"
	"math/rand"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/qubi-project/qubi/pkg/backend"
	"github.com/qubi-project/qubi/pkg/models"
)

// MaxQubits bounds the statevector size. 2^24 amplitudes is 256MiB of
// complex128, which is already generous for a local simulator.
const MaxQubits = 24

const BackendName = "sim_local"

// Simulator is a dense statevector backend. It holds the full 2^n amplitude
// vector in memory and samples measurement outcomes from it, so results are
// exact up to sampling noise.
type Simulator struct {
	mtx sync.Mutex
	rng *rand.Rand
}

type Option func(*Simulator)

// WithSeed makes sampling deterministic, for tests.
func WithSeed(seed int64) Option {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // sampling, not crypto
	}
}

func NewSimulator(options ...Option) *Simulator {
	s := &Simulator{}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *Simulator) IsInstalled(ctx context.Context) (bool, error) {
	return true, nil
}

func (s *Simulator) Execute(ctx context.Context, request *backend.ExecuteRequest) (*backend.UnifiedResult, error) {
	circuit := request.Circuit
	if err := circuit.Validate(); err != nil {
		return nil, backend.NewExecutionError(request.BackendID, "invalid circuit: %s", err)
	}
	if circuit.NumQubits > MaxQubits {
		return nil, backend.NewExecutionError(request.BackendID,
			"circuit has %d qubits, simulator supports at most %d", circuit.NumQubits, MaxQubits)
	}
	if len(circuit.MeasuredClbits()) == 0 {
		return nil, backend.NewExecutionError(request.BackendID, "circuit has no measurements")
	}

	state := newStatevector(circuit.NumQubits)

	for _, gate := range circuit.Gates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		switch gate.Name {
		case models.GateH:
			state.applyH(gate.Qubits[0])
		case models.GateX:
			state.applyX(gate.Qubits[0])
		case models.GateCX:
			state.applyCX(gate.Qubits[0], gate.Qubits[1])
		case models.GateRZ:
			state.applyRZ(gate.Qubits[0], gate.Params[0])
		case models.GateMeasure:
			// measurement is deferred to sampling time
		}
	}

	clbitSources := backend.MeasurementMap(circuit)

	counts := s.sample(state, clbitSources, circuit.NumClbits, request.Shots)

	log.Ctx(ctx).Debug().
		Str("RunID", request.RunID).
		Int("Shots", request.Shots).
		Int("NumQubits", circuit.NumQubits).
		Msg("simulated circuit")

	return &backend.UnifiedResult{
		BackendName:   BackendName,
		Shots:         request.Shots,
		NumQubits:     circuit.NumQubits,
		Counts:        counts,
		Probabilities: backend.CountsToProbabilities(counts, request.Shots),
	}, nil
}

// sample draws shots outcomes from the final state and maps measured qubits
// onto the classical register. Unmeasured clbits read as 0.
func (s *Simulator) sample(state *statevector, clbitSources map[int]int, numClbits int, shots int) map[string]int {
	cumulative := state.cumulativeProbabilities()

	s.mtx.Lock()
	rng := s.rng
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63())) //nolint:gosec // sampling, not crypto
		s.rng = rng
	}

	counts := make(map[string]int)
	for shot := 0; shot < shots; shot++ {
		r := rng.Float64()
		outcome := sort.SearchFloat64s(cumulative, r)
		if outcome == len(cumulative) {
			outcome = len(cumulative) - 1
		}
		counts[backend.RenderOutcome(uint64(outcome), clbitSources, numClbits)]++
	}
	s.mtx.Unlock()

	return counts
}

// statevector indexes amplitudes with qubit q at bit position q, so basis
// state |q1 q0> = |10> lives at index 2.
type statevector struct {
	amplitudes []complex128
	numQubits  int
}

func newStatevector(numQubits int) *statevector {
	amplitudes := make([]complex128, 1<<numQubits)
	amplitudes[0] = 1
	return &statevector{amplitudes: amplitudes, numQubits: numQubits}
}

func (v *statevector) applyH(qubit int) {
	mask := 1 << qubit
	norm := complex(1/math.Sqrt2, 0)
	for i := range v.amplitudes {
		if i&mask == 0 {
			a, b := v.amplitudes[i], v.amplitudes[i|mask]
			v.amplitudes[i] = norm * (a + b)
			v.amplitudes[i|mask] = norm * (a - b)
		}
	}
}

func (v *statevector) applyX(qubit int) {
	mask := 1 << qubit
	for i := range v.amplitudes {
		if i&mask == 0 {
			v.amplitudes[i], v.amplitudes[i|mask] = v.amplitudes[i|mask], v.amplitudes[i]
		}
	}
}

func (v *statevector) applyCX(control, target int) {
	controlMask := 1 << control
	targetMask := 1 << target
	for i := range v.amplitudes {
		if i&controlMask != 0 && i&targetMask == 0 {
			v.amplitudes[i], v.amplitudes[i|targetMask] = v.amplitudes[i|targetMask], v.amplitudes[i]
		}
	}
}

func (v *statevector) applyRZ(qubit int, theta float64) {
	mask := 1 << qubit
	phase0 := cmplx.Exp(complex(0, -theta/2))
	phase1 := cmplx.Exp(complex(0, theta/2))
	for i := range v.amplitudes {
		if i&mask == 0 {
			v.amplitudes[i] *= phase0
		} else {
			v.amplitudes[i] *= phase1
		}
	}
}

func (v *statevector) cumulativeProbabilities() []float64 {
	cumulative := make([]float64, len(v.amplitudes))
	total := 0.0
	for i, amplitude := range v.amplitudes {
		total += real(amplitude)*real(amplitude) + imag(amplitude)*imag(amplitude)
		cumulative[i] = total
	}
	// guard against accumulated float error leaving the last bucket short
	cumulative[len(cumulative)-1] = math.Max(cumulative[len(cumulative)-1], 1.0)
	return cumulative
}

var _ backend.Backend = (*Simulator)(nil)
