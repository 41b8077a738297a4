package models

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// GateKind is the closed set of gate operations a circuit may contain.
// Anything outside this set fails validation before the circuit is persisted.
type GateKind string

const (
	GateH       GateKind = "h"
	GateX       GateKind = "x"
	GateCX      GateKind = "cx"
	GateRZ      GateKind = "rz"
	GateMeasure GateKind = "measure"
)

// GateKinds lists every supported gate kind.
func GateKinds() []GateKind {
	return []GateKind{GateH, GateX, GateCX, GateRZ, GateMeasure}
}

func (k GateKind) IsValid() bool {
	switch k {
	case GateH, GateX, GateCX, GateRZ, GateMeasure:
		return true
	}
	return false
}

// qubitArity returns how many qubit operands the kind requires.
func (k GateKind) qubitArity() int {
	if k == GateCX {
		return 2
	}
	return 1
}

// Gate is a single operation in a circuit. Params is only meaningful for
// rotation gates, and Clbits only for measurements.
type Gate struct {
	Name   GateKind  `json:"name"`
	Qubits []int     `json:"qubits"`
	Params []float64 `json:"params,omitempty"`
	Clbits []int     `json:"clbits,omitempty"`
}

// Normalize canonicalizes optional fields so that semantically identical
// gates serialize identically. Empty and nil slices hash the same way.
func (g *Gate) Normalize() {
	if len(g.Params) == 0 {
		g.Params = nil
	}
	if len(g.Clbits) == 0 {
		g.Clbits = nil
	}
}

// Validate checks the gate against the closed variant set and the circuit's
// register sizes.
func (g *Gate) Validate(numQubits, numClbits int) error {
	mErr := new(multierror.Error)

	if !g.Name.IsValid() {
		mErr = multierror.Append(mErr, fmt.Errorf("unsupported gate name: %q", string(g.Name)))
		return mErr.ErrorOrNil()
	}

	if g.Name == GateMeasure {
		if len(g.Qubits) == 0 {
			mErr = multierror.Append(mErr, errors.New("measure gate requires at least one qubit"))
		}
		if len(g.Clbits) != len(g.Qubits) {
			mErr = multierror.Append(mErr, fmt.Errorf(
				"measure gate maps %d qubits to %d clbits", len(g.Qubits), len(g.Clbits)))
		}
	} else {
		if len(g.Qubits) != g.Name.qubitArity() {
			mErr = multierror.Append(mErr, fmt.Errorf(
				"gate %s expects %d qubits, got %d", g.Name, g.Name.qubitArity(), len(g.Qubits)))
		}
		if len(g.Clbits) != 0 {
			mErr = multierror.Append(mErr, fmt.Errorf("gate %s does not accept clbits", g.Name))
		}
	}

	if g.Name == GateRZ {
		if len(g.Params) != 1 {
			mErr = multierror.Append(mErr, fmt.Errorf(
				"gate rz expects exactly one parameter, got %d", len(g.Params)))
		}
	} else if len(g.Params) != 0 {
		mErr = multierror.Append(mErr, fmt.Errorf("gate %s does not accept parameters", g.Name))
	}

	for _, q := range g.Qubits {
		if q < 0 || q >= numQubits {
			mErr = multierror.Append(mErr, fmt.Errorf(
				"gate %s qubit index %d out of range [0,%d)", g.Name, q, numQubits))
		}
	}
	for _, c := range g.Clbits {
		if c < 0 || c >= numClbits {
			mErr = multierror.Append(mErr, fmt.Errorf(
				"gate %s clbit index %d out of range [0,%d)", g.Name, c, numClbits))
		}
	}

	return mErr.ErrorOrNil()
}
