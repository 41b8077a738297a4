package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalGate and canonicalCircuit pin the serialized field order to the
// sorted-key order of the original wire format, so the hash of a circuit is
// stable across releases. Do not reorder these fields.
type canonicalGate struct {
	Clbits []int     `json:"clbits,omitempty"`
	Name   GateKind  `json:"name"`
	Params []float64 `json:"params,omitempty"`
	Qubits []int     `json:"qubits"`
}

type canonicalCircuit struct {
	Gates     []canonicalGate `json:"gates"`
	NumClbits int             `json:"num_clbits"`
	NumQubits int             `json:"num_qubits"`
}

// CanonicalBytes returns the canonical serialization of the circuit: compact
// JSON with a fixed field order and normalized optional fields. It is a pure
// function of the circuit's logical content.
func CanonicalBytes(c Circuit) ([]byte, error) {
	canonical := canonicalCircuit{
		Gates:     make([]canonicalGate, 0, len(c.Gates)),
		NumClbits: c.NumClbits,
		NumQubits: c.NumQubits,
	}
	for _, g := range c.Gates {
		g.Normalize() // operates on the loop copy, not the caller's gate
		canonical.Gates = append(canonical.Gates, canonicalGate{
			Clbits: g.Clbits,
			Name:   g.Name,
			Params: g.Params,
			Qubits: g.Qubits,
		})
	}

	return json.Marshal(canonical)
}

// HashCircuit derives the circuit's content address: the hex sha256 digest of
// its canonical serialization. This is a deduplication key, not a security
// boundary.
func HashCircuit(c Circuit) (string, error) {
	data, err := CanonicalBytes(c)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256(data)
	return hex.EncodeToString(digest[:]), nil
}
