package models

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

// Circuit is an immutable, content-addressed artifact. Its identity is the
// hash of its canonical serialization (see canonical.go), so two structurally
// equal circuits always share an ID and are stored at most once.
type Circuit struct {
	Gates     []Gate `json:"gates"`
	NumQubits int    `json:"num_qubits"`
	NumClbits int    `json:"num_clbits"`
}

// Normalize canonicalizes the circuit in place. An absent gate list becomes
// an empty one, and every gate is normalized, so equal circuits serialize to
// identical bytes no matter how the input was shaped.
func (c *Circuit) Normalize() {
	if c.Gates == nil {
		c.Gates = []Gate{}
	}
	for i := range c.Gates {
		c.Gates[i].Normalize()
	}
}

// Validate checks the circuit is well formed. An empty gate list is valid.
func (c *Circuit) Validate() error {
	mErr := new(multierror.Error)

	if c.NumQubits < 0 {
		mErr = multierror.Append(mErr, errors.New("num_qubits must not be negative"))
	}
	if c.NumClbits < 0 {
		mErr = multierror.Append(mErr, errors.New("num_clbits must not be negative"))
	}
	if mErr.Len() > 0 {
		return mErr.ErrorOrNil()
	}

	for i := range c.Gates {
		if err := c.Gates[i].Validate(c.NumQubits, c.NumClbits); err != nil {
			mErr = multierror.Append(mErr, err)
		}
	}

	return mErr.ErrorOrNil()
}

// MeasuredClbits returns the clbit indices written by measure gates, in
// program order. A qubit measured twice into the same clbit only counts once.
func (c *Circuit) MeasuredClbits() []int {
	seen := make(map[int]bool)
	var clbits []int
	for _, g := range c.Gates {
		if g.Name != GateMeasure {
			continue
		}
		for _, cl := range g.Clbits {
			if !seen[cl] {
				seen[cl] = true
				clbits = append(clbits, cl)
			}
		}
	}
	return clbits
}
