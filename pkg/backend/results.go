package backend

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/qubi-project/qubi/pkg/models"
)

// Vendors disagree on how to spell a measurement outcome: IonQ reports
// decimal integers, IBM reports hex strings, simulators report raw
// bitstrings. Everything is normalized to a zero-padded binary string of
// the classical register width, clbit 0 rightmost.

// NormalizeBitstring rewrites a vendor outcome key as a canonical bitstring
// of the given width.
func NormalizeBitstring(key string, width int) (string, error) {
	if width <= 0 {
		return "", fmt.Errorf("cannot normalize outcome %q: register width must be positive", key)
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("cannot normalize an empty outcome key")
	}

	if isBitstring(key) {
		if len(key) > width {
			return "", fmt.Errorf("outcome %q is wider than the %d-bit register", key, width)
		}
		return leftPad(key, width), nil
	}

	var value uint64
	var err error
	if strings.HasPrefix(key, "0x") || strings.HasPrefix(key, "0X") {
		value, err = strconv.ParseUint(key[2:], 16, 64)
	} else {
		value, err = strconv.ParseUint(key, 10, 64)
	}
	if err != nil {
		return "", fmt.Errorf("outcome %q is not a bitstring, hex or decimal value: %w", key, err)
	}

	bits := strconv.FormatUint(value, 2)
	if len(bits) > width {
		return "", fmt.Errorf("outcome %q does not fit a %d-bit register", key, width)
	}
	return leftPad(bits, width), nil
}

func isBitstring(key string) bool {
	for _, r := range key {
		if r != '0' && r != '1' {
			return false
		}
	}
	return true
}

func leftPad(bits string, width int) string {
	if len(bits) >= width {
		return bits
	}
	return strings.Repeat("0", width-len(bits)) + bits
}

// MeasurementMap returns the clbit -> qubit assignments made by a circuit's
// measure gates, in program order. A later measure of the same clbit
// overwrites an earlier one.
func MeasurementMap(circuit models.Circuit) map[int]int {
	sources := make(map[int]int)
	for _, gate := range circuit.Gates {
		if gate.Name != models.GateMeasure {
			continue
		}
		for i, qubit := range gate.Qubits {
			sources[gate.Clbits[i]] = qubit
		}
	}
	return sources
}

// RenderOutcome writes a sampled qubit basis state into the classical
// register, clbit 0 rightmost. Unmeasured clbits read as 0.
func RenderOutcome(outcome uint64, clbitSources map[int]int, numClbits int) string {
	bits := make([]byte, numClbits)
	for i := range bits {
		bits[i] = '0'
	}
	for clbit, qubit := range clbitSources {
		if outcome&(1<<uint(qubit)) != 0 {
			bits[numClbits-1-clbit] = '1'
		}
	}
	return string(bits)
}

// NormalizeCounts rewrites every outcome key to its canonical bitstring,
// merging keys that collapse to the same outcome.
func NormalizeCounts(counts map[string]int, width int) (map[string]int, error) {
	normalized := make(map[string]int, len(counts))
	for key, count := range counts {
		bits, err := NormalizeBitstring(key, width)
		if err != nil {
			return nil, err
		}
		normalized[bits] += count
	}
	return normalized, nil
}

// CountsToProbabilities derives the empirical distribution from counts.
func CountsToProbabilities(counts map[string]int, shots int) map[string]float64 {
	probabilities := make(map[string]float64, len(counts))
	if shots <= 0 {
		return probabilities
	}
	for key, count := range counts {
		probabilities[key] = float64(count) / float64(shots)
	}
	return probabilities
}

// ProbabilitiesToCounts turns a probability distribution into integer counts
// that sum exactly to shots, using largest-remainder apportionment. Ties are
// broken by key so the result is deterministic.
func ProbabilitiesToCounts(probabilities map[string]float64, shots int) map[string]int {
	counts := make(map[string]int, len(probabilities))
	if shots <= 0 || len(probabilities) == 0 {
		return counts
	}

	type remainder struct {
		key      string
		fraction float64
	}
	remainders := make([]remainder, 0, len(probabilities))

	allocated := 0
	for key, p := range probabilities {
		exact := p * float64(shots)
		floor := int(math.Floor(exact))
		counts[key] = floor
		allocated += floor
		remainders = append(remainders, remainder{key: key, fraction: exact - float64(floor)})
	}

	sort.Slice(remainders, func(i, j int) bool {
		if remainders[i].fraction != remainders[j].fraction {
			return remainders[i].fraction > remainders[j].fraction
		}
		return remainders[i].key < remainders[j].key
	})

	for i := 0; allocated < shots && i < len(remainders); i++ {
		counts[remainders[i].key]++
		allocated++
	}

	return counts
}
