package ibm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qubi-project/qubi/pkg/models"
)

// QASMProgram renders a circuit as an OpenQASM 3 program, which is what the
// IBM runtime accepts as a job payload.
func QASMProgram(circuit models.Circuit) (string, error) {
	var sb strings.Builder
	sb.WriteString("OPENQASM 3.0;\n")
	sb.WriteString("include \"stdgates.inc\";\n")
	fmt.Fprintf(&sb, "qubit[%d] q;\n", circuit.NumQubits)
	fmt.Fprintf(&sb, "bit[%d] c;\n", circuit.NumClbits)

	for _, gate := range circuit.Gates {
		switch gate.Name {
		case models.GateH, models.GateX:
			fmt.Fprintf(&sb, "%s q[%d];\n", gate.Name, gate.Qubits[0])
		case models.GateCX:
			fmt.Fprintf(&sb, "cx q[%d], q[%d];\n", gate.Qubits[0], gate.Qubits[1])
		case models.GateRZ:
			fmt.Fprintf(&sb, "rz(%s) q[%d];\n", formatAngle(gate.Params[0]), gate.Qubits[0])
		case models.GateMeasure:
			for i, qubit := range gate.Qubits {
				fmt.Fprintf(&sb, "c[%d] = measure q[%d];\n", gate.Clbits[i], qubit)
			}
		default:
			return "", fmt.Errorf("gate %s cannot be expressed in OpenQASM 3", gate.Name)
		}
	}

	return sb.String(), nil
}

func formatAngle(theta float64) string {
	return strconv.FormatFloat(theta, 'g', -1, 64)
}
