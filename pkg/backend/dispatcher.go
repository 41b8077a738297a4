package backend

import "strings"

// FamilyForBackendID maps a concrete backend id to its family. Ids are
// vendor-prefixed: ionq_simulator, ionq_qpu.aria-1, ibm, ibm_brisbane,
// sim_local, simulator.
func FamilyForBackendID(backendID string) (string, error) {
	switch {
	case strings.HasPrefix(backendID, "sim"):
		return FamilySimulator, nil
	case strings.HasPrefix(backendID, "ionq"):
		return FamilyIonQ, nil
	case strings.HasPrefix(backendID, "ibm"):
		return FamilyIBM, nil
	default:
		return "", NewErrUnsupportedBackend(backendID)
	}
}
