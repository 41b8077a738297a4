package models

// RunStateType is the lifecycle state of a run request.
// PENDING -> RUNNING -> {COMPLETED, FAILED}; no transition is reversible.
type RunStateType int

const (
	RunStateUndefined RunStateType = iota // must be first

	// RunStatePending is set when the request is created, before any work starts.
	RunStatePending

	// RunStateRunning is set when a worker begins active execution.
	RunStateRunning

	// RunStateCompleted means a successful result was persisted.
	RunStateCompleted

	// RunStateFailed means an error result was persisted.
	RunStateFailed
)

var runStateNames = map[RunStateType]string{
	RunStateUndefined: "UNDEFINED",
	RunStatePending:   "PENDING",
	RunStateRunning:   "RUNNING",
	RunStateCompleted: "COMPLETED",
	RunStateFailed:    "FAILED",
}

func (s RunStateType) String() string {
	if name, ok := runStateNames[s]; ok {
		return name
	}
	return "UNDEFINED"
}

// IsUndefined returns true if the state is not set.
func (s RunStateType) IsUndefined() bool {
	return s == RunStateUndefined
}

// IsTerminal returns true if no further state change can be expected.
func (s RunStateType) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateFailed
}

func (s RunStateType) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RunStateType) UnmarshalText(text []byte) error {
	name := string(text)
	for typ, typName := range runStateNames {
		if typName == name {
			*s = typ
			return nil
		}
	}
	*s = RunStateUndefined
	return nil
}
