package backend

import "fmt"

type ErrUnsupportedBackend struct {
	BackendID string
}

func NewErrUnsupportedBackend(backendID string) ErrUnsupportedBackend {
	return ErrUnsupportedBackend{BackendID: backendID}
}

func (e ErrUnsupportedBackend) Error() string {
	return fmt.Sprintf("backend %q does not belong to any supported family", e.BackendID)
}

// ExecutionError is a failure reported by the backend itself, as opposed to
// a transport or credential problem. It carries the vendor's message so the
// user can see why their run failed.
type ExecutionError struct {
	BackendID string
	Message   string
}

func NewExecutionError(backendID, format string, args ...any) *ExecutionError {
	return &ExecutionError{
		BackendID: backendID,
		Message:   fmt.Sprintf(format, args...),
	}
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("backend %s: %s", e.BackendID, e.Message)
}
