package idgen

import (
	"strings"

	"github.com/google/uuid"
)

const (
	RunIDPrefix   = "run-"
	ShortIDLength = 8
)

// NewRunID returns a new opaque run request identifier.
func NewRunID() string {
	return RunIDPrefix + uuid.NewString()
}

// ShortRunID shortens a run id for log output. Lookups always use the full id.
func ShortRunID(id string) string {
	trimmed := strings.TrimPrefix(id, RunIDPrefix)
	if len(trimmed) <= ShortIDLength {
		return trimmed
	}
	return trimmed[:ShortIDLength]
}
