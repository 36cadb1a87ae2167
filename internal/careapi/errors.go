package careapi

import (
	"errors"
	"fmt"
	"strings"

	"carecal/internal/model"
)

// Sentinel errors for the booking mutation taxonomy.
var (
	// ErrNotFound covers a missing or already-cancelled mutation target.
	ErrNotFound = errors.New("visit not found")

	// ErrAlreadyCancelled is the server rejecting a duplicate cancel.
	ErrAlreadyCancelled = errors.New("visit already cancelled")
)

// ValidationError carries per-field server validation messages. It is
// surfaced verbatim and never retried.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// CapacityConflictError is the server declining a full slot, carrying
// alternative slot suggestions the caller can offer instead.
type CapacityConflictError struct {
	Suggestions []model.SlotSuggestion
}

func (e *CapacityConflictError) Error() string {
	return fmt.Sprintf("slot at capacity (%d alternatives offered)", len(e.Suggestions))
}
