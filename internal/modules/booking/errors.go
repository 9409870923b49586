package booking

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrSlotAlreadyBooked = errors.New("time slot already booked")
	ErrTransient         = errors.New("reservation store unavailable")

	ErrSessionNotFound    = errors.New("booking session not found")
	ErrSessionBusy        = errors.New("booking session is busy")
	ErrSubmissionInFlight = errors.New("reservation submission already in progress")
	ErrSessionClosed      = errors.New("booking session closed")
	ErrStaleResult        = errors.New("result superseded by a newer selection")
	ErrInvalidStep        = errors.New("operation not allowed in current step")
	ErrSlotUnavailable    = errors.New("time slot not available")
)

// ValidationError lists rejected input fields. It matches ErrValidation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalidField(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}
