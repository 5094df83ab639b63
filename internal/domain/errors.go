package domain

import (
	"errors"
	"strings"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrGatewayUnavailable   = errors.New("gateway unavailable")
)

// ValidationError carries every business-rule rejection for a request.
// Capacity losses from concurrent bookings surface through the same type,
// so callers cannot distinguish a race loss from a stale read.
type ValidationError struct {
	Reasons []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Reasons, "; ")
}

func (e *ValidationError) Add(reason string) {
	e.Reasons = append(e.Reasons, reason)
}

func (e *ValidationError) HasReasons() bool {
	return len(e.Reasons) > 0
}

func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
