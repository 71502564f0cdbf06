package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.
// Throttling (cooldown, quota) is a result, never one of these.

var (
	ErrValidation      = errors.New("validation failed")
	ErrUserNotFound    = errors.New("user not found")
	ErrUserExists      = errors.New("username or email already registered")
	ErrBadgeNotFound   = errors.New("badge not found")
	ErrPersistence     = errors.New("unable to persist progression state")
	ErrVersionConflict = errors.New("user was modified concurrently")
	ErrCooldownActive  = errors.New("note completed within cooldown window")
	ErrDuplicateEvent  = errors.New("event already recorded")
	ErrAIUnavailable   = errors.New("AI generation service unavailable")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
