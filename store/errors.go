package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation addresses an id that
	// does not exist. Never retried.
	ErrNotFound = errors.New("record not found")

	// ErrPrerequisiteNotMet is returned when an inspection lists a
	// prerequisite that is not a completed inspection. The schedule is
	// left unchanged.
	ErrPrerequisiteNotMet = errors.New("prerequisites must be completed before scheduling this inspection")
)

// PrecheckError reports a validation failure detected before any
// mutation. The owning store is left unchanged.
type PrecheckError struct {
	Field  string
	Reason string
}

func (e *PrecheckError) Error() string {
	return fmt.Sprintf("precheck failed: %s: %s", e.Field, e.Reason)
}

// InitializationError wraps any failure while wiring the store graph.
// It is fatal to application start.
type InitializationError struct {
	Err error
}

func (e *InitializationError) Error() string {
	return "store initialization failed: " + e.Err.Error()
}

func (e *InitializationError) Unwrap() error { return e.Err }
