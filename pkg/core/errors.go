// Package core provides the main Mnemos client: configuration loading and
// the facade over scoring, retrieval, decay, and consolidation.
package core

import (
	"errors"
	"fmt"
)

// Predefined errors for common failure scenarios.
var (
	// ErrInvalidConfig indicates that the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates that the provided input is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNoEmbedder indicates that an operation needing an embedder was
	// called on a client configured without one.
	ErrNoEmbedder = errors.New("no embedder configured")
)

// EngineError wraps errors with operation context.
//
// It provides additional context about which operation failed,
// making error messages more informative for debugging.
//
// Example:
//
//	err := &EngineError{
//	    Op:  "Retrieve",
//	    Err: ErrNoEmbedder,
//	}
//	// Error() returns: "mnemos: Retrieve: no embedder configured"
type EngineError struct {
	// Op is the name of the operation that failed.
	Op string

	// Err is the underlying error.
	Err error
}

// Error returns a formatted error message.
//
// The format is: "mnemos: <Op>: <Err>"
func (e *EngineError) Error() string {
	return fmt.Sprintf("mnemos: %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
//
// This allows using errors.Is() and errors.As() with EngineError.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// NewEngineError creates a new EngineError wrapping the given error.
//
// If err is nil, returns nil. This allows safe error wrapping:
//
//	if err != nil {
//	    return NewEngineError("Retrieve", err)
//	}
//
// Parameters:
//   - op: Name of the operation (e.g., "Retrieve", "ApplyDecay")
//   - err: The underlying error to wrap
//
// Returns an EngineError, or nil if err is nil.
func NewEngineError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &EngineError{
		Op:  op,
		Err: err,
	}
}
