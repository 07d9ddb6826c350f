// Package errors provides centralized error definitions for the engine.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Ingestion errors.
var (
	// ErrInvalidPost indicates a malformed post was rejected at the ingestion boundary.
	ErrInvalidPost = errors.New("invalid post")

	// ErrFutureTimestamp indicates a post timestamp beyond the clock-skew tolerance.
	ErrFutureTimestamp = errors.New("timestamp in the future")
)

// Scoring errors.
var (
	// ErrInsufficientData indicates an account had no posts in the window and was
	// omitted from the scoring output rather than assigned a default score.
	ErrInsufficientData = errors.New("insufficient data")
)

// Pass errors.
var (
	// ErrPassTimeout indicates a pipeline pass exceeded its deadline and was aborted.
	// The previously published summary is retained.
	ErrPassTimeout = errors.New("pass deadline exceeded")

	// ErrPassInProgress indicates a pass for the same narrative is already running.
	ErrPassInProgress = errors.New("pass already in progress")
)

// Query errors.
var (
	// ErrNotFound indicates no completed pass exists for the requested narrative.
	ErrNotFound = errors.New("not found")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
