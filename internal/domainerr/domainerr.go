// Package domainerr collects the session-level error kinds from
// spec.md §7 that are not already specific to one component (see
// access.UnsupportedPlatformError/AccessDeniedError/ReadFailedError/
// WriteFailedError/OutOfBoundsError and codec.ErrUnsupportedType).
package domainerr

import "fmt"

// InvalidInputError flags malformed numeric input or a malformed
// address bound.
type InvalidInputError struct {
	Reason string
}

func (e InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// ConfirmationMissingError is returned when a write is requested
// against a live target without recorded consent.
type ConfirmationMissingError struct{}

func (e ConfirmationMissingError) Error() string {
	return "write rejected: confirmation phrase not recorded for this session"
}

// NoCandidatesError means a dynamic controller exhausted its step
// budget with nothing to report.
type NoCandidatesError struct{}

func (e NoCandidatesError) Error() string {
	return "dynamic scan exhausted its step budget with no candidates"
}
