// Package apperr defines the sentinel errors shared across famly
// components. Callers classify failures with errors.Is and wrap with
// fmt.Errorf("...: %w", err) to add context.
package apperr

import "errors"

var (
	// ErrValidation marks a rejected mutation: a required field is
	// missing or an enum value is out of range.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an operation against an id that is not in the
	// current collection. State is left unchanged.
	ErrNotFound = errors.New("not found")

	// ErrPermissionDenied marks an action the acting member is not
	// allowed to take, such as completing an event they are not part of.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrExternalService marks a failed call to the completion service.
	// It is downgraded to a conversational message at the chat boundary.
	ErrExternalService = errors.New("external service unavailable")

	// ErrMalformedInterchange marks calendar interchange data that could
	// not be parsed at all. Individual bad blocks are skipped instead.
	ErrMalformedInterchange = errors.New("malformed interchange data")
)
