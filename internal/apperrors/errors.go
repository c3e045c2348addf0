// Package apperrors defines the error kinds the lifecycle engine surfaces.
// Callers match them with errors.Is; wrap with fmt.Errorf("%w: ...") to add
// the human-readable reason.
package apperrors

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrCodeMismatch = errors.New("verification code mismatch")
)
