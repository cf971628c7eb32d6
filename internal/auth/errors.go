package auth

import "errors"

// Validation messages shown next to the login form
const (
	MsgMissingFields    = "Please fill in all required fields"
	MsgNameRequired     = "Name is required for sign up"
	MsgPasswordMismatch = "Passwords do not match"
	MsgPasswordTooShort = "Password must be at least 6 characters long"
)

// MinPasswordLength applies to sign up only
const MinPasswordLength = 6

// ValidationError is a local form-input failure. It is never persisted.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidationError reports whether err is, or wraps, a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
