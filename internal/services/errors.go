package services

import "errors"

var (
	// ErrValidation is matched by every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates an authentication failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports an input that cannot be used to build an account.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
