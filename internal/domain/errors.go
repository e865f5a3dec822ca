package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrJobNotFound is returned when no queued job has the given id
	ErrJobNotFound = errors.New("job not found")

	// ErrHistoryNotFound is returned when no history record has the given id
	ErrHistoryNotFound = errors.New("history record not found")
)

// ValidationError reports malformed input. Nothing was changed.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// InvalidStateError reports an operation that is not allowed for the job's current status
type InvalidStateError struct {
	JobID  string
	Status JobStatus
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s job %s while %s", e.Op, e.JobID, e.Status)
}

// CapabilityError wraps a failure of the external download capability.
// Message is the simplified text shown to users.
type CapabilityError struct {
	Message string
	Err     error
}

func (e *CapabilityError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// StoreError wraps a history persistence failure
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("history store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsInvalidState reports whether err is an InvalidStateError
func IsInvalidState(err error) bool {
	var s *InvalidStateError
	return errors.As(err, &s)
}
