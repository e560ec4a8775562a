// Package faults defines the error taxonomy shared by the ALS core.
// Core components return these typed errors; only the outermost agent
// layer converts them into degrade-gracefully behavior.
package faults

import (
	"errors"
	"fmt"
)

// ValidationError reports a caller-supplied value outside its domain.
// Rejected at the boundary, never stored.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s (got %v)", e.Field, e.Message, e.Value)
}

// StorageError reports a connection, lock, or integrity failure from
// the persistence layer. Transient lock failures are retried before
// one of these surfaces.
type StorageError struct {
	Op        string
	Retryable bool
	Cause     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

// ConfigurationError reports a missing or invalid external signal.
// Callers fall back to a documented safe default.
type ConfigurationError struct {
	Entity  string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error for %s: %s", e.Entity, e.Message)
}

// ComputationError reports an unexpected failure inside schedule, ramp,
// or mode math. Caught at the component boundary and converted to a
// safe fallback result with a reported reason.
type ComputationError struct {
	Component string
	Cause     error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("computation error in %s: %v", e.Component, e.Cause)
}

func (e *ComputationError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether err is a storage error worth retrying
// (database locked or busy).
func IsRetryable(err error) bool {
	var se *StorageError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// IsValidation reports whether err is a validation error.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
