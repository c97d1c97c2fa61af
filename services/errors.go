package services

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced client, invoice or payment does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable is returned when an operation needs a collaborator that is not configured.
	ErrUnavailable = errors.New("dependency not configured")
)

// ValidationError reports a field constraint violated before reaching the store.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// StoreError wraps any failure reported by the record store or object storage.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

func notFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
