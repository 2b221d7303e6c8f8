package services

import (
	"errors"
	"fmt"

	"github.com/welisten/apiserver/internal/store"
)

// ErrNotFound is returned when the addressed feedback or comment does not
// exist or is hidden as a duplicate.
var ErrNotFound = store.ErrNotFound

// ValidationError rejects malformed input before anything is mutated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DuplicateConflictError reports a submission rejected as a restatement of
// existing feedback.
type DuplicateConflictError struct {
	SimilarTo []int64
}

func (e *DuplicateConflictError) Error() string {
	return "Similar feedback already exists"
}

// PersistenceError wraps a store failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// persistence passes store.ErrNotFound through untouched and wraps any other
// store failure.
func persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
