package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrValidation          = errors.New("validation failed")
	ErrConflict            = errors.New("conflict")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	ErrPartialPosting      = errors.New("partial posting failure")
	ErrForbidden           = errors.New("forbidden")
)

// InsufficientStockError carries how much was actually available. Medicine is
// set instead of the batch fields when FIFO allocation across batches fell short.
type InsufficientStockError struct {
	Medicine    string
	BatchID     string
	BatchNumber string
	Requested   int
	Available   int
}

func (e *InsufficientStockError) Error() string {
	name := e.BatchNumber
	if name == "" {
		name = e.BatchID
	}
	if name == "" {
		return fmt.Sprintf("insufficient sellable stock for medicine %s: requested %d, available %d", e.Medicine, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient stock in batch %s: requested %d, available %d", name, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// ValidationError reports every rejected input field at once.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Invalid builds a single-field validation error.
func Invalid(field string, reason string) *ValidationError {
	v := NewValidationError()
	v.Add(field, reason)
	return v
}

func (e *ValidationError) Add(field string, reason string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = reason
}

func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil lets callers return a *ValidationError as a plain error without a typed nil.
func (e *ValidationError) OrNil() error {
	if !e.HasErrors() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PartialPostingError means a posting may have left some writes behind and the
// affected records need reconciling.
type PartialPostingError struct {
	Operation   string
	Cause       error
	RollbackErr error
}

func (e *PartialPostingError) Error() string {
	return fmt.Sprintf("%s: partial posting failure: %v (rollback: %v)", e.Operation, e.Cause, e.RollbackErr)
}

func (e *PartialPostingError) Unwrap() []error {
	return []error{ErrPartialPosting, e.Cause}
}
