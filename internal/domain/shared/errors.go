// Package shared contains common domain types, errors, events, and value objects
// that are used across all finance domain packages.
package shared

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrConflict         = errors.New("conflict")
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")

	// Authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrLockNotAcquired        = errors.New("lock not acquired")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "expense", "settlement", "ledger"
	Op      string // Operation that failed, e.g., "Create", "Settle"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Field validation
// ═══════════════════════════════════════════════════════════════════════════

// ValidationError reports one or more invalid fields. Keys are JSON field names.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates a validation error for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: reason}}
}

// Add records another invalid field.
func (e *ValidationError) Add(field, reason string) *ValidationError {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = reason
	return e
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is matches ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldErrors extracts per-field reasons from err, if any.
func FieldErrors(err error) map[string]string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

// Partner domain errors
var (
	ErrPartnerNotFound   = NewDomainError("partner", "Find", ErrNotFound, "partner not found")
	ErrNegativeDebt      = NewDomainError("partner", "ReduceDebt", ErrNegativeValue, "debt cannot go below zero")
	ErrPartnerNotEnabled = NewDomainError("partner", "Resolve", ErrInvalidState, "user is not an owner or partner")
)

// Expense domain errors
var (
	ErrExpenseNotFound      = NewDomainError("expense", "Find", ErrNotFound, "expense not found")
	ErrExpenseAlreadyPaid   = NewDomainError("expense", "MarkPaid", ErrConflict, "expense is already paid")
	ErrExpenseHasRepayments = NewDomainError("expense", "Delete", ErrConflict, "expense shares have already received repayments")
	ErrSplitMisconfigured   = NewDomainError("expense", "Split", ErrConflict, "expense split configuration is inconsistent")
)

// Ledger domain errors
var (
	ErrTransactionNotFound = NewDomainError("ledger", "Find", ErrNotFound, "transaction not found")
	ErrAlreadyVerified     = NewDomainError("ledger", "Verify", ErrStateTransition, "transaction is already verified")
)

// Payroll domain errors
var (
	ErrTeacherNotFound         = NewDomainError("payroll", "FindTeacher", ErrNotFound, "teacher not found")
	ErrUnknownCompensationType = NewDomainError("payroll", "Calculate", ErrInvalidInput, "unknown compensation type")
)

// Settings domain errors
var (
	ErrSettingsNotFound = NewDomainError("settings", "Load", ErrNotFound, "configuration has not been initialised")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error reports a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrAlreadyProcessed)
}

// IsForbidden checks if the caller lacks permission.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsUnauthorized checks if the caller identity is missing.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrLockNotAcquired)
}
