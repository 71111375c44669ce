// Package errors provides custom error types for the spoolsync system.
// These errors enable programmatic error checking across the reconciliation
// core and map backend failures onto retryable and fatal categories.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is reports whether any error in err's chain matches target.
// It's an alias for the standard library errors.Is for convenience.
var Is = errors.Is

// As finds the first error in err's chain that matches target.
// It's an alias for the standard library errors.As for convenience.
var As = errors.As

// Common sentinel errors for the spoolsync system
var (
	// ErrNotFound indicates that a requested profile was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidGraph indicates that a profile graph failed validation
	ErrInvalidGraph = errors.New("invalid profile graph")

	// ErrBackendUnavailable indicates that the backend is temporarily unreachable
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrOperationRejected indicates that the backend refused an operation
	ErrOperationRejected = errors.New("operation rejected")

	// ErrConflict indicates an equal-revision disagreement between sides
	ErrConflict = errors.New("conflict")

	// ErrPassInProgress indicates that a reconciliation pass already holds the store
	ErrPassInProgress = errors.New("reconciliation pass in progress")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")
)

// CycleError indicates that the parent relation of a profile set contains a
// cycle. The store refuses to construct when this is returned.
type CycleError struct {
	ProfileIDs []string // profiles left unvisited by the topological sort
}

// Error implements the error interface
func (e *CycleError) Error() string {
	return fmt.Sprintf("cycle detected in profile parent chain involving: %s", strings.Join(e.ProfileIDs, ", "))
}

// Is implements errors.Is support
func (e *CycleError) Is(target error) bool {
	return target == ErrInvalidGraph
}

// UnknownParentError indicates a profile references a parent that does not
// exist in the loaded set.
type UnknownParentError struct {
	ProfileID string
	ParentID  string
}

// Error implements the error interface
func (e *UnknownParentError) Error() string {
	return fmt.Sprintf("profile %s references unknown parent %s", e.ProfileID, e.ParentID)
}

// Is implements errors.Is support
func (e *UnknownParentError) Is(target error) bool {
	return target == ErrInvalidGraph
}

// AmbiguousTagRuleError indicates two tag rules share tag name and precedence
// but disagree on the value, so resolution cannot pick a winner.
type AmbiguousTagRuleError struct {
	ProfileID string
	Property  string
	Tag       string
	Values    []string
}

// Error implements the error interface
func (e *AmbiguousTagRuleError) Error() string {
	return fmt.Sprintf("ambiguous tag rules for profile %s property %s: tag %q maps to multiple values %v at equal precedence",
		e.ProfileID, e.Property, e.Tag, e.Values)
}

// Is implements errors.Is support
func (e *AmbiguousTagRuleError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ConflictError represents an equal-revision disagreement that must be
// surfaced for manual resolution rather than auto-resolved.
type ConflictError struct {
	ProfileID string
	Property  string
	Local     string
	Remote    string
}

// Error implements the error interface
func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on profile %s property %s: local %q vs remote %q at equal revision",
		e.ProfileID, e.Property, e.Local, e.Remote)
}

// Is implements errors.Is support
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// BackendError represents an error returned by the remote inventory backend
type BackendError struct {
	Operation  string // "fetch", "create", "update", "delete"
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("backend error during %s (status %d): %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support. Server-side and transport failures are
// retryable; client-side rejections are not.
func (e *BackendError) Is(target error) bool {
	if e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != 429 {
		return target == ErrOperationRejected
	}
	return target == ErrBackendUnavailable
}

// Retryable reports whether the error is worth retrying with backoff.
func (e *BackendError) Retryable() bool {
	return errors.Is(e, ErrBackendUnavailable)
}

// OperationRejectedError indicates the backend refused a sync operation for a
// reason that will not change on retry.
type OperationRejectedError struct {
	OperationKey string
	ProfileID    string
	Message      string
	Err          error
}

// Error implements the error interface
func (e *OperationRejectedError) Error() string {
	return fmt.Sprintf("operation %s for profile %s rejected: %s", e.OperationKey, e.ProfileID, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *OperationRejectedError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *OperationRejectedError) Is(target error) bool {
	return target == ErrOperationRejected
}

// PartialSyncError reports a pass that ended with some operations confirmed
// and others abandoned. The per-operation states travel with the error so the
// caller sees the full picture instead of a single failure flag.
type PartialSyncError struct {
	Confirmed int
	Failed    int
	Abandoned int
	States    map[string]string // operation key -> final state
}

// Error implements the error interface
func (e *PartialSyncError) Error() string {
	return fmt.Sprintf("partial sync: %d confirmed, %d failed, %d abandoned", e.Confirmed, e.Failed, e.Abandoned)
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml"
	File    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "watch"
	Path      string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("IO error during %s: %v", e.Operation, e.Err)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NotFoundError represents an error when a profile is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalidGraph checks if an error is a graph validation error
func IsInvalidGraph(err error) bool {
	return errors.Is(err, ErrInvalidGraph)
}

// IsConflict checks if an error is a conflict error
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsBackendUnavailable checks if an error indicates backend unavailability
func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

// IsOperationRejected checks if an error is a non-retryable rejection
func IsOperationRejected(err error) bool {
	return errors.Is(err, ErrOperationRejected)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
