package errors_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/agentstation/spoolsync/pkg/errors"
)

func TestCycleError(t *testing.T) {
	err := &pkgerrors.CycleError{ProfileIDs: []string{"pla-red", "pla-base"}}
	assert.Equal(t, "cycle detected in profile parent chain involving: pla-red, pla-base", err.Error())
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidGraph))
	assert.True(t, pkgerrors.IsInvalidGraph(err))
}

func TestUnknownParentError(t *testing.T) {
	err := &pkgerrors.UnknownParentError{ProfileID: "pla-red", ParentID: "missing"}
	assert.Equal(t, "profile pla-red references unknown parent missing", err.Error())
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidGraph))
}

func TestAmbiguousTagRuleError(t *testing.T) {
	err := &pkgerrors.AmbiguousTagRuleError{
		ProfileID: "pla-red",
		Property:  "nozzle_temperature",
		Tag:       "high-temp",
		Values:    []string{"240", "250"},
	}
	assert.Contains(t, err.Error(), "ambiguous tag rules")
	assert.Contains(t, err.Error(), "high-temp")
	assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
}

func TestConflictError(t *testing.T) {
	err := &pkgerrors.ConflictError{
		ProfileID: "pla-red",
		Property:  "density",
		Local:     "1.24",
		Remote:    "1.25",
	}
	assert.Contains(t, err.Error(), "equal revision")
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestBackendError(t *testing.T) {
	t.Run("server error is retryable", func(t *testing.T) {
		err := &pkgerrors.BackendError{Operation: "fetch", StatusCode: 503, Message: "unavailable"}
		assert.True(t, errors.Is(err, pkgerrors.ErrBackendUnavailable))
		assert.True(t, err.Retryable())
		assert.False(t, pkgerrors.IsOperationRejected(err))
	})

	t.Run("rate limit is retryable", func(t *testing.T) {
		err := &pkgerrors.BackendError{Operation: "update", StatusCode: 429, Message: "slow down"}
		assert.True(t, err.Retryable())
	})

	t.Run("client error is a rejection", func(t *testing.T) {
		err := &pkgerrors.BackendError{Operation: "create", StatusCode: 422, Message: "bad record"}
		assert.True(t, errors.Is(err, pkgerrors.ErrOperationRejected))
		assert.False(t, err.Retryable())
	})

	t.Run("transport error without status is retryable", func(t *testing.T) {
		err := &pkgerrors.BackendError{Operation: "fetch", Err: errors.New("connection refused")}
		assert.True(t, pkgerrors.IsBackendUnavailable(err))
	})

	t.Run("unwrap", func(t *testing.T) {
		inner := errors.New("eof")
		err := &pkgerrors.BackendError{Operation: "fetch", Err: inner}
		assert.Equal(t, inner, errors.Unwrap(err))
	})
}

func TestOperationRejectedError(t *testing.T) {
	err := &pkgerrors.OperationRejectedError{
		OperationKey: "op-1",
		ProfileID:    "pla-red",
		Message:      "duplicate name",
	}
	assert.Equal(t, "operation op-1 for profile pla-red rejected: duplicate name", err.Error())
	assert.True(t, pkgerrors.IsOperationRejected(err))
}

func TestPartialSyncError(t *testing.T) {
	err := &pkgerrors.PartialSyncError{
		Confirmed: 2,
		Abandoned: 1,
		States:    map[string]string{"op-1": "confirmed", "op-2": "confirmed", "op-3": "abandoned"},
	}
	assert.Equal(t, "partial sync: 2 confirmed, 0 failed, 1 abandoned", err.Error())
	assert.Len(t, err.States, 3)
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Field: "max_retries", Message: "must be non-negative"}
		assert.Equal(t, "validation failed for field max_retries: must be non-negative", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		assert.Nil(t, pkgerrors.Wrap(nil, "context"))
	})

	t.Run("wrapped preserves chain", func(t *testing.T) {
		base := &pkgerrors.NotFoundError{Resource: "profile", ID: "pla-red"}
		wrapped := pkgerrors.Wrap(base, "loading store")
		assert.Contains(t, wrapped.Error(), "loading store")
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})

	t.Run("wrapf formats", func(t *testing.T) {
		wrapped := pkgerrors.Wrapf(errors.New("boom"), "applying operation %s", "op-1")
		assert.Equal(t, "applying operation op-1: boom", wrapped.Error())
	})
}
