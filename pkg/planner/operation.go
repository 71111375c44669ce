// Package planner turns merge decisions into an ordered, dependency-safe
// sequence of sync operations and tracks their execution state. Creates and
// updates run ancestors before descendants; deletes run descendants before
// ancestors, so the backend never observes a dangling parent reference at any
// point in the sequence.
package planner

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/agentstation/spoolsync/pkg/profiles"
	"github.com/agentstation/spoolsync/pkg/reconcile"
)

// Kind is the type of a sync operation.
type Kind string

const (
	// KindCreate creates a profile record on the target side.
	KindCreate Kind = "create"
	// KindUpdate updates fields of an existing record.
	KindUpdate Kind = "update"
	// KindDelete deletes a record.
	KindDelete Kind = "delete"
)

// State is the lifecycle state of a sync operation.
type State string

const (
	// StatePending means the operation has not been attempted yet.
	StatePending State = "pending"
	// StateApplied means the backend call succeeded.
	StateApplied State = "applied"
	// StateConfirmed means a subsequent fetch verified the remote state.
	StateConfirmed State = "confirmed"
	// StateFailed means the last attempt errored.
	StateFailed State = "failed"
	// StateRetrying means backoff is active before the next attempt.
	StateRetrying State = "retrying"
	// StateAbandoned means the retry ceiling was hit or the pass was
	// canceled before the operation was applied.
	StateAbandoned State = "abandoned"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateAbandoned
}

// SyncOperation is a single planned change against one side of the sync
// boundary. The Key is stable for the lifetime of the operation so backend
// retries do not double-apply.
type SyncOperation struct {
	Key       string
	ProfileID profiles.ID
	ParentID  profiles.ID // parent linkage for creates
	Kind      Kind
	Direction reconcile.Direction
	Payload   map[string]string

	mu       sync.Mutex
	state    State
	attempts int
	err      error
}

// NewOperation creates a pending operation with a fresh idempotency key and
// the given payload. Store adapters use it to construct operations directly.
func NewOperation(id, parent profiles.ID, kind Kind, payload map[string]string) *SyncOperation {
	if payload == nil {
		payload = make(map[string]string)
	}
	return &SyncOperation{
		Key:       uuid.NewString(),
		ProfileID: id,
		ParentID:  parent,
		Kind:      kind,
		Payload:   payload,
		state:     StatePending,
	}
}

// newOperation creates a pending operation for the plan under assembly.
func newOperation(id profiles.ID, kind Kind, direction reconcile.Direction) *SyncOperation {
	op := NewOperation(id, "", kind, nil)
	op.Direction = direction
	return op
}

// State returns the current lifecycle state.
func (op *SyncOperation) State() State {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.state
}

// Attempts returns how many times the operation has been attempted.
func (op *SyncOperation) Attempts() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.attempts
}

// Err returns the last error recorded against the operation.
func (op *SyncOperation) Err() error {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.err
}

// MarkApplied records a successful backend call.
func (op *SyncOperation) MarkApplied() {
	op.transition(StateApplied, nil)
}

// MarkConfirmed records that a subsequent fetch verified the change.
func (op *SyncOperation) MarkConfirmed() {
	op.transition(StateConfirmed, nil)
}

// MarkFailed records a failed attempt.
func (op *SyncOperation) MarkFailed(err error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.attempts++
	op.state = StateFailed
	op.err = err
}

// MarkRetrying records that backoff is active before the next attempt.
func (op *SyncOperation) MarkRetrying() {
	op.transition(StateRetrying, nil)
}

// MarkAbandoned records that the operation will not be attempted again.
// Already applied or confirmed operations are left untouched.
func (op *SyncOperation) MarkAbandoned(err error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	if op.state == StateApplied || op.state == StateConfirmed {
		return
	}
	op.state = StateAbandoned
	if err != nil {
		op.err = err
	}
}

func (op *SyncOperation) transition(s State, err error) {
	op.mu.Lock()
	defer op.mu.Unlock()
	op.state = s
	if err != nil {
		op.err = err
	}
}

// String renders the operation for reports and logs.
func (op *SyncOperation) String() string {
	return fmt.Sprintf("%s %s %s (%d fields, %s)", op.Kind, op.Direction, op.ProfileID, len(op.Payload), op.State())
}
