// Package sync orchestrates one reconciliation pass: fetch, resolve, diff,
// decide, plan, execute, confirm. The store is held exclusively for the
// duration of a pass; concurrent passes fail fast with ErrPassInProgress.
package sync

import (
	"context"

	"github.com/agentstation/spoolsync/pkg/planner"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

// Backend is the adapter to the remote inventory backend, implemented by the
// HTTP layer. FetchSnapshot fails with a BackendError when the backend is
// unreachable. Apply must be idempotent per operation key so retries do not
// double-apply; it returns a retryable BackendError or a fatal
// OperationRejectedError.
type Backend interface {
	FetchSnapshot(ctx context.Context) ([]profiles.Profile, error)
	Apply(ctx context.Context, op *planner.SyncOperation) error
}

// LocalStore is the adapter to the persisted local profile store. Load
// produces the profile and tag-rule snapshot a pass reconciles from; Apply
// adopts a pull-direction operation into local storage.
type LocalStore interface {
	Load(ctx context.Context) ([]profiles.Profile, []profiles.TagRule, error)
	Apply(ctx context.Context, op *planner.SyncOperation) error
}
