package sync

import (
	"context"
	"sync"
	"time"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/logging"
	"github.com/agentstation/spoolsync/pkg/planner"
	"github.com/agentstation/spoolsync/pkg/profiles"
	"github.com/agentstation/spoolsync/pkg/reconcile"
)

// execute applies the plan. Remote operations run with bounded parallelism
// across independent subtrees while operations along a single inheritance
// chain stay serialized in plan order: a child's remote creation needs its
// parent's remote record to already exist. Local adoptions run serially.
//
// Cancellation abandons every not-yet-applied operation immediately and
// leaves applied operations untouched; there is no compensating rollback.
func (s *Syncer) execute(ctx context.Context, plan *planner.Plan, in reconcile.Input, options *Options) {
	execCtx := ctx
	var cancel context.CancelFunc
	if options.FailFast {
		execCtx, cancel = context.WithCancel(ctx)
		defer cancel()
	}

	groups := groupBySubtree(plan.Remote, in)

	sem := make(chan struct{}, options.MaxParallel)
	var wg sync.WaitGroup
	for _, group := range groups {
		wg.Add(1)
		go func(ops []*planner.SyncOperation) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := s.runChain(execCtx, ops, options); err != nil && options.FailFast {
				cancel()
			}
		}(group)
	}
	wg.Wait()

	for _, op := range plan.Local {
		if execCtx.Err() != nil {
			op.MarkAbandoned(errors.ErrCanceled)
			continue
		}
		s.applyWithRetry(execCtx, op, s.local.Apply, options)
	}
}

// runChain executes one subtree's operations in order. After a terminal
// failure the rest of the chain is abandoned: applying a child under a parent
// that never materialized would leave a dangling reference at the backend.
func (s *Syncer) runChain(ctx context.Context, ops []*planner.SyncOperation, options *Options) error {
	for i, op := range ops {
		if ctx.Err() != nil {
			abandonRemaining(ops[i:], errors.ErrCanceled)
			return ctx.Err()
		}
		if err := s.applyWithRetry(ctx, op, s.backend.Apply, options); err != nil {
			abandonRemaining(ops[i+1:], errors.Wrap(err, "earlier operation in chain failed"))
			return err
		}
	}
	return nil
}

// applyWithRetry drives one operation through its lifecycle: retryable
// backend failures back off exponentially up to the attempt ceiling;
// rejections are surfaced immediately and never retried.
func (s *Syncer) applyWithRetry(ctx context.Context, op *planner.SyncOperation, apply func(context.Context, *planner.SyncOperation) error, options *Options) error {
	log := logging.Ctx(ctx)

	for attempt := 1; ; attempt++ {
		err := apply(ctx, op)
		if err == nil {
			op.MarkApplied()
			log.Debug().
				Str("operation", op.Key).
				Str("profile_id", op.ProfileID.String()).
				Str("kind", string(op.Kind)).
				Msg("operation applied")
			return nil
		}

		op.MarkFailed(err)

		if errors.IsOperationRejected(err) {
			op.MarkAbandoned(err)
			log.Error().Err(err).Str("operation", op.Key).Msg("operation rejected, not retrying")
			return err
		}

		if attempt >= options.MaxRetries {
			op.MarkAbandoned(err)
			log.Error().Err(err).Str("operation", op.Key).Int("attempts", attempt).Msg("retry ceiling reached")
			return err
		}

		op.MarkRetrying()
		backoff := options.BackoffBase << (attempt - 1)
		log.Warn().Err(err).
			Str("operation", op.Key).
			Dur("backoff", backoff).
			Msg("operation failed, retrying")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			op.MarkAbandoned(errors.ErrCanceled)
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// confirm refetches the remote snapshot and verifies every applied remote
// operation against it. Local adoptions are confirmed by their own write
// having succeeded.
func (s *Syncer) confirm(ctx context.Context, plan *planner.Plan) {
	for _, op := range plan.Local {
		if op.State() == planner.StateApplied {
			op.MarkConfirmed()
		}
	}

	needsFetch := false
	for _, op := range plan.Remote {
		if op.State() == planner.StateApplied {
			needsFetch = true
			break
		}
	}
	if !needsFetch {
		return
	}

	snapshot, err := s.backend.FetchSnapshot(ctx)
	if err != nil {
		// Operations stay Applied; the next pass confirms or re-diffs them.
		logging.Ctx(ctx).Warn().Err(err).Msg("confirmation fetch failed")
		return
	}

	byID := make(map[profiles.ID]profiles.Profile, len(snapshot))
	for _, p := range snapshot {
		byID[p.ID] = p
	}

	for _, op := range plan.Remote {
		if op.State() != planner.StateApplied {
			continue
		}
		if confirmed(op, byID) {
			op.MarkConfirmed()
		}
	}
}

// confirmed checks one applied operation against the fresh snapshot.
func confirmed(op *planner.SyncOperation, byID map[profiles.ID]profiles.Profile) bool {
	prof, exists := byID[op.ProfileID]

	if op.Kind == planner.KindDelete {
		return !exists
	}
	if !exists {
		return false
	}
	for name, want := range op.Payload {
		pv, ok := prof.Property(name)
		if !ok || pv.Value != want {
			return false
		}
	}
	return true
}

// abandonRemaining marks every not-yet-applied operation abandoned.
func abandonRemaining(ops []*planner.SyncOperation, err error) {
	for _, op := range ops {
		op.MarkAbandoned(err)
	}
}

// groupBySubtree partitions remote operations by the root of their target's
// ancestor chain, preserving plan order within each group. Different subtrees
// have no parent dependencies between them and may run in parallel.
func groupBySubtree(ops []*planner.SyncOperation, in reconcile.Input) [][]*planner.SyncOperation {
	index := make(map[profiles.ID]int)
	var groups [][]*planner.SyncOperation

	rootOf := func(id profiles.ID) profiles.ID {
		if in.Local != nil && in.Local.Has(id) {
			return in.Local.RootOf(id)
		}
		if in.Remote != nil && in.Remote.Has(id) {
			return in.Remote.RootOf(id)
		}
		return id
	}

	for _, op := range ops {
		root := rootOf(op.ProfileID)
		i, ok := index[root]
		if !ok {
			i = len(groups)
			index[root] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], op)
	}
	return groups
}
