package sync

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/spoolsync/pkg/differ"
	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/logging"
	"github.com/agentstation/spoolsync/pkg/planner"
	"github.com/agentstation/spoolsync/pkg/profiles"
	"github.com/agentstation/spoolsync/pkg/reconcile"
	"github.com/agentstation/spoolsync/pkg/resolve"
)

// Syncer runs reconciliation passes against a local store and a remote
// backend. A Syncer is safe for concurrent use, but only one pass runs at a
// time; a second caller gets ErrPassInProgress instead of interleaving on the
// same store.
type Syncer struct {
	local   LocalStore
	backend Backend
	opts    *Options

	mu sync.Mutex // exclusive store acquisition for the duration of a pass
}

// New creates a Syncer.
func New(local LocalStore, backend Backend, opts ...Option) (*Syncer, error) {
	options := Defaults().Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}
	if local == nil {
		return nil, &errors.ValidationError{Field: "local", Message: "local store is required"}
	}
	if backend == nil {
		return nil, &errors.ValidationError{Field: "backend", Message: "backend is required"}
	}
	return &Syncer{local: local, backend: backend, opts: options}, nil
}

// Sync runs one full reconciliation pass and returns its result. When the
// pass ends with some operations confirmed and others abandoned, the result
// is returned together with a PartialSyncError carrying the full state list.
func (s *Syncer) Sync(ctx context.Context, opts ...Option) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, errors.ErrPassInProgress
	}
	defer s.mu.Unlock()

	options := *s.opts
	options.Apply(opts...)
	if err := options.Validate(); err != nil {
		return nil, err
	}

	if options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.Timeout)
		defer cancel()
	}

	ctx = logging.WithPassID(ctx, uuid.NewString())
	log := logging.Ctx(ctx)
	started := time.Now()

	in, err := s.snapshot(ctx, &options)
	if err != nil {
		return nil, err
	}

	changeset := differ.Diff(in.LocalResolved, in.RemoteResolved)
	log.Debug().
		Int("added", changeset.Summary.Added).
		Int("removed", changeset.Summary.Removed).
		Int("modified", changeset.Summary.Modified).
		Msg("diff computed")

	policy := reconcile.NewPolicy(
		reconcile.WithPruneRemote(options.PruneRemote),
		policyAuthorities(options.Authorities),
	)
	decisions, conflicts := policy.DecideAll(in, changeset.Records)
	for _, c := range conflicts {
		log.Warn().
			Str("profile_id", c.ProfileID.String()).
			Str("property", c.Property).
			Msg("conflict needs manual resolution")
	}

	plan := planner.Build(decisions, in)
	result := &Result{
		Changeset: changeset,
		Decisions: decisions,
		Conflicts: conflicts,
		Plan:      plan,
		DryRun:    options.DryRun,
	}

	if options.DryRun || plan.Empty() {
		result.Duration = time.Since(started)
		return result, nil
	}

	s.execute(ctx, plan, in, &options)
	s.confirm(ctx, plan)

	result.Duration = time.Since(started)
	log.Info().
		Dur("duration", result.Duration).
		Int("operations", len(plan.All())).
		Msg("pass complete")

	counts := result.OperationCounts()
	if counts.Abandoned > 0 {
		return result, &errors.PartialSyncError{
			Confirmed: counts.Confirmed,
			Failed:    counts.Failed,
			Abandoned: counts.Abandoned,
			States:    plan.States(),
		}
	}
	return result, nil
}

// snapshot loads both sides and resolves them into the policy input. The two
// stores are independently constructed, read-only snapshots; nothing is
// shared between passes.
func (s *Syncer) snapshot(ctx context.Context, options *Options) (reconcile.Input, error) {
	localProfiles, rules, err := s.local.Load(ctx)
	if err != nil {
		return reconcile.Input{}, errors.Wrap(err, "loading local store")
	}

	remoteProfiles, err := s.backend.FetchSnapshot(ctx)
	if err != nil {
		return reconcile.Input{}, errors.Wrap(err, "fetching remote snapshot")
	}

	localStore, err := profiles.NewStore(localProfiles, rules)
	if err != nil {
		return reconcile.Input{}, errors.Wrap(err, "validating local profiles")
	}
	remoteStore, err := profiles.NewStore(remoteProfiles, rules)
	if err != nil {
		return reconcile.Input{}, errors.Wrap(err, "validating remote snapshot")
	}

	localResolved, err := resolve.Resolve(localStore, options.Defaults)
	if err != nil {
		return reconcile.Input{}, errors.Wrap(err, "resolving local profiles")
	}
	remoteResolved, err := resolve.Resolve(remoteStore, options.Defaults)
	if err != nil {
		return reconcile.Input{}, errors.Wrap(err, "resolving remote snapshot")
	}

	return reconcile.Input{
		Local:          localStore,
		Remote:         remoteStore,
		LocalResolved:  localResolved,
		RemoteResolved: remoteResolved,
	}, nil
}

// policyAuthorities maps the option onto a policy option, falling back to the
// default table.
func policyAuthorities(authorities []reconcile.FieldAuthority) reconcile.PolicyOption {
	if authorities == nil {
		authorities = reconcile.DefaultAuthorities()
	}
	return reconcile.WithAuthorities(authorities)
}
