package planner

import (
	"cmp"
	"slices"

	"github.com/agentstation/spoolsync/pkg/differ"
	"github.com/agentstation/spoolsync/pkg/profiles"
	"github.com/agentstation/spoolsync/pkg/reconcile"
)

// Plan is an ordered, dependency-safe operation sequence for one
// reconciliation pass. Remote operations push local state to the backend;
// local operations adopt remote state into the local store.
type Plan struct {
	Remote []*SyncOperation
	Local  []*SyncOperation
}

// Empty reports whether the plan contains no operations.
func (p *Plan) Empty() bool {
	return len(p.Remote) == 0 && len(p.Local) == 0
}

// All returns every operation, remote first.
func (p *Plan) All() []*SyncOperation {
	all := make([]*SyncOperation, 0, len(p.Remote)+len(p.Local))
	all = append(all, p.Remote...)
	all = append(all, p.Local...)
	return all
}

// States returns the final state of every operation keyed by operation key.
func (p *Plan) States() map[string]string {
	states := make(map[string]string, len(p.Remote)+len(p.Local))
	for _, op := range p.All() {
		states[op.Key] = string(op.State())
	}
	return states
}

// Build groups the approved decisions into one operation per target profile
// and side, then orders them so that every create of a profile strictly
// precedes any operation referencing it as a parent, and deletes run leaf
// first.
func Build(decisions []reconcile.Decision, in reconcile.Input) *Plan {
	type groupKey struct {
		id  profiles.ID
		dir reconcile.Direction
	}
	groups := make(map[groupKey]*SyncOperation)
	var order []groupKey // insertion order for determinism before sorting

	for _, d := range decisions {
		if d.Conflict != nil || d.Direction == reconcile.DirectionSkip {
			continue
		}
		key := groupKey{id: d.TargetID, dir: d.Direction}
		op, ok := groups[key]
		if !ok {
			op = newOperation(d.TargetID, operationKind(d, in), d.Direction)
			groups[key] = op
			order = append(order, key)
		}

		switch d.Change.Type {
		case differ.ChangeTypeRemoved:
			if d.Direction == reconcile.DirectionPull {
				op.Payload[d.Change.Property] = d.Change.RemoteValue
			}
		default:
			if d.Direction == reconcile.DirectionPull {
				op.Payload[d.Change.Property] = d.Change.RemoteValue
			} else {
				op.Payload[d.Change.Property] = d.Change.LocalValue
			}
		}
	}

	plan := &Plan{}
	for _, key := range order {
		op := groups[key]
		switch op.Direction {
		case reconcile.DirectionPush:
			if prof, ok := in.Local.Profile(op.ProfileID); ok {
				op.ParentID = prof.ParentID
			}
			plan.Remote = append(plan.Remote, op)
		case reconcile.DirectionPull:
			if prof, ok := in.Remote.Profile(op.ProfileID); ok {
				op.ParentID = prof.ParentID
			}
			plan.Local = append(plan.Local, op)
		}
	}

	sortOperations(plan.Remote, in.Local)
	sortOperations(plan.Local, in.Remote)
	return plan
}

// operationKind maps a decision onto the operation kind for its target. The
// differ classifies both one-sided profiles and one-sided properties of
// shared profiles as Added/Removed, so the kind comes from whether the
// destination side already has the target, not from the record type alone.
func operationKind(d reconcile.Decision, in reconcile.Input) Kind {
	if d.Direction == reconcile.DirectionPush {
		if d.Change.Type == differ.ChangeTypeRemoved {
			// A pushed removal only reaches the planner for a profile gone
			// locally (prune); property-level removals always pull.
			return KindDelete
		}
		if in.Remote != nil && in.Remote.Has(d.TargetID) {
			return KindUpdate
		}
		return KindCreate
	}
	if in.Local != nil && in.Local.Has(d.TargetID) {
		return KindUpdate
	}
	// Remote-only profile adopted into the local store.
	return KindCreate
}

// sortOperations orders operations against the store that knows the target
// side's topology: creates and updates ancestors first, deletes descendants
// first, deletes after everything else.
func sortOperations(ops []*SyncOperation, store *profiles.Store) {
	depth := func(op *SyncOperation) int {
		if store != nil && store.Has(op.ProfileID) {
			return store.Depth(op.ProfileID)
		}
		// Profiles unknown to the topology store sort by parent presence:
		// roots first.
		if op.ParentID == "" {
			return 0
		}
		return 1
	}

	slices.SortStableFunc(ops, func(a, b *SyncOperation) int {
		aDel := a.Kind == KindDelete
		bDel := b.Kind == KindDelete
		if aDel != bDel {
			if aDel {
				return 1
			}
			return -1
		}
		da, db := depth(a), depth(b)
		if aDel {
			// Descendants before ancestors.
			if c := cmp.Compare(db, da); c != 0 {
				return c
			}
		} else if c := cmp.Compare(da, db); c != 0 {
			return c
		}
		return cmp.Compare(a.ProfileID, b.ProfileID)
	})
}
