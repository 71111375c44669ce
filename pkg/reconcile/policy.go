// Package reconcile decides, per changed field, which side of the sync
// boundary is authoritative and whether a change may propagate up the
// inheritance chain. Equal-revision disagreements are surfaced as conflicts
// for manual resolution, never auto-resolved.
package reconcile

import (
	"fmt"

	"github.com/agentstation/spoolsync/pkg/differ"
	"github.com/agentstation/spoolsync/pkg/profiles"
	"github.com/agentstation/spoolsync/pkg/resolve"
)

// Direction says which way a changed field should move.
type Direction string

const (
	// DirectionPush sends the local value to the remote backend.
	DirectionPush Direction = "push_local_to_remote"
	// DirectionPull adopts the remote value locally.
	DirectionPull Direction = "pull_remote_to_local"
	// DirectionSkip leaves the field alone.
	DirectionSkip Direction = "skip"
)

// Decision is the policy's verdict on a single change record. TargetID is
// normally the changed profile; it points at an ancestor when the change
// propagates up the inheritance chain. A non-nil Conflict means no direction
// was chosen and no operation may be emitted for this field.
type Decision struct {
	Change    differ.ChangeRecord
	Direction Direction
	TargetID  profiles.ID
	Conflict  *Conflict
}

// Conflict records an equal-revision disagreement between the two sides.
type Conflict struct {
	ProfileID   profiles.ID
	Property    string
	LocalValue  string
	RemoteValue string
	Revision    int64
}

// String renders the conflict for reports.
func (c *Conflict) String() string {
	return fmt.Sprintf("conflict %s.%s: local %q vs remote %q (both at revision %d)",
		c.ProfileID, c.Property, c.LocalValue, c.RemoteValue, c.Revision)
}

// Input bundles the two snapshots a policy decision reads from.
type Input struct {
	Local          *profiles.Store
	Remote         *profiles.Store
	LocalResolved  map[profiles.ID]*resolve.ResolvedProfile
	RemoteResolved map[profiles.ID]*resolve.ResolvedProfile
}

// Policy decides merge direction per changed field.
type Policy struct {
	authorities []FieldAuthority
	pruneRemote bool
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithAuthorities replaces the default field authority table.
func WithAuthorities(authorities []FieldAuthority) PolicyOption {
	return func(p *Policy) {
		p.authorities = authorities
	}
}

// WithPruneRemote makes locally deleted profiles delete their remote record
// instead of being adopted back. Destructive; off by default.
func WithPruneRemote(prune bool) PolicyOption {
	return func(p *Policy) {
		p.pruneRemote = prune
	}
}

// NewPolicy creates a merge policy with the default authorities.
func NewPolicy(opts ...PolicyOption) *Policy {
	p := &Policy{authorities: DefaultAuthorities()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DecideAll runs Decide over every changed record, splitting out conflicts.
func (p *Policy) DecideAll(in Input, records []differ.ChangeRecord) ([]Decision, []*Conflict) {
	var decisions []Decision
	var conflicts []*Conflict
	for _, rec := range records {
		d := p.Decide(in, rec)
		if d.Conflict != nil {
			conflicts = append(conflicts, d.Conflict)
			continue
		}
		if d.Direction == DirectionSkip {
			continue
		}
		decisions = append(decisions, d)
	}
	return decisions, conflicts
}

// Decide applies the merge rules to a single change record, in order:
//
//  1. NeverSync properties never cross the boundary.
//  2. A differing local override is authoritative and pushes.
//  3. A profile flagged for upward propagation retargets its pushed change at
//     the ancestor that defines the property.
//  4. The field authority table assigns ownership of known properties.
//  5. Otherwise the newer revision wins; equal revisions are a conflict.
func (p *Policy) Decide(in Input, change differ.ChangeRecord) Decision {
	d := Decision{Change: change, TargetID: change.ProfileID, Direction: DirectionSkip}

	if change.Type == differ.ChangeTypeUnchanged {
		return d
	}

	lv, hasLocal := p.localValue(in, change)
	if hasLocal && lv.Mode == profiles.SyncModeNeverSync {
		return d
	}

	switch change.Type {
	case differ.ChangeTypeAdded:
		d.Direction = DirectionPush
		return d

	case differ.ChangeTypeRemoved:
		if in.Local != nil && in.Local.Has(change.ProfileID) {
			// The profile exists locally; only this property is missing.
			// Adopt the remote value instead of treating the whole profile
			// as gone.
			d.Direction = DirectionPull
			return d
		}
		if p.pruneRemote {
			d.Direction = DirectionPush
		} else {
			d.Direction = DirectionPull
		}
		return d
	}

	// Modified below.
	if hasLocal && lv.Mode == profiles.SyncModeOverride {
		d.Direction = DirectionPush
		return d
	}

	d.Direction = p.modifiedDirection(in, change)

	if d.Direction == DirectionPush {
		d.TargetID = p.pushTarget(in, change, lv)
	}
	if d.Conflict == nil && d.Direction == DirectionSkip {
		// modifiedDirection signals a conflict by returning skip with the
		// revisions equal; rebuild the conflict record here.
		d.Conflict = &Conflict{
			ProfileID:   change.ProfileID,
			Property:    change.Property,
			LocalValue:  change.LocalValue,
			RemoteValue: change.RemoteValue,
			Revision:    p.revision(in.Local, change.ProfileID),
		}
	}
	return d
}

// modifiedDirection resolves a Modified record through authorities then
// revision markers. DirectionSkip return means equal revisions (conflict).
func (p *Policy) modifiedDirection(in Input, change differ.ChangeRecord) Direction {
	if auth := AuthorityByField(change.Property, p.authorities); auth != nil {
		if auth.Side == SideRemote {
			return DirectionPull
		}
		return DirectionPush
	}

	localRev := p.revision(in.Local, change.ProfileID)
	remoteRev := p.revision(in.Remote, change.ProfileID)
	switch {
	case localRev > remoteRev:
		return DirectionPush
	case localRev < remoteRev:
		return DirectionPull
	default:
		return DirectionSkip
	}
}

// pushTarget retargets a pushed change at the defining ancestor when the
// profile opts into upward propagation and carries no local override for the
// property.
func (p *Policy) pushTarget(in Input, change differ.ChangeRecord, lv resolve.ResolvedValue) profiles.ID {
	prof, ok := in.Local.Profile(change.ProfileID)
	if !ok || !prof.PropagateUp {
		return change.ProfileID
	}
	if _, declared := prof.Property(change.Property); declared {
		return change.ProfileID
	}
	if lv.Origin.Kind == resolve.OriginInherited && in.Local.Has(lv.Origin.Ancestor) {
		return lv.Origin.Ancestor
	}
	return change.ProfileID
}

func (p *Policy) localValue(in Input, change differ.ChangeRecord) (resolve.ResolvedValue, bool) {
	rp, ok := in.LocalResolved[change.ProfileID]
	if !ok {
		return resolve.ResolvedValue{}, false
	}
	return rp.Value(change.Property)
}

func (p *Policy) revision(store *profiles.Store, id profiles.ID) int64 {
	if store == nil {
		return 0
	}
	if prof, ok := store.Profile(id); ok {
		return prof.Revision
	}
	return 0
}
