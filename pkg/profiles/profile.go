// Package profiles defines the filament profile data model and the validated
// profile graph store used by the reconciliation core. Profiles form a forest
// via parent references; tag rules apply precedence-ranked property values to
// every profile carrying a tag.
package profiles

import (
	"slices"
)

// ID is the stable identifier of a filament profile. It does not change
// across sync passes and is shared between the local store and the remote
// backend.
type ID string

// String returns the string representation of a profile ID.
func (id ID) String() string {
	return string(id)
}

// SyncMode controls how a declared property participates in inheritance and
// synchronization.
type SyncMode string

const (
	// SyncModeInherit means the property takes the nearest ancestor's
	// resolved value unless a tag rule applies. A declared value acts as the
	// default when no ancestor defines the property.
	SyncModeInherit SyncMode = "inherit"

	// SyncModeOverride means the locally declared value wins unconditionally
	// over inheritance and tag rules, and is authoritative in merges.
	SyncModeOverride SyncMode = "override"

	// SyncModeNeverSync means the property never crosses the sync boundary
	// and never inherits or tag-matches. Used for display name, colour, and
	// other presentation-only fields.
	SyncModeNeverSync SyncMode = "never_sync"
)

// Valid reports whether the sync mode is one of the known variants.
func (m SyncMode) Valid() bool {
	switch m {
	case SyncModeInherit, SyncModeOverride, SyncModeNeverSync:
		return true
	}
	return false
}

// String returns the string representation of a sync mode.
func (m SyncMode) String() string {
	return string(m)
}

// Origin records which side a profile record came from.
type Origin string

const (
	// OriginLocal marks a profile loaded from the local store.
	OriginLocal Origin = "local"
	// OriginRemote marks a profile fetched from the remote backend.
	OriginRemote Origin = "remote"
)

// PropertyValue is a single declared property on a profile.
type PropertyValue struct {
	Value string   `json:"value" yaml:"value"`
	Mode  SyncMode `json:"mode,omitempty" yaml:"mode,omitempty"`
}

// Profile is a filament configuration record. A zero ParentID means the
// profile is a root of its inheritance tree.
type Profile struct {
	ID          ID                       `json:"id" yaml:"id"`
	ParentID    ID                       `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Properties  map[string]PropertyValue `json:"properties,omitempty" yaml:"properties,omitempty"`
	Tags        []string                 `json:"tags,omitempty" yaml:"tags,omitempty"`
	Revision    int64                    `json:"revision" yaml:"revision"`
	Origin      Origin                   `json:"origin,omitempty" yaml:"origin,omitempty"`
	PropagateUp bool                     `json:"propagate_up,omitempty" yaml:"propagate_up,omitempty"`
}

// Property returns the declared property value and whether it exists.
// Properties with an empty mode are normalized to SyncModeInherit.
func (p *Profile) Property(name string) (PropertyValue, bool) {
	pv, ok := p.Properties[name]
	if ok && pv.Mode == "" {
		pv.Mode = SyncModeInherit
	}
	return pv, ok
}

// HasTag reports whether the profile carries the given tag.
func (p *Profile) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// IsRoot reports whether the profile has no parent.
func (p *Profile) IsRoot() bool {
	return p.ParentID == ""
}

// Clone returns a deep copy of the profile. Stores hold clones so that later
// mutation of the caller's slice cannot leak into a reconciliation pass.
func (p *Profile) Clone() *Profile {
	cp := *p
	if p.Properties != nil {
		cp.Properties = make(map[string]PropertyValue, len(p.Properties))
		for k, v := range p.Properties {
			cp.Properties[k] = v
		}
	}
	cp.Tags = slices.Clone(p.Tags)
	return &cp
}
