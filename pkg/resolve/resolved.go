// Package resolve computes effective property values for every profile in a
// validated store. Resolution layers, in order: the nearest ancestor's
// resolved value (or a global default), tag rules ranked by precedence, and
// local overrides. The output is a pure data structure recomputed each
// reconciliation pass.
package resolve

import (
	"fmt"
	"slices"

	"github.com/agentstation/spoolsync/pkg/profiles"
)

// OriginKind identifies where a resolved value came from.
type OriginKind string

const (
	// OriginDefault means the value came from a declared or global default
	// with no ancestor defining the property.
	OriginDefault OriginKind = "default"
	// OriginTagRule means a tag rule supplied the value.
	OriginTagRule OriginKind = "tag_rule"
	// OriginInherited means the value flowed down from an ancestor.
	OriginInherited OriginKind = "inherited"
	// OriginLocalOverride means the profile's own declaration won.
	OriginLocalOverride OriginKind = "local_override"
)

// Origin describes the provenance of a resolved value. Tag is set only for
// OriginTagRule; Ancestor only for OriginInherited.
type Origin struct {
	Kind     OriginKind
	Tag      string
	Ancestor profiles.ID
}

// String renders the origin for diff reports and logs.
func (o Origin) String() string {
	switch o.Kind {
	case OriginTagRule:
		return fmt.Sprintf("tag_rule(%s)", o.Tag)
	case OriginInherited:
		return fmt.Sprintf("inherited(%s)", o.Ancestor)
	default:
		return string(o.Kind)
	}
}

// ResolvedValue is the effective value of one property on one profile.
// Mode carries the profile's own declared sync mode, defaulting to inherit
// when the profile does not declare the property.
type ResolvedValue struct {
	Value  string
	Origin Origin
	Mode   profiles.SyncMode
}

// ResolvedProfile is the full effective property set of a profile.
type ResolvedProfile struct {
	ID     profiles.ID
	Values map[string]ResolvedValue
}

// Properties returns the resolved property names in sorted order.
func (rp *ResolvedProfile) Properties() []string {
	names := make([]string, 0, len(rp.Values))
	for name := range rp.Values {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Value returns the resolved value for a property and whether it exists.
func (rp *ResolvedProfile) Value(name string) (ResolvedValue, bool) {
	v, ok := rp.Values[name]
	return v, ok
}
