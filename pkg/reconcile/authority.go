package reconcile

import (
	"path/filepath"
	"strings"
)

// Side names which side of the sync boundary is authoritative for a field.
type Side string

const (
	// SideLocal means the local store owns the field.
	SideLocal Side = "local"
	// SideRemote means the remote backend owns the field.
	SideRemote Side = "remote"
)

// FieldAuthority defines side priority for a specific property. Property
// supports trailing-* prefixes and filepath.Match patterns.
type FieldAuthority struct {
	Property string `json:"property" yaml:"property"`
	Side     Side   `json:"side" yaml:"side"`
	Priority int    `json:"priority" yaml:"priority"` // higher = more authoritative
}

// DefaultAuthorities returns the standard field authorities: the inventory
// backend owns physical filament data, the local slicer owns print tuning.
func DefaultAuthorities() []FieldAuthority {
	return []FieldAuthority{
		// Physical spool data lives in the inventory backend.
		{Property: "material", Side: SideRemote, Priority: 100},
		{Property: "density", Side: SideRemote, Priority: 100},
		{Property: "diameter", Side: SideRemote, Priority: 100},
		{Property: "filament_vendor", Side: SideRemote, Priority: 100},
		{Property: "spool_weight", Side: SideRemote, Priority: 90},

		// Print tuning is the slicer's call.
		{Property: "nozzle_temperature", Side: SideLocal, Priority: 100},
		{Property: "bed_temperature", Side: SideLocal, Priority: 100},
		{Property: "chamber_temperature*", Side: SideLocal, Priority: 90},
		{Property: "retraction_*", Side: SideLocal, Priority: 80},
	}
}

// AuthorityByField returns the authority governing a property, or nil when
// no pattern matches. Higher priority wins; ties go to the longer, more
// specific pattern.
func AuthorityByField(property string, authorities []FieldAuthority) *FieldAuthority {
	best := -1
	for i := range authorities {
		if !MatchesPattern(property, authorities[i].Property) {
			continue
		}
		if best < 0 || stronger(&authorities[i], &authorities[best]) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	return &authorities[best]
}

func stronger(a, b *FieldAuthority) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	return len(a.Property) > len(b.Property)
}

// MatchesPattern reports whether a property name falls under an authority
// pattern. A single trailing * matches any suffix; anything else goes
// through filepath.Match, with plain equality as the fallback for patterns
// Match cannot parse.
func MatchesPattern(property, pattern string) bool {
	if prefix, cut := strings.CutSuffix(pattern, "*"); cut && !strings.Contains(prefix, "*") {
		return strings.HasPrefix(property, prefix)
	}
	matched, err := filepath.Match(pattern, property)
	if err != nil {
		return property == pattern
	}
	return matched
}
