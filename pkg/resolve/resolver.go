package resolve

import (
	"slices"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

// entry is a resolved value plus the ID of the profile that effectively
// defines it. An empty definer means the value came from a global default and
// descendants keep reporting OriginDefault instead of an ancestor.
type entry struct {
	ResolvedValue
	definer profiles.ID
}

// Resolve computes the effective property set for every profile in the store.
// Profiles are visited in ancestor-before-descendant order, so each parent is
// fully resolved before any child reads from it. The result is deterministic:
// resolving the same store twice yields identical output.
//
// Resolution fails with an AmbiguousTagRuleError when two rules share tag
// name and precedence but disagree on the value for a property a profile
// carries.
func Resolve(store *profiles.Store, defaults map[string]string) (map[profiles.ID]*ResolvedProfile, error) {
	entries := make(map[profiles.ID]map[string]entry, store.Len())
	result := make(map[profiles.ID]*ResolvedProfile, store.Len())

	for _, id := range store.Order() {
		p, _ := store.Profile(id)

		resolved, err := resolveProfile(store, p, entries[p.ParentID], defaults)
		if err != nil {
			return nil, err
		}
		entries[id] = resolved

		rp := &ResolvedProfile{ID: id, Values: make(map[string]ResolvedValue, len(resolved))}
		for name, e := range resolved {
			rp.Values[name] = e.ResolvedValue
		}
		result[id] = rp
	}

	return result, nil
}

// resolveProfile resolves a single profile given its parent's entries.
func resolveProfile(store *profiles.Store, p *profiles.Profile, parent map[string]entry, defaults map[string]string) (map[string]entry, error) {
	resolved := make(map[string]entry)

	for _, name := range propertyUniverse(store, p, parent, defaults) {
		// NeverSync is pinned to the local declaration. It never inherits
		// and never tag-matches.
		if own, ok := p.Property(name); ok && own.Mode == profiles.SyncModeNeverSync {
			resolved[name] = entry{
				ResolvedValue: ResolvedValue{
					Value:  own.Value,
					Origin: Origin{Kind: OriginLocalOverride},
					Mode:   profiles.SyncModeNeverSync,
				},
				definer: p.ID,
			}
			continue
		}

		e, ok := baseValue(p, name, parent, defaults)

		// Tag rules override the inherited base; highest precedence wins and
		// equal precedence breaks by tag name ascending.
		rule, applied, err := winningRule(store, p, name)
		if err != nil {
			return nil, err
		}
		if applied {
			e = entry{
				ResolvedValue: ResolvedValue{
					Value:  rule.Value,
					Origin: Origin{Kind: OriginTagRule, Tag: rule.Tag},
					Mode:   e.Mode,
				},
				definer: p.ID,
			}
			if e.Mode == "" {
				e.Mode = profiles.SyncModeInherit
			}
			ok = true
		}

		// A local override beats both inheritance and tag rules.
		if own, declared := p.Property(name); declared && own.Mode == profiles.SyncModeOverride {
			e = entry{
				ResolvedValue: ResolvedValue{
					Value:  own.Value,
					Origin: Origin{Kind: OriginLocalOverride},
					Mode:   profiles.SyncModeOverride,
				},
				definer: p.ID,
			}
			ok = true
		}

		if ok {
			resolved[name] = e
		}
	}

	return resolved, nil
}

// baseValue computes the starting value for a property before tag rules and
// overrides: the nearest ancestor's resolved value, or a default when no
// ancestor defines it.
func baseValue(p *profiles.Profile, name string, parent map[string]entry, defaults map[string]string) (entry, bool) {
	if pe, ok := parent[name]; ok && pe.Mode != profiles.SyncModeNeverSync {
		mode := profiles.SyncModeInherit
		if own, declared := p.Property(name); declared {
			mode = own.Mode
		}
		origin := Origin{Kind: OriginInherited, Ancestor: pe.definer}
		definer := pe.definer
		if definer == "" {
			// Value came from a global default somewhere up the chain.
			origin = Origin{Kind: OriginDefault}
		}
		return entry{
			ResolvedValue: ResolvedValue{Value: pe.Value, Origin: origin, Mode: mode},
			definer:       definer,
		}, true
	}

	// No ancestor defines it: the profile's own inherit-mode declaration is
	// its default.
	if own, declared := p.Property(name); declared {
		return entry{
			ResolvedValue: ResolvedValue{Value: own.Value, Origin: Origin{Kind: OriginDefault}, Mode: own.Mode},
			definer:       p.ID,
		}, true
	}

	if dv, ok := defaults[name]; ok {
		return entry{
			ResolvedValue: ResolvedValue{Value: dv, Origin: Origin{Kind: OriginDefault}, Mode: profiles.SyncModeInherit},
			definer:       "",
		}, true
	}

	return entry{}, false
}

// winningRule picks the applicable tag rule for a property, if any.
func winningRule(store *profiles.Store, p *profiles.Profile, name string) (profiles.TagRule, bool, error) {
	var applicable []profiles.TagRule
	for _, rule := range store.RulesFor(name) {
		if p.HasTag(rule.Tag) {
			applicable = append(applicable, rule)
		}
	}
	if len(applicable) == 0 {
		return profiles.TagRule{}, false, nil
	}

	// Rules arrive pre-sorted winner-first from the store.
	winner := applicable[0]
	for _, rule := range applicable[1:] {
		if rule.Precedence != winner.Precedence || rule.Tag != winner.Tag {
			break
		}
		if rule.Value != winner.Value {
			return profiles.TagRule{}, false, &errors.AmbiguousTagRuleError{
				ProfileID: p.ID.String(),
				Property:  name,
				Tag:       winner.Tag,
				Values:    []string{winner.Value, rule.Value},
			}
		}
	}
	return winner, true, nil
}

// propertyUniverse collects every property name that can resolve on the
// profile: the parent's resolved set, global defaults, the profile's own
// declarations, and tag-rule targets for carried tags. Sorted for
// deterministic traversal.
func propertyUniverse(store *profiles.Store, p *profiles.Profile, parent map[string]entry, defaults map[string]string) []string {
	seen := make(map[string]bool)
	for name := range parent {
		seen[name] = true
	}
	for name := range defaults {
		seen[name] = true
	}
	for name := range p.Properties {
		seen[name] = true
	}
	for _, rule := range store.Rules() {
		if p.HasTag(rule.Tag) {
			seen[rule.Property] = true
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
