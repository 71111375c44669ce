package profiles

import (
	"slices"

	"github.com/agentstation/spoolsync/pkg/errors"
)

// Store is an immutable, validated snapshot of a profile forest plus its tag
// rules. Construction runs a topological sort over parent edges; a dangling
// parent reference or a cycle refuses the whole store. Profiles are held in
// an arena keyed by ID with parent and child relations as ID lookups.
//
// A Store is safe for concurrent readers. It is never mutated after NewStore
// returns.
type Store struct {
	profiles map[ID]*Profile
	children map[ID][]ID
	order    []ID // ancestor-before-descendant
	depth    map[ID]int
	rules    []TagRule
	byProp   map[string][]TagRule
}

// NewStore validates the given profiles and rules and builds a store.
// It fails with an UnknownParentError or CycleError when the parent relation
// is not a forest, and a ValidationError on duplicate or empty IDs.
func NewStore(list []Profile, rules []TagRule) (*Store, error) {
	s := &Store{
		profiles: make(map[ID]*Profile, len(list)),
		children: make(map[ID][]ID),
		depth:    make(map[ID]int, len(list)),
		byProp:   make(map[string][]TagRule),
	}

	for i := range list {
		p := &list[i]
		if p.ID == "" {
			return nil, &errors.ValidationError{Field: "id", Message: "profile ID must not be empty"}
		}
		if _, dup := s.profiles[p.ID]; dup {
			return nil, &errors.ValidationError{Field: "id", Value: p.ID.String(), Message: "duplicate profile ID"}
		}
		s.profiles[p.ID] = p.Clone()
	}

	for _, p := range s.profiles {
		if p.ParentID == "" {
			continue
		}
		if _, ok := s.profiles[p.ParentID]; !ok {
			return nil, &errors.UnknownParentError{ProfileID: p.ID.String(), ParentID: p.ParentID.String()}
		}
		s.children[p.ParentID] = append(s.children[p.ParentID], p.ID)
	}
	for id := range s.children {
		slices.Sort(s.children[id])
	}

	if err := s.sort(); err != nil {
		return nil, err
	}

	s.rules = slices.Clone(rules)
	SortRules(s.rules)
	for _, r := range s.rules {
		s.byProp[r.Property] = append(s.byProp[r.Property], r)
	}

	return s, nil
}

// sort runs Kahn's algorithm over parent edges to produce a deterministic
// ancestor-before-descendant order. Profiles left unvisited sit on a cycle.
func (s *Store) sort() error {
	ids := make([]ID, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var frontier []ID
	for _, id := range ids {
		if s.profiles[id].IsRoot() {
			frontier = append(frontier, id)
			s.depth[id] = 0
		}
	}

	s.order = make([]ID, 0, len(s.profiles))
	for len(frontier) > 0 {
		id := frontier[0]
		frontier = frontier[1:]
		s.order = append(s.order, id)
		for _, child := range s.children[id] {
			s.depth[child] = s.depth[id] + 1
			frontier = append(frontier, child)
		}
	}

	if len(s.order) != len(s.profiles) {
		visited := make(map[ID]bool, len(s.order))
		for _, id := range s.order {
			visited[id] = true
		}
		var cyclic []string
		for _, id := range ids {
			if !visited[id] {
				cyclic = append(cyclic, id.String())
			}
		}
		return &errors.CycleError{ProfileIDs: cyclic}
	}
	return nil
}

// Profile returns the profile with the given ID. The returned profile is
// owned by the store and must not be mutated.
func (s *Store) Profile(id ID) (*Profile, bool) {
	p, ok := s.profiles[id]
	return p, ok
}

// Has reports whether the store contains a profile with the given ID.
func (s *Store) Has(id ID) bool {
	_, ok := s.profiles[id]
	return ok
}

// Len returns the number of profiles in the store.
func (s *Store) Len() int {
	return len(s.profiles)
}

// Order returns all profile IDs in ancestor-before-descendant order.
func (s *Store) Order() []ID {
	return slices.Clone(s.order)
}

// Children returns the direct children of a profile, sorted by ID.
func (s *Store) Children(id ID) []ID {
	return slices.Clone(s.children[id])
}

// Ancestors returns the ancestor chain of a profile in root-to-node order,
// excluding the profile itself.
func (s *Store) Ancestors(id ID) []ID {
	var chain []ID
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	for p.ParentID != "" {
		chain = append(chain, p.ParentID)
		p = s.profiles[p.ParentID]
	}
	slices.Reverse(chain)
	return chain
}

// Tags returns the tags carried by a profile.
func (s *Store) Tags(id ID) []string {
	p, ok := s.profiles[id]
	if !ok {
		return nil
	}
	return slices.Clone(p.Tags)
}

// Roots returns all root profile IDs, sorted.
func (s *Store) Roots() []ID {
	var roots []ID
	for _, id := range s.order {
		if s.profiles[id].IsRoot() {
			roots = append(roots, id)
		}
	}
	return roots
}

// RootOf returns the root ancestor of a profile (the profile itself when it
// is a root). Used to partition operations into independent subtrees.
func (s *Store) RootOf(id ID) ID {
	p, ok := s.profiles[id]
	if !ok {
		return id
	}
	for p.ParentID != "" {
		p = s.profiles[p.ParentID]
	}
	return p.ID
}

// Depth returns the distance of a profile from its root. Roots have depth 0.
func (s *Store) Depth(id ID) int {
	return s.depth[id]
}

// Rules returns all tag rules, sorted by precedence descending then tag name.
func (s *Store) Rules() []TagRule {
	return slices.Clone(s.rules)
}

// RulesFor returns the tag rules targeting a property, in winner-first order.
func (s *Store) RulesFor(property string) []TagRule {
	return s.byProp[property]
}
