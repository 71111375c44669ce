package profiles_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

func newProfile(id, parent string, props map[string]profiles.PropertyValue) profiles.Profile {
	return profiles.Profile{
		ID:         profiles.ID(id),
		ParentID:   profiles.ID(parent),
		Properties: props,
		Origin:     profiles.OriginLocal,
	}
}

func TestNewStoreBuildsForest(t *testing.T) {
	store, err := profiles.NewStore([]profiles.Profile{
		newProfile("pla-red", "pla-base", nil),
		newProfile("pla-base", "", nil),
		newProfile("petg-base", "", nil),
		newProfile("pla-matte", "pla-base", nil),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, 4, store.Len())
	assert.Equal(t, []profiles.ID{"petg-base", "pla-base"}, store.Roots())
	assert.Equal(t, []profiles.ID{"pla-matte", "pla-red"}, store.Children("pla-base"))
	assert.Equal(t, []profiles.ID{"pla-base"}, store.Ancestors("pla-red"))
	assert.Equal(t, 1, store.Depth("pla-red"))
	assert.Equal(t, profiles.ID("pla-base"), store.RootOf("pla-red"))
}

func TestNewStoreOrderAncestorsFirst(t *testing.T) {
	store, err := profiles.NewStore([]profiles.Profile{
		newProfile("c", "b", nil),
		newProfile("b", "a", nil),
		newProfile("a", "", nil),
	}, nil)
	require.NoError(t, err)

	order := store.Order()
	pos := make(map[profiles.ID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	assert.Less(t, pos["a"], pos["b"])
	assert.Less(t, pos["b"], pos["c"])
}

func TestNewStoreRejectsUnknownParent(t *testing.T) {
	_, err := profiles.NewStore([]profiles.Profile{
		newProfile("pla-red", "missing", nil),
	}, nil)
	require.Error(t, err)

	var unknownErr *errors.UnknownParentError
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, "pla-red", unknownErr.ProfileID)
	assert.Equal(t, "missing", unknownErr.ParentID)
	assert.True(t, errors.IsInvalidGraph(err))
}

func TestNewStoreRejectsCycle(t *testing.T) {
	_, err := profiles.NewStore([]profiles.Profile{
		newProfile("a", "b", nil),
		newProfile("b", "a", nil),
		newProfile("root", "", nil),
	}, nil)
	require.Error(t, err)

	var cycleErr *errors.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []string{"a", "b"}, cycleErr.ProfileIDs)
}

func TestNewStoreRejectsSelfParent(t *testing.T) {
	_, err := profiles.NewStore([]profiles.Profile{
		newProfile("a", "a", nil),
	}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidGraph(err))
}

func TestNewStoreRejectsDuplicateID(t *testing.T) {
	_, err := profiles.NewStore([]profiles.Profile{
		newProfile("a", "", nil),
		newProfile("a", "", nil),
	}, nil)
	require.Error(t, err)

	var vErr *errors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "id", vErr.Field)
}

func TestStoreIsolatedFromCallerMutation(t *testing.T) {
	input := []profiles.Profile{
		newProfile("a", "", map[string]profiles.PropertyValue{
			"density": {Value: "1.24"},
		}),
	}
	store, err := profiles.NewStore(input, nil)
	require.NoError(t, err)

	input[0].Properties["density"] = profiles.PropertyValue{Value: "9.99"}

	p, ok := store.Profile("a")
	require.True(t, ok)
	pv, ok := p.Property("density")
	require.True(t, ok)
	assert.Equal(t, "1.24", pv.Value)
}

func TestStoreRulesSorted(t *testing.T) {
	store, err := profiles.NewStore(
		[]profiles.Profile{newProfile("a", "", nil)},
		[]profiles.TagRule{
			{Tag: "silk", Property: "nozzle_temperature", Value: "230", Precedence: 5},
			{Tag: "high-temp", Property: "nozzle_temperature", Value: "250", Precedence: 10},
			{Tag: "carbon", Property: "nozzle_temperature", Value: "240", Precedence: 10},
		},
	)
	require.NoError(t, err)

	rules := store.RulesFor("nozzle_temperature")
	require.Len(t, rules, 3)
	// Precedence descending, ties broken by tag name ascending.
	assert.Equal(t, "carbon", rules[0].Tag)
	assert.Equal(t, "high-temp", rules[1].Tag)
	assert.Equal(t, "silk", rules[2].Tag)
}

func TestPropertyNormalizesEmptyMode(t *testing.T) {
	p := newProfile("a", "", map[string]profiles.PropertyValue{
		"density": {Value: "1.24"},
	})
	pv, ok := p.Property("density")
	require.True(t, ok)
	assert.Equal(t, profiles.SyncModeInherit, pv.Mode)
}

func TestParseRules(t *testing.T) {
	data := []byte(`
rules:
  - tag: high-temp
    property: nozzle_temperature
    value: "250"
    precedence: 10
  - tag: silk
    property: nozzle_temperature
    value: "230"
    precedence: 5
`)
	rules, err := profiles.ParseRules(data, "rules.yaml")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "high-temp", rules[0].Tag)
	assert.Equal(t, 10, rules[0].Precedence)
}

func TestParseRulesRejectsMissingTag(t *testing.T) {
	data := []byte(`
rules:
  - property: nozzle_temperature
    value: "250"
`)
	_, err := profiles.ParseRules(data, "rules.yaml")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
