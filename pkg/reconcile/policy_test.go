package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/spoolsync/pkg/differ"
	"github.com/agentstation/spoolsync/pkg/profiles"
	"github.com/agentstation/spoolsync/pkg/reconcile"
	"github.com/agentstation/spoolsync/pkg/resolve"
)

// buildInput constructs stores and resolutions for both sides.
func buildInput(t *testing.T, local, remote []profiles.Profile, rules []profiles.TagRule) reconcile.Input {
	t.Helper()

	localStore, err := profiles.NewStore(local, rules)
	require.NoError(t, err)
	remoteStore, err := profiles.NewStore(remote, rules)
	require.NoError(t, err)

	localRes, err := resolve.Resolve(localStore, nil)
	require.NoError(t, err)
	remoteRes, err := resolve.Resolve(remoteStore, nil)
	require.NoError(t, err)

	return reconcile.Input{
		Local:          localStore,
		Remote:         remoteStore,
		LocalResolved:  localRes,
		RemoteResolved: remoteRes,
	}
}

func TestDecideLocalOverridePushes(t *testing.T) {
	in := buildInput(t,
		[]profiles.Profile{{
			ID:       "pla-red",
			Revision: 5,
			Properties: map[string]profiles.PropertyValue{
				"print_speed": {Value: "80", Mode: profiles.SyncModeOverride},
			},
		}},
		[]profiles.Profile{{
			ID:       "pla-red",
			Revision: 9,
			Properties: map[string]profiles.PropertyValue{
				"print_speed": {Value: "60", Mode: profiles.SyncModeInherit},
			},
		}},
		nil,
	)

	policy := reconcile.NewPolicy()
	cs := differ.Diff(in.LocalResolved, in.RemoteResolved)
	decisions, conflicts := policy.DecideAll(in, cs.Records)

	require.Empty(t, conflicts)
	require.Len(t, decisions, 1)
	assert.Equal(t, reconcile.DirectionPush, decisions[0].Direction)
	assert.Equal(t, profiles.ID("pla-red"), decisions[0].TargetID)
}

func TestDecideRemoteAuthorityPulls(t *testing.T) {
	// density is a physical property owned by the inventory backend, even
	// when the local side has the newer revision.
	in := buildInput(t,
		[]profiles.Profile{{
			ID:       "pla-red",
			Revision: 100,
			Properties: map[string]profiles.PropertyValue{
				"density": {Value: "1.20", Mode: profiles.SyncModeInherit},
			},
		}},
		[]profiles.Profile{{
			ID:       "pla-red",
			Revision: 1,
			Properties: map[string]profiles.PropertyValue{
				"density": {Value: "1.24", Mode: profiles.SyncModeInherit},
			},
		}},
		nil,
	)

	policy := reconcile.NewPolicy()
	decisions, conflicts := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)

	require.Empty(t, conflicts)
	require.Len(t, decisions, 1)
	assert.Equal(t, reconcile.DirectionPull, decisions[0].Direction)
}

func TestDecideNewerRevisionWins(t *testing.T) {
	tests := []struct {
		name          string
		localRev      int64
		remoteRev     int64
		wantDirection reconcile.Direction
	}{
		{"local newer pushes", 10, 5, reconcile.DirectionPush},
		{"remote newer pulls", 5, 10, reconcile.DirectionPull},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := buildInput(t,
				[]profiles.Profile{{
					ID:       "pla-red",
					Revision: tt.localRev,
					Properties: map[string]profiles.PropertyValue{
						"custom_note": {Value: "local", Mode: profiles.SyncModeInherit},
					},
				}},
				[]profiles.Profile{{
					ID:       "pla-red",
					Revision: tt.remoteRev,
					Properties: map[string]profiles.PropertyValue{
						"custom_note": {Value: "remote", Mode: profiles.SyncModeInherit},
					},
				}},
				nil,
			)

			policy := reconcile.NewPolicy()
			decisions, conflicts := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)
			require.Empty(t, conflicts)
			require.Len(t, decisions, 1)
			assert.Equal(t, tt.wantDirection, decisions[0].Direction)
		})
	}
}

func TestDecideEqualRevisionIsConflict(t *testing.T) {
	in := buildInput(t,
		[]profiles.Profile{{
			ID:       "pla-red",
			Revision: 7,
			Properties: map[string]profiles.PropertyValue{
				"custom_note": {Value: "local", Mode: profiles.SyncModeInherit},
			},
		}},
		[]profiles.Profile{{
			ID:       "pla-red",
			Revision: 7,
			Properties: map[string]profiles.PropertyValue{
				"custom_note": {Value: "remote", Mode: profiles.SyncModeInherit},
			},
		}},
		nil,
	)

	policy := reconcile.NewPolicy()
	decisions, conflicts := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)

	assert.Empty(t, decisions)
	require.Len(t, conflicts, 1)
	assert.Equal(t, profiles.ID("pla-red"), conflicts[0].ProfileID)
	assert.Equal(t, "custom_note", conflicts[0].Property)
	assert.Equal(t, int64(7), conflicts[0].Revision)
	assert.Contains(t, conflicts[0].String(), "revision 7")
}

func TestDecideAddedPushesCreate(t *testing.T) {
	in := buildInput(t,
		[]profiles.Profile{{
			ID:       "pla-new",
			Revision: 1,
			Properties: map[string]profiles.PropertyValue{
				"custom_note": {Value: "fresh", Mode: profiles.SyncModeInherit},
			},
		}},
		nil,
		nil,
	)

	policy := reconcile.NewPolicy()
	decisions, conflicts := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)
	require.Empty(t, conflicts)
	require.Len(t, decisions, 1)
	assert.Equal(t, reconcile.DirectionPush, decisions[0].Direction)
	assert.Equal(t, differ.ChangeTypeAdded, decisions[0].Change.Type)
}

func TestDecideRemovedDefaultsToAdoption(t *testing.T) {
	in := buildInput(t,
		nil,
		[]profiles.Profile{{
			ID:       "petg-base",
			Revision: 3,
			Properties: map[string]profiles.PropertyValue{
				"custom_note": {Value: "remote only", Mode: profiles.SyncModeInherit},
			},
		}},
		nil,
	)

	t.Run("default adopts locally", func(t *testing.T) {
		policy := reconcile.NewPolicy()
		decisions, _ := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)
		require.Len(t, decisions, 1)
		assert.Equal(t, reconcile.DirectionPull, decisions[0].Direction)
	})

	t.Run("prune deletes remotely", func(t *testing.T) {
		policy := reconcile.NewPolicy(reconcile.WithPruneRemote(true))
		decisions, _ := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)
		require.Len(t, decisions, 1)
		assert.Equal(t, reconcile.DirectionPush, decisions[0].Direction)
	})
}

func TestDecidePropagateUpRetargetsAncestor(t *testing.T) {
	in := buildInput(t,
		[]profiles.Profile{
			{
				ID:       "pla-base",
				Revision: 10,
				Properties: map[string]profiles.PropertyValue{
					"custom_note": {Value: "tuned", Mode: profiles.SyncModeInherit},
				},
			},
			{ID: "pla-red", ParentID: "pla-base", Revision: 10, PropagateUp: true},
		},
		[]profiles.Profile{
			{
				ID:       "pla-base",
				Revision: 1,
				Properties: map[string]profiles.PropertyValue{
					"custom_note": {Value: "tuned", Mode: profiles.SyncModeInherit},
				},
			},
			{
				ID:       "pla-red",
				ParentID: "pla-base",
				Revision: 1,
				Properties: map[string]profiles.PropertyValue{
					"custom_note": {Value: "stale", Mode: profiles.SyncModeOverride},
				},
			},
		},
		nil,
	)

	policy := reconcile.NewPolicy()
	decisions, conflicts := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)
	require.Empty(t, conflicts)

	// The child's inherited value differs from remote; with PropagateUp the
	// push targets the defining ancestor.
	var childDecision *reconcile.Decision
	for i := range decisions {
		if decisions[i].Change.ProfileID == "pla-red" {
			childDecision = &decisions[i]
		}
	}
	require.NotNil(t, childDecision)
	assert.Equal(t, reconcile.DirectionPush, childDecision.Direction)
	assert.Equal(t, profiles.ID("pla-base"), childDecision.TargetID)
}

func TestMatchesPattern(t *testing.T) {
	tests := []struct {
		property string
		pattern  string
		want     bool
	}{
		{"density", "density", true},
		{"retraction_speed", "retraction_*", true},
		{"retraction_distance", "retraction_*", true},
		{"nozzle_temperature", "retraction_*", false},
		{"chamber_temperature", "chamber_temperature*", true},
		{"bed_temperature", "?ed_temperature", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, reconcile.MatchesPattern(tt.property, tt.pattern),
			"property %q pattern %q", tt.property, tt.pattern)
	}
}

func TestAuthorityPrefersSpecificPattern(t *testing.T) {
	authorities := []reconcile.FieldAuthority{
		{Property: "retraction_*", Side: reconcile.SideLocal, Priority: 50},
		{Property: "retraction_speed", Side: reconcile.SideRemote, Priority: 50},
	}

	auth := reconcile.AuthorityByField("retraction_speed", authorities)
	require.NotNil(t, auth)
	assert.Equal(t, reconcile.SideRemote, auth.Side)

	auth = reconcile.AuthorityByField("retraction_distance", authorities)
	require.NotNil(t, auth)
	assert.Equal(t, reconcile.SideLocal, auth.Side)
}

func TestDecidePropertyRemovedOnSharedProfilePulls(t *testing.T) {
	// Both sides know the profile; one property exists only remotely. The
	// missing property is an ordinary field pull, never a profile removal,
	// so prune must not turn it into a push.
	tests := []struct {
		name string
		opts []reconcile.PolicyOption
	}{
		{"default", nil},
		{"prune enabled", []reconcile.PolicyOption{reconcile.WithPruneRemote(true)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := buildInput(t,
				[]profiles.Profile{{
					ID:       "pla-red",
					Revision: 9,
					Properties: map[string]profiles.PropertyValue{
						"custom_note": {Value: "same", Mode: profiles.SyncModeInherit},
					},
				}},
				[]profiles.Profile{{
					ID:       "pla-red",
					Revision: 1,
					Properties: map[string]profiles.PropertyValue{
						"custom_note": {Value: "same", Mode: profiles.SyncModeInherit},
						"spool_note":  {Value: "drybox", Mode: profiles.SyncModeInherit},
					},
				}},
				nil,
			)

			policy := reconcile.NewPolicy(tt.opts...)
			decisions, conflicts := policy.DecideAll(in, differ.Diff(in.LocalResolved, in.RemoteResolved).Records)

			require.Empty(t, conflicts)
			require.Len(t, decisions, 1)
			assert.Equal(t, differ.ChangeTypeRemoved, decisions[0].Change.Type)
			assert.Equal(t, "spool_note", decisions[0].Change.Property)
			assert.Equal(t, reconcile.DirectionPull, decisions[0].Direction)
		})
	}
}
