package differ

import (
	"slices"

	"github.com/agentstation/spoolsync/pkg/profiles"
	"github.com/agentstation/spoolsync/pkg/resolve"
)

// Diff compares two resolved snapshots and produces field-level change
// records. Profiles present only locally are Added; only remotely, Removed;
// present on both sides are compared property by property. Properties whose
// resolved mode is NeverSync are excluded from every record, on either side.
//
// The record sequence is sorted by profile ID then property name so output
// is deterministic, but downstream components re-sort as they need.
func Diff(local, remote map[profiles.ID]*resolve.ResolvedProfile) *Changeset {
	ids := make([]profiles.ID, 0, len(local)+len(remote))
	seen := make(map[profiles.ID]bool, len(local)+len(remote))
	for id := range local {
		ids = append(ids, id)
		seen[id] = true
	}
	for id := range remote {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	var records []ChangeRecord
	for _, id := range ids {
		lp, hasLocal := local[id]
		rp, hasRemote := remote[id]

		switch {
		case hasLocal && !hasRemote:
			records = append(records, profileRecords(id, lp, ChangeTypeAdded)...)
		case !hasLocal && hasRemote:
			records = append(records, profileRecords(id, rp, ChangeTypeRemoved)...)
		default:
			records = append(records, compareProfiles(id, lp, rp)...)
		}
	}

	return newChangeset(records)
}

// profileRecords emits one record per syncable property of a one-sided
// profile.
func profileRecords(id profiles.ID, rp *resolve.ResolvedProfile, typ ChangeType) []ChangeRecord {
	var records []ChangeRecord
	for _, name := range rp.Properties() {
		v := rp.Values[name]
		if v.Mode == profiles.SyncModeNeverSync {
			continue
		}
		rec := ChangeRecord{ProfileID: id, Property: name, Type: typ, LocalOrigin: v.Origin.String()}
		if typ == ChangeTypeAdded {
			rec.LocalValue = v.Value
		} else {
			rec.RemoteValue = v.Value
			rec.LocalOrigin = ""
		}
		records = append(records, rec)
	}
	return records
}

// compareProfiles compares a profile present on both sides property by
// property.
func compareProfiles(id profiles.ID, lp, rp *resolve.ResolvedProfile) []ChangeRecord {
	names := make(map[string]bool, len(lp.Values)+len(rp.Values))
	for name := range lp.Values {
		names[name] = true
	}
	for name := range rp.Values {
		names[name] = true
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	slices.Sort(sorted)

	var records []ChangeRecord
	for _, name := range sorted {
		lv, hasLocal := lp.Values[name]
		rv, hasRemote := rp.Values[name]

		// NeverSync never crosses the boundary, whichever side declares it.
		if hasLocal && lv.Mode == profiles.SyncModeNeverSync {
			continue
		}
		if !hasLocal && rv.Mode == profiles.SyncModeNeverSync {
			continue
		}

		rec := ChangeRecord{ProfileID: id, Property: name}
		switch {
		case hasLocal && !hasRemote:
			rec.LocalValue = lv.Value
			rec.Type = ChangeTypeAdded
			rec.LocalOrigin = lv.Origin.String()
		case !hasLocal && hasRemote:
			rec.RemoteValue = rv.Value
			rec.Type = ChangeTypeRemoved
		case lv.Value != rv.Value:
			rec.LocalValue = lv.Value
			rec.RemoteValue = rv.Value
			rec.Type = ChangeTypeModified
			rec.LocalOrigin = lv.Origin.String()
		default:
			rec.LocalValue = lv.Value
			rec.RemoteValue = rv.Value
			rec.Type = ChangeTypeUnchanged
			rec.LocalOrigin = lv.Origin.String()
		}
		records = append(records, rec)
	}
	return records
}
