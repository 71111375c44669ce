// Package differ compares two resolved profile snapshots (local vs. remote)
// and produces field-level change records.
package differ

import (
	"fmt"
	"strings"

	"github.com/agentstation/spoolsync/pkg/profiles"
)

// ChangeType classifies a change record.
type ChangeType string

const (
	// ChangeTypeAdded indicates the profile exists only locally.
	ChangeTypeAdded ChangeType = "added"
	// ChangeTypeRemoved indicates the profile exists only remotely.
	ChangeTypeRemoved ChangeType = "removed"
	// ChangeTypeModified indicates the property differs between sides.
	ChangeTypeModified ChangeType = "modified"
	// ChangeTypeUnchanged indicates the property matches on both sides.
	ChangeTypeUnchanged ChangeType = "unchanged"
)

// ChangeRecord is one field-level difference between the local and remote
// resolved snapshots. For Added records RemoteValue is empty; for Removed
// records LocalValue is empty.
type ChangeRecord struct {
	ProfileID   profiles.ID
	Property    string
	LocalValue  string
	RemoteValue string
	Type        ChangeType
	LocalOrigin string // origin of the local resolved value, for reports
}

// String renders the record for diff reports.
func (c ChangeRecord) String() string {
	switch c.Type {
	case ChangeTypeAdded:
		return fmt.Sprintf("+ %s.%s = %q", c.ProfileID, c.Property, c.LocalValue)
	case ChangeTypeRemoved:
		return fmt.Sprintf("- %s.%s = %q", c.ProfileID, c.Property, c.RemoteValue)
	case ChangeTypeModified:
		return fmt.Sprintf("~ %s.%s: local %q, remote %q", c.ProfileID, c.Property, c.LocalValue, c.RemoteValue)
	default:
		return fmt.Sprintf("  %s.%s = %q", c.ProfileID, c.Property, c.LocalValue)
	}
}

// Changeset wraps the flat record sequence with summary statistics.
type Changeset struct {
	Records []ChangeRecord
	Summary Summary
}

// Summary provides summary statistics for a changeset.
type Summary struct {
	Added     int
	Removed   int
	Modified  int
	Unchanged int
	Total     int // changed records only
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c.Summary.Total > 0
}

// Changed returns only the records that represent an actual difference.
func (c *Changeset) Changed() []ChangeRecord {
	var changed []ChangeRecord
	for _, r := range c.Records {
		if r.Type != ChangeTypeUnchanged {
			changed = append(changed, r)
		}
	}
	return changed
}

// String renders a human-readable diff report.
func (c *Changeset) String() string {
	if !c.HasChanges() {
		return "no changes"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d added, %d removed, %d modified\n", c.Summary.Added, c.Summary.Removed, c.Summary.Modified)
	for _, r := range c.Changed() {
		b.WriteString(r.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// newChangeset computes summary statistics over the records.
func newChangeset(records []ChangeRecord) *Changeset {
	cs := &Changeset{Records: records}
	for _, r := range records {
		switch r.Type {
		case ChangeTypeAdded:
			cs.Summary.Added++
		case ChangeTypeRemoved:
			cs.Summary.Removed++
		case ChangeTypeModified:
			cs.Summary.Modified++
		case ChangeTypeUnchanged:
			cs.Summary.Unchanged++
		}
	}
	cs.Summary.Total = cs.Summary.Added + cs.Summary.Removed + cs.Summary.Modified
	return cs
}
