// Package orca reads and writes OrcaSlicer filament profile files and adapts
// them to the sync engine's local store interface.
//
// OrcaSlicer stores almost every filament setting as a single-element JSON
// string array ("nozzle_temperature": ["220"]). Sync metadata lives inside
// the filament_notes setting as a JSON document encoded into that same
// single-element array shape.
package orca

import (
	"encoding/json"

	"github.com/agentstation/spoolsync/pkg/errors"
)

// Field is one OrcaSlicer setting value. It marshals as a single-element
// string array and unmarshals from one, taking the first element when the
// file carries more than one and treating an empty array as unset.
type Field struct {
	Value string
	Set   bool
}

// NewField returns a set Field.
func NewField(value string) Field {
	return Field{Value: value, Set: true}
}

// MarshalJSON implements json.Marshaler.
func (f Field) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal([]string{f.Value})
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return &errors.ParseError{Format: "json", Message: "setting is not a string array", Err: err}
	}
	if len(values) == 0 {
		*f = Field{}
		return nil
	}
	*f = Field{Value: values[0], Set: true}
	return nil
}

// SyncStatus records the outcome of the last reconciliation touching a file.
type SyncStatus string

// Sync status values kept in the notes history.
const (
	StatusNoop         SyncStatus = "noop"
	StatusPushed       SyncStatus = "pushed"
	StatusPulled       SyncStatus = "pulled"
	StatusPushedPulled SyncStatus = "pushed_pulled"
	StatusFailed       SyncStatus = "failed"
)

// HistoryEntry is one appended reconciliation record. History is append-only;
// the user trims it by hand.
type HistoryEntry struct {
	Status    SyncStatus `json:"status"`
	Detail    string     `json:"detail,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// ErrorEntry blocks a file from reconciliation until the user removes it.
type ErrorEntry struct {
	Message string `json:"message"`
}

// Notes is the sync metadata embedded in a profile's filament_notes setting.
type Notes struct {
	SpoolmanID   *int64 `json:"spoolman_id,omitempty"`
	PrinterID    string `json:"printer_id,omitempty"`
	ForcePush    bool   `json:"spoolman_force_push,omitempty"`
	ForcePull    bool   `json:"spoolman_force_pull,omitempty"`
	DryRun       bool   `json:"dry_run,omitempty"`
	LastModified int64  `json:"last_modified,omitempty"`
	PropagateUp  bool   `json:"propagate_up,omitempty"`

	// SyncModes overrides the per-setting sync mode, keyed by setting name.
	// Values are "override" and "never_sync"; anything absent inherits.
	SyncModes map[string]string `json:"sync_modes,omitempty"`

	Tags []string `json:"tags,omitempty"`

	History []HistoryEntry `json:"history,omitempty"`
	Errors  []ErrorEntry   `json:"errors,omitempty"`
}

// Blocked reports whether pending error entries exclude this file from
// reconciliation.
func (n *Notes) Blocked() bool {
	return len(n.Errors) > 0
}

// notesField wraps Notes in the single-element-array encoding: the one
// element is the notes document serialized to a JSON string.
type notesField struct {
	Notes
}

func (n notesField) MarshalJSON() ([]byte, error) {
	inner, err := json.Marshal(n.Notes)
	if err != nil {
		return nil, err
	}
	return json.Marshal([]string{string(inner)})
}

func (n *notesField) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return &errors.ParseError{Format: "json", Message: "filament_notes is not a string array", Err: err}
	}
	if len(values) == 0 || values[0] == "" {
		n.Notes = Notes{}
		return nil
	}
	// Notes that are not valid JSON are ordinary user notes, not metadata.
	var parsed Notes
	if err := json.Unmarshal([]byte(values[0]), &parsed); err != nil {
		n.Notes = Notes{}
		return nil
	}
	n.Notes = parsed
	return nil
}
