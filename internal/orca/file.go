package orca

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

// Keys that OrcaSlicer stores as plain strings rather than string arrays.
const (
	keySettingsID = "filament_settings_id"
	keyName       = "name"
	keyInherits   = "inherits"
	keyNotes      = "filament_notes"
)

var plainKeys = map[string]bool{
	keySettingsID: true,
	keyName:       true,
	keyInherits:   true,
	"from":        true,
	"instantiation": true,
	"version":     true,
	"type":        true,
}

// File is one parsed OrcaSlicer filament profile.
type File struct {
	Path string

	SettingsID string
	Name       string
	Inherits   string
	Notes      Notes

	// Settings holds every single-element-array setting by name.
	Settings map[string]Field

	// plain holds the plain-string keys other than the named ones, and extra
	// holds values in neither shape. Both round-trip untouched.
	plain map[string]string
	extra map[string]json.RawMessage
}

// ID returns the profile identity: settings id, falling back to name, then
// the file's base name.
func (f *File) ID() profiles.ID {
	switch {
	case f.SettingsID != "":
		return profiles.ID(f.SettingsID)
	case f.Name != "":
		return profiles.ID(f.Name)
	default:
		base := filepath.Base(f.Path)
		return profiles.ID(strings.TrimSuffix(base, filepath.Ext(base)))
	}
}

// ParseFile reads and parses one profile file.
func ParseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.IOError{Operation: "read", Path: path, Err: err}
	}
	f, err := Parse(data)
	if err != nil {
		return nil, &errors.ParseError{Format: "json", File: path, Message: "invalid filament profile", Err: err}
	}
	f.Path = path
	return f, nil
}

// Parse parses profile file contents.
func Parse(data []byte) (*File, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	f := &File{
		Settings: make(map[string]Field),
		plain:    make(map[string]string),
		extra:    make(map[string]json.RawMessage),
	}

	for key, value := range raw {
		switch {
		case key == keyNotes:
			var notes notesField
			if err := json.Unmarshal(value, &notes); err != nil {
				return nil, err
			}
			f.Notes = notes.Notes
		case plainKeys[key]:
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return nil, err
			}
			switch key {
			case keySettingsID:
				f.SettingsID = s
			case keyName:
				f.Name = s
			case keyInherits:
				f.Inherits = s
			default:
				f.plain[key] = s
			}
		default:
			var field Field
			if err := json.Unmarshal(value, &field); err != nil {
				// Not every key uses the array shape; carry it through as-is.
				f.extra[key] = value
				continue
			}
			if field.Set {
				f.Settings[key] = field
			}
		}
	}
	return f, nil
}

// Encode serializes the file back to OrcaSlicer's on-disk shape with sorted
// keys and indentation.
func (f *File) Encode() ([]byte, error) {
	out := make(map[string]json.RawMessage)

	put := func(key string, v any) error {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = data
		return nil
	}

	if f.SettingsID != "" {
		if err := put(keySettingsID, f.SettingsID); err != nil {
			return nil, err
		}
	}
	if f.Name != "" {
		if err := put(keyName, f.Name); err != nil {
			return nil, err
		}
	}
	if f.Inherits != "" {
		if err := put(keyInherits, f.Inherits); err != nil {
			return nil, err
		}
	}
	if err := put(keyNotes, notesField{f.Notes}); err != nil {
		return nil, err
	}
	for key, s := range f.plain {
		if err := put(key, s); err != nil {
			return nil, err
		}
	}
	for key, field := range f.Settings {
		if err := put(key, field); err != nil {
			return nil, err
		}
	}
	for key, value := range f.extra {
		out[key] = value
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Profile converts the file into the engine's profile form. Force-push marks
// every declared setting as an override for the pass; force-pull zeroes the
// revision so the remote side wins every newest-revision comparison.
func (f *File) Profile() profiles.Profile {
	props := make(map[string]profiles.PropertyValue, len(f.Settings))
	for name, field := range f.Settings {
		mode := profiles.SyncModeInherit
		switch f.Notes.SyncModes[name] {
		case string(profiles.SyncModeOverride):
			mode = profiles.SyncModeOverride
		case string(profiles.SyncModeNeverSync):
			mode = profiles.SyncModeNeverSync
		}
		if f.Notes.ForcePush && mode == profiles.SyncModeInherit {
			mode = profiles.SyncModeOverride
		}
		props[name] = profiles.PropertyValue{Value: field.Value, Mode: mode}
	}

	revision := f.Notes.LastModified
	if f.Notes.ForcePull {
		revision = 0
	}

	tags := append([]string(nil), f.Notes.Tags...)
	if mat, ok := f.Settings["filament_type"]; ok {
		tags = append(tags, strings.ToLower(mat.Value))
	}
	sort.Strings(tags)

	return profiles.Profile{
		ID:          f.ID(),
		ParentID:    profiles.ID(f.Inherits),
		Properties:  props,
		Tags:        tags,
		Revision:    revision,
		Origin:      profiles.OriginLocal,
		PropagateUp: f.Notes.PropagateUp,
	}
}

// applyPayload writes pulled values into the file and stamps the notes.
func (f *File) applyPayload(payload map[string]string, status SyncStatus, detail string) {
	for name, value := range payload {
		f.Settings[name] = NewField(value)
	}
	now := time.Now().Unix()
	f.Notes.LastModified = now
	f.Notes.ForcePull = false
	f.Notes.ForcePush = false
	f.Notes.History = append(f.Notes.History, HistoryEntry{
		Status:    status,
		Detail:    detail,
		Timestamp: now,
	})
}
