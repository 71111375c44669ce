package orca

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	stdsync "sync"

	"github.com/agentstation/spoolsync/pkg/errors"
	"github.com/agentstation/spoolsync/pkg/logging"
	"github.com/agentstation/spoolsync/pkg/planner"
	"github.com/agentstation/spoolsync/pkg/profiles"
)

// Store reads an OrcaSlicer filament directory as the local side of a sync
// pass and writes pulled changes back into the profile files.
type Store struct {
	dir       string
	rulesPath string

	mu    stdsync.Mutex
	paths map[profiles.ID]string // profile id to file path, rebuilt on Load
}

// NewStore creates a Store over a filament directory. rulesPath may be empty
// when no tag rule file is configured.
func NewStore(dir, rulesPath string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &errors.IOError{Operation: "open", Path: dir, Err: err}
	}
	if !info.IsDir() {
		return nil, &errors.ValidationError{Field: "dir", Value: dir, Message: "filament path is not a directory"}
	}
	return &Store{dir: dir, rulesPath: rulesPath, paths: make(map[profiles.ID]string)}, nil
}

// Dir returns the filament directory the store reads.
func (s *Store) Dir() string {
	return s.dir
}

// Load scans the filament directory and parses every profile file. Files with
// pending error entries in their notes are skipped until the user clears
// them; unparseable files are skipped with a warning so one broken profile
// does not block the rest of the catalog.
func (s *Store) Load(ctx context.Context) ([]profiles.Profile, []profiles.TagRule, error) {
	log := logging.Ctx(ctx)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, nil, &errors.IOError{Operation: "read", Path: s.dir, Err: err}
	}

	paths := make(map[profiles.ID]string)
	var list []profiles.Profile
	for _, entry := range entries {
		if entry.IsDir() || !isProfilePath(entry.Name()) {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())

		f, err := ParseFile(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unparseable profile file")
			continue
		}
		if f.Notes.Blocked() {
			log.Warn().
				Str("path", path).
				Int("errors", len(f.Notes.Errors)).
				Msg("profile has pending error entries, excluded from reconciliation")
			continue
		}

		prof := f.Profile()
		if prior, dup := paths[prof.ID]; dup {
			return nil, nil, &errors.ValidationError{
				Field:   "filament_settings_id",
				Value:   prof.ID,
				Message: "duplicate profile id in " + prior + " and " + path,
			}
		}
		paths[prof.ID] = path
		list = append(list, prof)
	}

	rules, err := s.loadRules()
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	s.paths = paths
	s.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	log.Debug().Int("profiles", len(list)).Int("rules", len(rules)).Msg("filament directory loaded")
	return list, rules, nil
}

// Apply executes one pull operation against the directory: creates adopt a
// remote profile as a new file, updates write pulled values into the existing
// file, deletes remove it. Writes go through a temp file and rename.
func (s *Store) Apply(ctx context.Context, op *planner.SyncOperation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch op.Kind {
	case planner.KindCreate:
		return s.createFile(op)
	case planner.KindUpdate:
		return s.updateFile(op)
	case planner.KindDelete:
		return s.deleteFile(op)
	default:
		return &errors.ValidationError{Field: "kind", Value: op.Kind, Message: "unknown operation kind"}
	}
}

func (s *Store) createFile(op *planner.SyncOperation) error {
	f := &File{
		SettingsID: string(op.ProfileID),
		Name:       string(op.ProfileID),
		Inherits:   string(op.ParentID),
		Settings:   make(map[string]Field),
		plain:      map[string]string{},
		extra:      map[string]json.RawMessage{},
	}
	f.applyPayload(op.Payload, StatusPulled, "adopted from inventory")

	path := filepath.Join(s.dir, fileNameFor(op.ProfileID))
	if _, err := os.Stat(path); err == nil {
		return &errors.IOError{Operation: "create", Path: path, Err: os.ErrExist}
	}
	if err := writeFile(path, f); err != nil {
		return err
	}

	s.mu.Lock()
	s.paths[op.ProfileID] = path
	s.mu.Unlock()
	return nil
}

func (s *Store) updateFile(op *planner.SyncOperation) error {
	path, err := s.pathFor(op.ProfileID)
	if err != nil {
		return err
	}
	f, err := ParseFile(path)
	if err != nil {
		return err
	}
	f.applyPayload(op.Payload, StatusPulled, "pulled from inventory")
	return writeFile(path, f)
}

func (s *Store) deleteFile(op *planner.SyncOperation) error {
	path, err := s.pathFor(op.ProfileID)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return &errors.IOError{Operation: "delete", Path: path, Err: err}
	}
	s.mu.Lock()
	delete(s.paths, op.ProfileID)
	s.mu.Unlock()
	return nil
}

func (s *Store) pathFor(id profiles.ID) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	path, ok := s.paths[id]
	if !ok {
		return "", &errors.NotFoundError{Resource: "profile file", ID: id.String()}
	}
	return path, nil
}

func (s *Store) loadRules() ([]profiles.TagRule, error) {
	if s.rulesPath == "" {
		return nil, nil
	}
	return profiles.LoadRules(s.rulesPath)
}

func writeFile(path string, f *File) error {
	data, err := f.Encode()
	if err != nil {
		return &errors.ParseError{Format: "json", File: path, Message: "encoding profile", Err: err}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &errors.IOError{Operation: "write", Path: tmp, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		return &errors.IOError{Operation: "write", Path: path, Err: err}
	}
	return nil
}

func isProfilePath(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".json")
}

func fileNameFor(id profiles.ID) string {
	// Profile ids may contain characters that are unsafe in file names.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		default:
			return r
		}
	}, string(id))
	return safe + ".json"
}
