// Package preset persists named stabilizer parameter sets as one JSON
// document per preset under a fixed directory. The store is a collaborator of
// the stabilizer core, not part of the frame path; failures are reported as
// boolean results and logged, never surfaced to the host as errors.
package preset

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/steadyshot/stabilizer/internal/config"
	"github.com/steadyshot/stabilizer/internal/monitoring"
)

// Preset is the persisted record: a named parameter set with an optional
// free-form description.
type Preset struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Params      config.StabilizerParams `json:"params"`
	UpdatedAt   int64                   `json:"updated_at"` // unix seconds
}

// Store reads and writes presets under a single directory.
type Store struct {
	dir string
}

// NewStore returns a store rooted at dir, creating the directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// validName rejects empty names and names that would escape the store
// directory or collide with the temp-file convention.
func validName(name string) bool {
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, "/\\") || name != filepath.Base(name) {
		return false
	}
	return !strings.HasPrefix(name, ".")
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

// Save persists params under name, fully replacing any existing preset with
// that name. The write is atomic: a temp file in the store directory is
// renamed over the target, so a failed save leaves no partial file behind.
// Returns false on an empty or unusable name or on any I/O failure.
func (s *Store) Save(name, description string, p config.StabilizerParams) bool {
	if !validName(name) {
		return false
	}

	rec := Preset{
		Name:        name,
		Description: description,
		Params:      config.Sanitize(p),
		UpdatedAt:   time.Now().Unix(),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		monitoring.Logf("preset: marshal %q: %v", name, err)
		return false
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		monitoring.Logf("preset: temp file for %q: %v", name, err)
		return false
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil || cerr != nil {
		os.Remove(tmpName)
		monitoring.Logf("preset: write %q: %v %v", name, werr, cerr)
		return false
	}
	if err := os.Rename(tmpName, s.path(name)); err != nil {
		os.Remove(tmpName)
		monitoring.Logf("preset: rename %q: %v", name, err)
		return false
	}
	return true
}

// Load reads the preset saved under name. The second result is false when no
// such preset exists or its file cannot be parsed.
func (s *Store) Load(name string) (Preset, bool) {
	if !validName(name) {
		return Preset{}, false
	}
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return Preset{}, false
	}
	var rec Preset
	if err := json.Unmarshal(data, &rec); err != nil {
		monitoring.Logf("preset: parse %q: %v", name, err)
		return Preset{}, false
	}
	return rec, true
}

// List returns the names of all saved presets, sorted.
func (s *Store) List() []string {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		monitoring.Logf("preset: list: %v", err)
		return nil
	}
	var names []string
	for _, e := range entries {
		n := e.Name()
		if e.IsDir() || !strings.HasSuffix(n, ".json") || strings.HasPrefix(n, ".") {
			continue
		}
		names = append(names, strings.TrimSuffix(n, ".json"))
	}
	sort.Strings(names)
	return names
}

// Delete removes the preset saved under name. Returns false when no such
// preset exists.
func (s *Store) Delete(name string) bool {
	if !validName(name) {
		return false
	}
	if err := os.Remove(s.path(name)); err != nil {
		return false
	}
	return true
}

// Exists reports whether a preset is saved under name.
func (s *Store) Exists(name string) bool {
	if !validName(name) {
		return false
	}
	fi, err := os.Stat(s.path(name))
	return err == nil && !fi.IsDir()
}
