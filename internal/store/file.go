package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"repolens/internal/identity"
)

// FileStore persists one directory per identity under Dir, containing
// basic.json and exploration-<mode>.json files. Writes are whole-file
// overwrites so a crashed write never leaves a half-updated record.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore { return &FileStore{Dir: dir} }

func (f *FileStore) Save(id identity.Identity, mode string, result json.RawMessage) (Stored, error) {
	rec := Stored{
		Identity:  id,
		Mode:      mode,
		Result:    result,
		Timestamp: time.Now().Unix(),
		Version:   SchemaVersion,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Stored{}, fmt.Errorf("store: marshal exploration: %w", err)
	}
	if err := f.writeFile(id, explorationFile(mode), data); err != nil {
		return Stored{}, err
	}
	return rec, nil
}

func (f *FileStore) Load(id identity.Identity, mode string) (Stored, bool, error) {
	data, err := os.ReadFile(f.path(id, explorationFile(mode)))
	if os.IsNotExist(err) {
		return Stored{}, false, nil
	}
	if err != nil {
		return Stored{}, false, fmt.Errorf("store: read exploration: %w", err)
	}
	var rec Stored
	if err := json.Unmarshal(data, &rec); err != nil {
		return Stored{}, false, fmt.Errorf("store: decode exploration: %w", err)
	}
	return rec, true, nil
}

func (f *FileStore) HasRecent(id identity.Identity, mode string, maxAgeHours float64) bool {
	rec, ok, err := f.Load(id, mode)
	if err != nil || !ok {
		return false
	}
	return rec.Age() < time.Duration(maxAgeHours*float64(time.Hour))
}

func (f *FileStore) SaveBasic(id identity.Identity, data json.RawMessage) error {
	return f.writeFile(id, "basic.json", data)
}

func (f *FileStore) LoadBasic(id identity.Identity) (json.RawMessage, bool, error) {
	data, err := os.ReadFile(f.path(id, "basic.json"))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: read basic: %w", err)
	}
	return data, true, nil
}

func (f *FileStore) writeFile(id identity.Identity, name string, data []byte) error {
	dir := filepath.Join(f.Dir, id.DirKey())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: mkdir %s: %w", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("store: write %s: %w", name, err)
	}
	return nil
}

func (f *FileStore) path(id identity.Identity, name string) string {
	return filepath.Join(f.Dir, id.DirKey(), name)
}

func explorationFile(mode string) string {
	return "exploration-" + mode + ".json"
}
