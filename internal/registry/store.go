package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/patrickwarner/adbroker/internal/models"
)

// DefaultPath is where the file store keeps the snapshot.
const DefaultPath = "./scratch/ad_units.json"

// FileStore keeps the snapshot in a JSON file. Writes go to a temporary
// file in the same directory which is then renamed over the target, so a
// crash never leaves a half-written snapshot.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store for path; empty selects DefaultPath.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path}
}

// Path returns the snapshot location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Save(_ context.Context, units []models.AdUnit) error {
	data, err := models.MarshalSnapshot(units)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file is an empty registry.
func (s *FileStore) Load(_ context.Context) ([]models.AdUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	snap, err := models.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return snap.AdUnits, nil
}

// MemoryStore keeps the last saved list in memory.
type MemoryStore struct {
	mu    sync.Mutex
	units []models.AdUnit
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(_ context.Context, units []models.AdUnit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.units = cloneAll(units)
	return nil
}

func (s *MemoryStore) Load(_ context.Context) ([]models.AdUnit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneAll(s.units), nil
}

func cloneAll(units []models.AdUnit) []models.AdUnit {
	if units == nil {
		return nil
	}
	out := make([]models.AdUnit, len(units))
	for i, u := range units {
		out[i] = u.Clone()
	}
	return out
}
