package seoconsole

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/eringen/seoconsole/validate"
)

// FileStore keeps all records in a single JSON file. Every write rewrites
// the file through a temp file and rename.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records []Record
	loaded  bool
}

// NewFileStore returns a store backed by the JSON file at path. The file is
// created on first write.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store: path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path}, nil
}

// Close is a no-op; every write is already flushed.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.records = []Record{}
	case err != nil:
		return err
	default:
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return fmt.Errorf("decode %s: %w", s.path, err)
		}
		s.records = records
	}
	s.loaded = true
	return nil
}

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".seo-records-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

func (s *FileStore) indexOf(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (s *FileStore) routeTaken(routePath, exceptID string) bool {
	for _, r := range s.records {
		if r.RoutePath == routePath && r.ID != exceptID {
			return true
		}
	}
	return false
}

// Available reports whether the store's directory is writable.
func (s *FileStore) Available(context.Context) bool {
	f, err := os.CreateTemp(filepath.Dir(s.path), ".seo-probe-*")
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(f.Name())
	return true
}

// List returns all records ordered by route path.
func (s *FileStore) List(context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.Slice(out, func(i, j int) bool { return out[i].RoutePath < out[j].RoutePath })
	return out, nil
}

// Get returns a record by id.
func (s *FileStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Record{}, err
	}
	if i := s.indexOf(id); i >= 0 {
		return s.records[i], nil
	}
	return Record{}, ErrNotFound
}

// GetByRoute returns the record for a route path.
func (s *FileStore) GetByRoute(_ context.Context, routePath string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Record{}, err
	}
	for _, r := range s.records {
		if r.RoutePath == routePath {
			return r, nil
		}
	}
	return Record{}, ErrNotFound
}

// Create validates in and appends a new pending record.
func (s *FileStore) Create(_ context.Context, in RecordInput) (Record, error) {
	in, err := prepareInput(in)
	if err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Record{}, err
	}
	if s.routeTaken(in.RoutePath, "") {
		return Record{}, ErrDuplicateRoute
	}
	r := newRecord(in, time.Now().UTC())
	s.records = append(s.records, r)
	if err := s.save(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return Record{}, err
	}
	return r, nil
}

// Update applies patch to the record with the given id.
func (s *FileStore) Update(_ context.Context, id string, patch RecordPatch) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Record{}, err
	}
	i := s.indexOf(id)
	if i < 0 {
		return Record{}, ErrNotFound
	}
	r, err := patch.Apply(s.records[i])
	if err != nil {
		return Record{}, err
	}
	if s.routeTaken(r.RoutePath, id) {
		return Record{}, ErrDuplicateRoute
	}
	r.UpdatedAt = time.Now().UTC()
	return r, s.replace(i, r)
}

// Delete removes a record by id.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return err
	}
	i := s.indexOf(id)
	if i < 0 {
		return ErrNotFound
	}
	prev := s.records
	s.records = append(append([]Record{}, prev[:i]...), prev[i+1:]...)
	if err := s.save(); err != nil {
		s.records = prev
		return err
	}
	return nil
}

// SetValidation stores the outcome of a validation run.
func (s *FileStore) SetValidation(_ context.Context, id string, status ValidationStatus, at time.Time, issues []validate.Issue) (Record, error) {
	if _, err := ParseValidationStatus(string(status)); err != nil {
		return Record{}, err
	}
	errs, err := encodeIssues(issues)
	if err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoaded(); err != nil {
		return Record{}, err
	}
	i := s.indexOf(id)
	if i < 0 {
		return Record{}, ErrNotFound
	}
	r := s.records[i]
	at = at.UTC()
	r.ValidationStatus = status
	r.LastValidatedAt = &at
	r.ValidationErrors = errs
	r.UpdatedAt = time.Now().UTC()
	return r, s.replace(i, r)
}

func (s *FileStore) replace(i int, r Record) error {
	prev := s.records[i]
	s.records[i] = r
	if err := s.save(); err != nil {
		s.records[i] = prev
		return err
	}
	return nil
}
