package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps every association in memory and, when created with a
// path, rewrites a JSON snapshot after each mutation. A single mutex
// serializes all operations, which makes Update atomic within the process.
type FileStore struct {
	path    string
	mu      sync.Mutex
	records map[string][]json.RawMessage
}

// NewMemoryStore returns a store without a backing file.
func NewMemoryStore() *FileStore {
	return &FileStore{records: make(map[string][]json.RawMessage)}
}

func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("storage: touch file: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	records := make(map[string][]json.RawMessage)
	if err := json.NewDecoder(f).Decode(&records); err != nil && err != io.EOF {
		return nil, fmt.Errorf("storage: load %s: %w", path, err)
	}
	return &FileStore{path: path, records: records}, nil
}

func (s *FileStore) Read(_ context.Context, a Association) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[a.String()]
	if len(recs) == 0 {
		return nil, nil
	}
	return clone(recs[0]), nil
}

func (s *FileStore) ReadAll(_ context.Context, a Association) ([][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.records[a.String()]
	out := make([][]byte, 0, len(recs))
	for _, r := range recs {
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *FileStore) Put(_ context.Context, a Association, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[a.String()] = []json.RawMessage{clone(data)}
	return s.saveUnlocked()
}

func (s *FileStore) Append(_ context.Context, a Association, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := a.String()
	s.records[k] = append(s.records[k], clone(data))
	return s.saveUnlocked()
}

func (s *FileStore) Remove(_ context.Context, a Association) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := a.String()
	if _, ok := s.records[k]; !ok {
		return nil
	}
	delete(s.records, k)
	return s.saveUnlocked()
}

func (s *FileStore) Update(_ context.Context, a Association, fn Mutator) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := a.String()
	recs := s.records[k]
	var cur []byte
	if len(recs) > 0 {
		cur = clone(recs[0])
	}
	next, err := fn(cur)
	if err != nil {
		return err
	}
	switch {
	case next == nil && len(recs) <= 1:
		delete(s.records, k)
	case next == nil:
		s.records[k] = recs[1:]
	case len(recs) == 0:
		s.records[k] = []json.RawMessage{clone(next)}
	default:
		recs[0] = clone(next)
	}
	return s.saveUnlocked()
}

func (s *FileStore) saveUnlocked() error {
	if s.path == "" {
		return nil
	}
	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("storage: open snapshot: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.records); err != nil {
		_ = f.Close()
		return fmt.Errorf("storage: encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("storage: close snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("storage: replace snapshot: %w", err)
	}
	return nil
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
