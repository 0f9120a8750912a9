package members

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("members: ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("members: touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

func (r *FileRepository) LoadAll() ([]Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadUnlocked()
}

func (r *FileRepository) Upsert(m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	updated := false
	for i, x := range list {
		if x.ID == m.ID {
			list[i] = m
			updated = true
			break
		}
	}
	if !updated {
		list = append(list, m)
	}
	return r.saveUnlocked(list)
}

func (r *FileRepository) Remove(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	list, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	out := make([]Member, 0, len(list))
	for _, x := range list {
		if x.ID != userID {
			out = append(out, x)
		}
	}
	return r.saveUnlocked(out)
}

func (r *FileRepository) loadUnlocked() ([]Member, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("members: open: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	var list []Member
	if err := json.NewDecoder(f).Decode(&list); err != nil {
		if err == io.EOF {
			return []Member{}, nil
		}
		return nil, fmt.Errorf("members: decode %s: %w", r.path, err)
	}
	return list, nil
}

func (r *FileRepository) saveUnlocked(list []Member) error {
	f, err := os.OpenFile(r.path, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("members: open for write: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(list)
}
