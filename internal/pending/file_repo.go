package pending

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"team-pulse/internal/members"
)

// Request is a join request waiting for an admin decision.
type Request struct {
	Member      members.Member `json:"member"`
	RequestedAt time.Time      `json:"requested_at"`
}

type Repository interface {
	LoadAll() ([]Request, error)
	Upsert(req Request) error
	Remove(userID int64) error
	Get(userID int64) (Request, bool, error)
}

type FileRepository struct {
	path string
	mu   sync.Mutex
}

func NewFileRepository(path string) (*FileRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("pending: ensure dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("pending: touch file: %w", err)
	}
	_ = f.Close()
	return &FileRepository{path: path}, nil
}

// LoadAll returns requests oldest first.
func (r *FileRepository) LoadAll() ([]Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqs, err := r.loadUnlocked()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(reqs, func(i, j int) bool { return reqs[i].RequestedAt.Before(reqs[j].RequestedAt) })
	return reqs, nil
}

func (r *FileRepository) Get(userID int64) (Request, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqs, err := r.loadUnlocked()
	if err != nil {
		return Request{}, false, err
	}
	for _, x := range reqs {
		if x.Member.ID == userID {
			return x, true, nil
		}
	}
	return Request{}, false, nil
}

// Upsert keeps the original request time when the user asks again.
func (r *FileRepository) Upsert(req Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqs, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	updated := false
	for i, x := range reqs {
		if x.Member.ID == req.Member.ID {
			req.RequestedAt = x.RequestedAt
			reqs[i] = req
			updated = true
			break
		}
	}
	if !updated {
		reqs = append(reqs, req)
	}
	return r.saveUnlocked(reqs)
}

func (r *FileRepository) Remove(userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reqs, err := r.loadUnlocked()
	if err != nil {
		return err
	}
	out := make([]Request, 0, len(reqs))
	for _, x := range reqs {
		if x.Member.ID != userID {
			out = append(out, x)
		}
	}
	return r.saveUnlocked(out)
}

func (r *FileRepository) loadUnlocked() ([]Request, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("pending: open: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	var reqs []Request
	if err := json.NewDecoder(f).Decode(&reqs); err != nil {
		if err == io.EOF {
			return []Request{}, nil
		}
		return nil, fmt.Errorf("pending: decode %s: %w", r.path, err)
	}
	return reqs, nil
}

func (r *FileRepository) saveUnlocked(reqs []Request) error {
	f, err := os.OpenFile(r.path, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("pending: open for write: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(reqs)
}
