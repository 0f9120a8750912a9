package members

import (
	"sort"
	"strings"
	"sync"

	"team-pulse/internal/chat"
)

// Member is an approved member of the team roster.
type Member struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (m Member) Name() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

func (m Member) User() chat.User {
	return chat.User{ID: m.ID, Username: m.Username, Name: m.Name()}
}

type Repository interface {
	LoadAll() ([]Member, error)
	Upsert(m Member) error
	Remove(userID int64) error
}

// Service is the roster: the set of users the workflows address.
type Service struct {
	repo Repository

	mu      sync.RWMutex
	members map[int64]Member
}

func NewWithRepo(repo Repository, initial []int64) (*Service, error) {
	s := &Service{repo: repo, members: make(map[int64]Member)}
	if repo != nil {
		list, err := repo.LoadAll()
		if err != nil {
			return nil, err
		}
		for _, m := range list {
			s.members[m.ID] = m
		}
	}
	// ids from env come without usernames until the user talks to the bot
	for _, id := range initial {
		if _, ok := s.members[id]; !ok {
			s.members[id] = Member{ID: id}
		}
	}
	return s, nil
}

func (s *Service) IsMember(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[userID]
	return ok
}

func (s *Service) Upsert(m Member) error {
	s.mu.Lock()
	s.members[m.ID] = m
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Upsert(m)
	}
	return nil
}

// Touch refreshes the stored profile of an existing member. Unknown users are ignored.
func (s *Service) Touch(m Member) error {
	s.mu.RLock()
	cur, ok := s.members[m.ID]
	s.mu.RUnlock()
	if !ok || cur == m {
		return nil
	}
	return s.Upsert(m)
}

func (s *Service) Remove(userID int64) error {
	s.mu.Lock()
	delete(s.members, userID)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Remove(userID)
	}
	return nil
}

// List returns members sorted by id.
func (s *Service) List() []Member {
	s.mu.RLock()
	out := make([]Member, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Service) ByID(userID int64) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[userID]
	return m, ok
}

// ByUsername matches exactly, case-sensitive.
func (s *Service) ByUsername(username string) (Member, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.members {
		if m.Username != "" && m.Username == username {
			return m, true
		}
	}
	return Member{}, false
}
