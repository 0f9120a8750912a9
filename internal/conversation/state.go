package conversation

import (
	"context"
	"fmt"

	"team-pulse/internal/storage"
)

// State is what the bot is waiting for from a user. The variants below are the
// only implementations.
type State interface {
	listen() string
}

type WaitingForUsername struct{}

type WaitingForPraiseReason struct {
	Username string
}

type WaitingForAnswer struct {
	Anonymous bool
}

type WaitingForOneOnOneReply struct{}

func (WaitingForUsername) listen() string      { return "username" }
func (WaitingForPraiseReason) listen() string  { return "praise" }
func (WaitingForAnswer) listen() string        { return "answer" }
func (WaitingForOneOnOneReply) listen() string { return "one-on-one" }

type record struct {
	Listen    string `json:"listen"`
	Username  string `json:"username,omitempty"`
	Anonymous bool   `json:"anonymous,omitempty"`
}

func encode(st State) record {
	r := record{Listen: st.listen()}
	switch v := st.(type) {
	case WaitingForPraiseReason:
		r.Username = v.Username
	case WaitingForAnswer:
		r.Anonymous = v.Anonymous
	}
	return r
}

func decode(r record) (State, error) {
	switch r.Listen {
	case "username":
		return WaitingForUsername{}, nil
	case "praise":
		return WaitingForPraiseReason{Username: r.Username}, nil
	case "answer":
		return WaitingForAnswer{Anonymous: r.Anonymous}, nil
	case "one-on-one":
		return WaitingForOneOnOneReply{}, nil
	default:
		return nil, fmt.Errorf("conversation: unknown listen tag %q", r.Listen)
	}
}

// Store keeps one State per user. Setting a new state replaces any previous one.
type Store struct {
	store storage.Store
}

func NewStore(s storage.Store) *Store {
	return &Store{store: s}
}

// Get returns nil when the user has no active conversation.
func (s *Store) Get(ctx context.Context, userID int64) (State, error) {
	var r record
	ok, err := storage.ReadJSON(ctx, s.store, storage.UserAssociation(userID), &r)
	if err != nil || !ok {
		return nil, err
	}
	return decode(r)
}

func (s *Store) Set(ctx context.Context, userID int64, st State) error {
	if err := storage.PutJSON(ctx, s.store, storage.UserAssociation(userID), encode(st)); err != nil {
		return fmt.Errorf("conversation: set state: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, userID int64) error {
	if err := s.store.Remove(ctx, storage.UserAssociation(userID)); err != nil {
		return fmt.Errorf("conversation: clear state: %w", err)
	}
	return nil
}
