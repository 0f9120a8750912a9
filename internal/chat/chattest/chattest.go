// Package chattest provides in-memory chat collaborators for tests.
package chattest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"team-pulse/internal/chat"
)

// ErrSendFailed is returned for rooms listed in Messenger.FailRooms.
var ErrSendFailed = errors.New("chattest: send failed")

type Notice struct {
	User   chat.User
	RoomID int64
	Text   string
}

// Messenger records everything sent through it.
type Messenger struct {
	mu        sync.Mutex
	nextID    int
	Sent      []chat.Outgoing
	Notices   []Notice
	FailRooms map[int64]bool
}

func NewMessenger() *Messenger {
	return &Messenger{FailRooms: make(map[int64]bool)}
}

func (m *Messenger) Send(_ context.Context, msg chat.Outgoing) (chat.MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRooms[msg.RoomID] {
		return chat.MessageRef{}, ErrSendFailed
	}
	m.nextID++
	m.Sent = append(m.Sent, msg)
	return chat.MessageRef{RoomID: msg.RoomID, MessageID: m.nextID}, nil
}

func (m *Messenger) Notify(_ context.Context, user chat.User, roomID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRooms[roomID] {
		return ErrSendFailed
	}
	m.Notices = append(m.Notices, Notice{User: user, RoomID: roomID, Text: text})
	return nil
}

// To returns the texts sent to roomID, notices included, in order of arrival per kind.
func (m *Messenger) To(roomID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, s := range m.Sent {
		if s.RoomID == roomID {
			out = append(out, s.Text)
		}
	}
	for _, n := range m.Notices {
		if n.RoomID == roomID {
			out = append(out, n.Text)
		}
	}
	return out
}

// Containing returns sent messages whose text contains substr.
func (m *Messenger) Containing(substr string) []chat.Outgoing {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []chat.Outgoing
	for _, s := range m.Sent {
		if strings.Contains(s.Text, substr) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Messenger) Reset() {
	m.mu.Lock()
	m.Sent = nil
	m.Notices = nil
	m.mu.Unlock()
}

// Directory serves a fixed user list. Direct rooms share the user's id.
type Directory struct {
	Users []chat.User
}

func NewDirectory(users ...chat.User) *Directory {
	return &Directory{Users: users}
}

func (d *Directory) Members(context.Context) ([]chat.User, error) {
	return append([]chat.User(nil), d.Users...), nil
}

// Get lets a Directory stand in for the members cache.
func (d *Directory) Get(ctx context.Context) ([]chat.User, error) { return d.Members(ctx) }

func (d *Directory) UserByUsername(_ context.Context, username string) (chat.User, error) {
	for _, u := range d.Users {
		if u.Username == username {
			return u, nil
		}
	}
	return chat.User{}, chat.ErrNotFound
}

func (d *Directory) UserByID(_ context.Context, id int64) (chat.User, error) {
	for _, u := range d.Users {
		if u.ID == id {
			return u, nil
		}
	}
	return chat.User{}, chat.ErrNotFound
}

func (d *Directory) Direct(ctx context.Context, username string) (chat.Room, error) {
	u, err := d.UserByUsername(ctx, username)
	if err != nil {
		return chat.Room{}, err
	}
	return chat.Room{ID: u.ID, Name: u.Username, Direct: true}, nil
}
