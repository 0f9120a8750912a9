package chat

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Directory lookups that miss.
var ErrNotFound = errors.New("chat: not found")

// User is a member of the team as seen by the workflows.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

// DisplayName falls back to the username when no name is known.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// Room is a conversation the bot can post to. Direct rooms are private
// two-party conversations between the bot and one user.
type Room struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Direct bool   `json:"direct"`
}

// MessageRef addresses a single delivered message.
type MessageRef struct {
	RoomID    int64 `json:"roomId"`
	MessageID int   `json:"msgId"`
}

func (r MessageRef) IsZero() bool { return r.RoomID == 0 && r.MessageID == 0 }

// Key is a stable string form used in association keys.
func (r MessageRef) Key() string {
	return fmt.Sprintf("%d:%d", r.RoomID, r.MessageID)
}

// Button is a clickable affordance. Pressing it makes the user "say" Data,
// exactly as if they had typed it; Data starting with "/" is a command.
type Button struct {
	Text string
	Data string
}

// Outgoing is a message to be delivered by a Messenger.
type Outgoing struct {
	RoomID int64
	Text   string
	// ThreadID is the message id of the thread root, zero for top-level messages.
	ThreadID int
	// Buttons are laid out one row per slice.
	Buttons [][]Button
}

// Inbound is a message received from a user.
type Inbound struct {
	Sender User
	Room   Room
	Text   string
	Ref    MessageRef
	// ReplyTo is the message id this message replies to, zero if none.
	ReplyTo int
}

// Directory resolves members, users and direct rooms.
type Directory interface {
	Members(ctx context.Context) ([]User, error)
	UserByUsername(ctx context.Context, username string) (User, error)
	UserByID(ctx context.Context, id int64) (User, error)
	// Direct finds or creates the direct conversation between the bot and username.
	Direct(ctx context.Context, username string) (Room, error)
}

// Messenger delivers messages.
type Messenger interface {
	Send(ctx context.Context, msg Outgoing) (MessageRef, error)
	// Notify sends a private notice to user inside roomID.
	Notify(ctx context.Context, user User, roomID int64, text string) error
}
