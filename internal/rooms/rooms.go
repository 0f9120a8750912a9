// Package rooms keeps the list of team group chats suggested to members,
// each with an invite link, and welcomes newly approved members with it.
package rooms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/go-playground/validator/v10"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/storage"
)

var (
	ErrAlreadyRegistered = errors.New("rooms: a room with that name is already registered")
	ErrInvalidRoom       = errors.New("rooms: name and a valid invite link are required")
)

const (
	listTitle   = "*Rooms you might want to join:*"
	noRoomsText = "No suggested rooms yet. The admin can add some with /register\\_room."
	welcomeText = "We have prepared a list of team chats you might want to join:"
	seeRooms    = "/rooms"
)

var roomsKey = storage.MiscAssociation("suggested-rooms")

// Room is a suggested group chat.
type Room struct {
	Name       string `json:"name" validate:"required"`
	InviteLink string `json:"inviteLink" validate:"required,url"`
}

type suggested struct {
	Rooms []Room `json:"rooms"`
}

type Workflow struct {
	kit      *botkit.Kit
	store    storage.Store
	validate *validator.Validate
}

func New(kit *botkit.Kit, store storage.Store) *Workflow {
	return &Workflow{kit: kit, store: store, validate: validator.New()}
}

// List returns the suggested rooms in registration order.
func (w *Workflow) List(ctx context.Context) ([]Room, error) {
	var s suggested
	if _, err := storage.ReadJSON(ctx, w.store, roomsKey, &s); err != nil {
		return nil, fmt.Errorf("rooms: list: %w", err)
	}
	return s.Rooms, nil
}

// Register adds a room. Names are unique regardless of case.
func (w *Workflow) Register(ctx context.Context, name, inviteLink string) error {
	room := Room{Name: strings.TrimSpace(name), InviteLink: strings.TrimSpace(inviteLink)}
	if err := w.validate.Struct(room); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	err := storage.UpdateJSON(ctx, w.store, roomsKey, func(cur *suggested) (*suggested, error) {
		if cur == nil {
			cur = &suggested{}
		}
		for _, r := range cur.Rooms {
			if strings.EqualFold(r.Name, room.Name) {
				return nil, ErrAlreadyRegistered
			}
		}
		cur.Rooms = append(cur.Rooms, room)
		return cur, nil
	})
	if errors.Is(err, ErrAlreadyRegistered) {
		return err
	}
	if err != nil {
		return fmt.Errorf("rooms: register %s: %w", room.Name, err)
	}
	log.Printf("🏠 room %q registered", room.Name)
	return nil
}

// Remove drops the named rooms and reports how many were removed. The record
// is deleted once the list is empty.
func (w *Workflow) Remove(ctx context.Context, names ...string) (int, error) {
	removed := 0
	err := storage.UpdateJSON(ctx, w.store, roomsKey, func(cur *suggested) (*suggested, error) {
		removed = 0
		if cur == nil {
			return nil, nil
		}
		kept := cur.Rooms[:0]
		for _, r := range cur.Rooms {
			if matchesAny(r.Name, names) {
				removed++
				continue
			}
			kept = append(kept, r)
		}
		if len(kept) == 0 {
			return nil, nil
		}
		cur.Rooms = kept
		return cur, nil
	})
	if err != nil {
		return 0, fmt.Errorf("rooms: remove: %w", err)
	}
	return removed, nil
}

func matchesAny(name string, names []string) bool {
	for _, n := range names {
		if strings.EqualFold(name, strings.TrimSpace(n)) {
			return true
		}
	}
	return false
}

// Suggest posts the room list to roomID.
func (w *Workflow) Suggest(ctx context.Context, roomID int64) error {
	list, err := w.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		w.kit.Post(ctx, roomID, noRoomsText)
		return nil
	}
	w.kit.Post(ctx, roomID, Render(list))
	return nil
}

func Render(list []Room) string {
	var b strings.Builder
	b.WriteString(listTitle)
	for _, r := range list {
		fmt.Fprintf(&b, "\n- [%s](%s)", r.Name, r.InviteLink)
	}
	return b.String()
}

// Welcome points a new member at the suggested rooms. Nothing is sent when
// there are none.
func (w *Workflow) Welcome(ctx context.Context, roomID int64) error {
	list, err := w.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	_, err = w.kit.Send(ctx, chat.Outgoing{
		RoomID:  roomID,
		Text:    welcomeText,
		Buttons: [][]chat.Button{{{Text: "See Rooms", Data: seeRooms}}},
	})
	if err != nil {
		return fmt.Errorf("rooms: welcome: %w", err)
	}
	return nil
}
