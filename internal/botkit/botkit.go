// Package botkit holds the bot identity resolved at startup and the send and
// lookup helpers every workflow shares.
package botkit

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"

	"team-pulse/internal/chat"
)

// Settings is built once at startup and never mutated afterwards.
type Settings struct {
	Name           string
	BotUserID      int64
	BotUsername    string
	PraiseRoomID   int64
	AnswersRoomID  int64
	ServerBaseURL  string
	MeetingBaseURL string
}

// Permalink links to a single message in a direct room.
func (s Settings) Permalink(ref chat.MessageRef) string {
	return fmt.Sprintf("%s/direct/%d?msg=%d", strings.TrimRight(s.ServerBaseURL, "/"), ref.RoomID, ref.MessageID)
}

// MemberSource returns the current member list, usually a members.Cache.
type MemberSource interface {
	Get(ctx context.Context) ([]chat.User, error)
}

type Kit struct {
	settings  Settings
	messenger chat.Messenger
	directory chat.Directory
	members   MemberSource
}

func New(settings Settings, messenger chat.Messenger, directory chat.Directory, members MemberSource) *Kit {
	return &Kit{settings: settings, messenger: messenger, directory: directory, members: members}
}

func (k *Kit) Settings() Settings { return k.settings }

func (k *Kit) IsBot(u chat.User) bool {
	if k.settings.BotUserID != 0 && u.ID == k.settings.BotUserID {
		return true
	}
	return k.settings.BotUsername != "" && u.Username == k.settings.BotUsername
}

// Members lists addressable members: the bot and users without a username are left out.
func (k *Kit) Members(ctx context.Context) ([]chat.User, error) {
	all, err := k.members.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("botkit: members: %w", err)
	}
	out := make([]chat.User, 0, len(all))
	for _, u := range all {
		if k.IsBot(u) || u.Username == "" {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

// SortedByName orders users alphabetically by display name, case-insensitive.
func SortedByName(users []chat.User) []chat.User {
	out := append([]chat.User(nil), users...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToUpper(out[i].DisplayName()) < strings.ToUpper(out[j].DisplayName())
	})
	return out
}

// FindMember matches username exactly against the current members.
func (k *Kit) FindMember(ctx context.Context, username string) (chat.User, bool, error) {
	list, err := k.Members(ctx)
	if err != nil {
		return chat.User{}, false, err
	}
	for _, u := range list {
		if u.Username == username {
			return u, true, nil
		}
	}
	return chat.User{}, false, nil
}

func (k *Kit) UserByUsername(ctx context.Context, username string) (chat.User, error) {
	return k.directory.UserByUsername(ctx, username)
}

func (k *Kit) UserByID(ctx context.Context, id int64) (chat.User, error) {
	return k.directory.UserByID(ctx, id)
}

func (k *Kit) Direct(ctx context.Context, user chat.User) (chat.Room, error) {
	room, err := k.directory.Direct(ctx, user.Username)
	if err != nil {
		return chat.Room{}, fmt.Errorf("botkit: direct room for @%s: %w", user.Username, err)
	}
	return room, nil
}

func (k *Kit) Send(ctx context.Context, msg chat.Outgoing) (chat.MessageRef, error) {
	return k.messenger.Send(ctx, msg)
}

// Post sends text to a room and logs failures instead of returning them.
func (k *Kit) Post(ctx context.Context, roomID int64, text string, buttons ...[]chat.Button) {
	if _, err := k.messenger.Send(ctx, chat.Outgoing{RoomID: roomID, Text: text, Buttons: buttons}); err != nil {
		log.Printf("⚠️ send to room %d failed: %v", roomID, err)
	}
}

// SendDirect opens the direct room with user and sends text there.
func (k *Kit) SendDirect(ctx context.Context, user chat.User, text string, buttons ...[]chat.Button) (chat.MessageRef, error) {
	room, err := k.Direct(ctx, user)
	if err != nil {
		return chat.MessageRef{}, err
	}
	return k.messenger.Send(ctx, chat.Outgoing{RoomID: room.ID, Text: text, Buttons: buttons})
}

// Notify sends a private notice; failures are logged.
func (k *Kit) Notify(ctx context.Context, user chat.User, roomID int64, text string) {
	if err := k.messenger.Notify(ctx, user, roomID, text); err != nil {
		log.Printf("⚠️ notify @%s failed: %v", user.Username, err)
	}
}

// EachMember runs fn for every member. A failing member is logged and skipped;
// the number of members fn succeeded for is returned.
func (k *Kit) EachMember(ctx context.Context, what string, fn func(ctx context.Context, u chat.User) error) (int, error) {
	list, err := k.Members(ctx)
	if err != nil {
		return 0, err
	}
	ok := 0
	for _, u := range list {
		if err := ctx.Err(); err != nil {
			return ok, err
		}
		if err := fn(ctx, u); err != nil {
			log.Printf("⚠️ %s: member @%s skipped: %v", what, u.Username, err)
			continue
		}
		ok++
	}
	log.Printf("📣 %s: reached %d/%d members", what, ok, len(list))
	return ok, nil
}
