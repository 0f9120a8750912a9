package botkit_test

import (
	"context"
	"errors"
	"testing"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/chat/chattest"
)

var (
	bot   = chat.User{ID: 1, Username: "pulsebot", Name: "Pulse"}
	alice = chat.User{ID: 10, Username: "alice", Name: "alice"}
	bob   = chat.User{ID: 11, Username: "bob", Name: "Bob"}
	ghost = chat.User{ID: 12, Name: "No Username"}
)

func newKit(m *chattest.Messenger) *botkit.Kit {
	dir := chattest.NewDirectory(bob, bot, alice, ghost)
	return botkit.New(botkit.Settings{BotUserID: bot.ID, ServerBaseURL: "https://chat.example.com/"}, m, dir, dir)
}

func TestMembersExcludesBotAndUnnamed(t *testing.T) {
	k := newKit(chattest.NewMessenger())
	list, err := k.Members(context.Background())
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(list) != 2 || list[0].Username != "bob" || list[1].Username != "alice" {
		t.Fatalf("unexpected members: %+v", list)
	}
}

func TestSortedByNameIsCaseInsensitive(t *testing.T) {
	sorted := botkit.SortedByName([]chat.User{bob, alice})
	if sorted[0].Username != "alice" {
		t.Fatalf("want alice first, got %+v", sorted)
	}
}

func TestEachMemberSkipsFailures(t *testing.T) {
	m := chattest.NewMessenger()
	m.FailRooms[bob.ID] = true
	k := newKit(m)
	n, err := k.EachMember(context.Background(), "test", func(ctx context.Context, u chat.User) error {
		_, err := k.SendDirect(ctx, u, "hi")
		return err
	})
	if err != nil {
		t.Fatalf("each: %v", err)
	}
	if n != 1 || len(m.To(alice.ID)) != 1 {
		t.Fatalf("expected alice only, n=%d sent=%+v", n, m.Sent)
	}
}

func TestFindMemberIsExact(t *testing.T) {
	k := newKit(chattest.NewMessenger())
	if _, ok, _ := k.FindMember(context.Background(), "Bob"); ok {
		t.Fatalf("lookup must be case-sensitive")
	}
	if u, ok, _ := k.FindMember(context.Background(), "bob"); !ok || u.ID != bob.ID {
		t.Fatalf("bob not found")
	}
	if _, ok, _ := k.FindMember(context.Background(), "pulsebot"); ok {
		t.Fatalf("bot must not be a member")
	}
}

func TestPermalink(t *testing.T) {
	s := botkit.Settings{ServerBaseURL: "https://chat.example.com/"}
	got := s.Permalink(chat.MessageRef{RoomID: 42, MessageID: 7})
	if got != "https://chat.example.com/direct/42?msg=7" {
		t.Fatalf("unexpected permalink: %s", got)
	}
}

func TestDirectUnknownUser(t *testing.T) {
	k := newKit(chattest.NewMessenger())
	_, err := k.Direct(context.Background(), chat.User{Username: "nobody"})
	if !errors.Is(err, chat.ErrNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
}
