package oneonone

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"team-pulse/internal/analytics"
	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/chat/chattest"
	"team-pulse/internal/conversation"
	"team-pulse/internal/storage"
)

var (
	bot   = chat.User{ID: 1, Username: "pulsebot"}
	alice = chat.User{ID: 10, Username: "alice"}
	bob   = chat.User{ID: 11, Username: "bob"}
	carol = chat.User{ID: 12, Username: "carol"}
)

type fixture struct {
	w      *Workflow
	msgr   *chattest.Messenger
	states *conversation.Store
	store  storage.Store
}

func newFixture() *fixture {
	store := storage.NewMemoryStore()
	msgr := chattest.NewMessenger()
	dir := chattest.NewDirectory(alice, bob, carol, bot)
	kit := botkit.New(botkit.Settings{
		Name:           "Team Pulse",
		BotUserID:      bot.ID,
		MeetingBaseURL: "https://meet.example.com/",
	}, msgr, dir, dir)
	f := &fixture{msgr: msgr, states: conversation.NewStore(store), store: store}
	f.w = New(kit, f.states, store)
	f.w.roomID = func() string { return "abc123" }
	f.w.now = func() time.Time { return time.Date(2024, 5, 2, 17, 0, 0, 0, time.UTC) }
	return f
}

func room(u chat.User) chat.Room { return chat.Room{ID: u.ID, Direct: true} }

func reply(from chat.User, text string) chat.Inbound {
	return chat.Inbound{Sender: from, Room: room(from), Text: text}
}

func (f *fixture) pairings(t *testing.T) []analytics.Pairing {
	t.Helper()
	out, err := storage.ReadAllJSON[analytics.Pairing](context.Background(), f.store, statsKey)
	if err != nil {
		t.Fatalf("read stats: %v", err)
	}
	return out
}

func TestRunAsksEveryMember(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = storage.PutJSON(ctx, f.store, slotKey, Slot{Username: "stale", UserID: 99})

	if err := f.w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, ok, _ := f.w.Waiting(ctx); ok {
		t.Fatalf("stale slot must be cleared")
	}
	for _, u := range []chat.User{alice, bob, carol} {
		st, _ := f.states.Get(ctx, u.ID)
		if _, ok := st.(conversation.WaitingForOneOnOneReply); !ok {
			t.Fatalf("@%s: want WaitingForOneOnOneReply, got %#v", u.Username, st)
		}
		if got := f.msgr.To(u.ID); len(got) != 1 || got[0] != promptText {
			t.Fatalf("@%s: unexpected prompt %+v", u.Username, got)
		}
	}
	if len(f.msgr.To(bot.ID)) != 0 {
		t.Fatalf("bot must not be asked")
	}
	buttons := f.msgr.Sent[0].Buttons
	if len(buttons) != 1 || buttons[0][0].Data != yes || buttons[0][1].Data != no {
		t.Fatalf("unexpected buttons: %+v", buttons)
	}
}

func TestPairingIsSingleSlot(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if err := f.w.OptIn(ctx, alice, room(alice)); err != nil {
		t.Fatalf("alice: %v", err)
	}
	slot, ok, _ := f.w.Waiting(ctx)
	if !ok || slot.Username != "alice" || slot.UserID != alice.ID {
		t.Fatalf("alice should be waiting, got %+v", slot)
	}
	if got := f.msgr.To(alice.ID); len(got) != 1 || got[0] != waitingText {
		t.Fatalf("unexpected ack: %+v", got)
	}

	if err := f.w.OptIn(ctx, bob, room(bob)); err != nil {
		t.Fatalf("bob: %v", err)
	}
	if _, ok, _ := f.w.Waiting(ctx); ok {
		t.Fatalf("slot must be empty after a match")
	}
	wantURL := "https://meet.example.com/team-pulse-abc123"
	for _, u := range []chat.User{alice, bob} {
		got := f.msgr.To(u.ID)
		if !strings.Contains(got[len(got)-1], wantURL) {
			t.Fatalf("@%s did not get the meeting link: %+v", u.Username, got)
		}
	}
	stats := f.pairings(t)
	if len(stats) != 1 || stats[0].Username1 != "alice" || stats[0].Username2 != "bob" {
		t.Fatalf("want {alice, bob}, got %+v", stats)
	}

	if err := f.w.OptIn(ctx, carol, room(carol)); err != nil {
		t.Fatalf("carol: %v", err)
	}
	if slot, ok, _ := f.w.Waiting(ctx); !ok || slot.Username != "carol" {
		t.Fatalf("carol should occupy the empty slot, got %+v", slot)
	}
	if len(f.pairings(t)) != 1 {
		t.Fatalf("no new pairing expected")
	}
}

func TestDuplicateOptInIsNoop(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.w.OptIn(ctx, alice, room(alice))
	if err := f.w.OptIn(ctx, alice, room(alice)); err != nil {
		t.Fatalf("second opt in: %v", err)
	}
	if slot, ok, _ := f.w.Waiting(ctx); !ok || slot.Username != "alice" {
		t.Fatalf("alice should still be waiting, got %+v", slot)
	}
	if len(f.pairings(t)) != 0 {
		t.Fatalf("self match recorded")
	}
	got := f.msgr.To(alice.ID)
	if got[len(got)-1] != alreadyText {
		t.Fatalf("unexpected reply: %+v", got)
	}
}

func TestConcurrentOptInsPairOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	var wg sync.WaitGroup
	for _, u := range []chat.User{alice, bob} {
		wg.Add(1)
		go func(u chat.User) {
			defer wg.Done()
			_ = f.w.OptIn(ctx, u, room(u))
		}(u)
	}
	wg.Wait()
	if len(f.pairings(t)) != 1 {
		t.Fatalf("want exactly one pairing, got %+v", f.pairings(t))
	}
	if _, ok, _ := f.w.Waiting(ctx); ok {
		t.Fatalf("slot must be empty")
	}
}

func TestAnswerClearsStateFirst(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.states.Set(ctx, alice.ID, conversation.WaitingForOneOnOneReply{})
	_ = f.states.Set(ctx, bob.ID, conversation.WaitingForOneOnOneReply{})

	if err := f.w.Answer(ctx, reply(alice, "No")); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if st, _ := f.states.Get(ctx, alice.ID); st != nil {
		t.Fatalf("state must be cleared, got %#v", st)
	}
	if _, ok, _ := f.w.Waiting(ctx); ok {
		t.Fatalf("declining must not touch the slot")
	}
	last := f.msgr.Sent[len(f.msgr.Sent)-1]
	if last.Text != declinedText || last.Buttons[0][0].Data != optInData {
		t.Fatalf("unexpected decline reply: %+v", last)
	}

	if err := f.w.Answer(ctx, reply(bob, " Yes ")); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if st, _ := f.states.Get(ctx, bob.ID); st != nil {
		t.Fatalf("state must be cleared, got %#v", st)
	}
	if slot, ok, _ := f.w.Waiting(ctx); !ok || slot.Username != "bob" {
		t.Fatalf("bob should be waiting, got %+v", slot)
	}
}

func TestLeave(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.w.OptIn(ctx, alice, room(alice))

	if err := f.w.Leave(ctx, bob); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok, _ := f.w.Waiting(ctx); !ok {
		t.Fatalf("someone else leaving must not clear alice's slot")
	}
	for i := 0; i < 2; i++ {
		if err := f.w.Leave(ctx, alice); err != nil {
			t.Fatalf("leave #%d: %v", i, err)
		}
	}
	if _, ok, _ := f.w.Waiting(ctx); ok {
		t.Fatalf("alice should be gone")
	}
}

func TestOptInMatchesOnUserID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	dave := chat.User{ID: 20}
	erin := chat.User{ID: 21}

	_ = f.w.OptIn(ctx, dave, room(dave))
	_ = f.w.OptIn(ctx, erin, room(erin))
	if got := f.pairings(t); len(got) != 1 {
		t.Fatalf("two different users must pair, got %+v", got)
	}
	if _, ok, _ := f.w.Waiting(ctx); ok {
		t.Fatalf("slot must be consumed")
	}

	renamed := chat.User{ID: alice.ID, Username: "alice_new"}
	_ = f.w.OptIn(ctx, alice, room(alice))
	_ = f.w.OptIn(ctx, renamed, room(renamed))
	if got := f.pairings(t); len(got) != 1 {
		t.Fatalf("a renamed user must not pair with themselves, got %+v", got)
	}
	if err := f.w.Leave(ctx, renamed); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if _, ok, _ := f.w.Waiting(ctx); ok {
		t.Fatalf("leave should match on id")
	}
}

func TestCommand(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_ = f.states.Set(ctx, alice.ID, conversation.WaitingForUsername{})

	if err := f.w.Command(ctx, reply(alice, "/one_on_one"), ""); err != nil {
		t.Fatalf("command: %v", err)
	}
	if st, _ := f.states.Get(ctx, alice.ID); st != nil {
		t.Fatalf("opting in replaces the pending conversation, got %#v", st)
	}
	if slot, _, _ := f.w.Waiting(ctx); slot.Username != "alice" {
		t.Fatalf("alice should be waiting, got %+v", slot)
	}
	_ = f.w.Command(ctx, reply(bob, "/one_on_one"), "")

	f.msgr.Reset()
	if err := f.w.Command(ctx, reply(carol, "/one_on_one stats"), "stats"); err != nil {
		t.Fatalf("stats: %v", err)
	}
	got := f.msgr.To(carol.ID)
	if len(got) != 1 || !strings.Contains(got[0], "Pairings: 1") || !strings.Contains(got[0], "@alice: 1") {
		t.Fatalf("unexpected stats: %+v", got)
	}

	f.msgr.Reset()
	_ = f.w.Command(ctx, reply(carol, "/one_on_one nope"), "nope")
	if got := f.msgr.To(carol.ID); len(got) != 1 || got[0] != usageText {
		t.Fatalf("unexpected usage reply: %+v", got)
	}
}
