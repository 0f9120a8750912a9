package values

import (
	"context"
	"errors"
	"strings"
	"testing"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/chat/chattest"
	"team-pulse/internal/karma"
	"team-pulse/internal/storage"
)

const praiseRoom = -100

var (
	bot   = chat.User{ID: 1, Username: "pulsebot"}
	alice = chat.User{ID: 10, Username: "alice"}
	bob   = chat.User{ID: 11, Username: "bob"}
	carol = chat.User{ID: 12, Username: "carol"}
)

type fixture struct {
	w      *Workflow
	msgr   *chattest.Messenger
	store  storage.Store
	points *karma.Ledger
}

func newFixture(praiseRoomID int64) *fixture {
	store := storage.NewMemoryStore()
	msgr := chattest.NewMessenger()
	dir := chattest.NewDirectory(alice, bob, carol, bot)
	kit := botkit.New(botkit.Settings{BotUserID: bot.ID, PraiseRoomID: praiseRoomID}, msgr, dir, dir)
	points := karma.NewLedger(store, karma.ValuePointsKey)
	return &fixture{
		w:      New(kit, store, points, []string{"Dream", "Own", "Trust", "Share"}),
		msgr:   msgr,
		store:  store,
		points: points,
	}
}

func dm(from chat.User, text string) chat.Inbound {
	return chat.Inbound{Sender: from, Room: chat.Room{ID: from.ID, Direct: true}, Text: text}
}

func TestParseCommand(t *testing.T) {
	s := ParseCommand("Dream,trust @bob @carol, shipped the release on a Friday")
	if strings.Join(s.Values, "|") != "Dream|trust" {
		t.Fatalf("values: %+v", s.Values)
	}
	if strings.Join(s.Usernames, "|") != "@bob|@carol" {
		t.Fatalf("usernames: %+v", s.Usernames)
	}
	if s.Reason != "shipped the release on a Friday" {
		t.Fatalf("reason: %q", s.Reason)
	}
	if s := ParseCommand("   "); len(s.Values) != 0 || s.Reason != "" {
		t.Fatalf("empty args: %+v", s)
	}
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(praiseRoom)
	ctx := context.Background()
	cases := []struct {
		name   string
		sub    Submission
		fields map[string]string
	}{
		{"nothing", Submission{}, map[string]string{
			"Values": "Please select at least one value",
			"Reason": "Please type a reason",
		}},
		{"unknown values", Submission{Values: []string{"Dream", "Fly", "Swim"}, Reason: "x"}, map[string]string{
			"Values": "Unknown value: Fly, Swim",
		}},
		{"unknown member", Submission{Values: []string{"Own"}, Reason: "x", Usernames: []string{"@zed"}}, map[string]string{
			"Usernames": "Unknown member: zed",
		}},
	}
	for _, tc := range cases {
		err := f.w.Submit(ctx, alice, tc.sub)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("%s: want ValidationError, got %v", tc.name, err)
		}
		if len(ve.Fields) != len(tc.fields) {
			t.Fatalf("%s: got fields %+v", tc.name, ve.Fields)
		}
		for k, want := range tc.fields {
			if ve.Fields[k] != want {
				t.Fatalf("%s: %s = %q, want %q", tc.name, k, ve.Fields[k], want)
			}
		}
	}
	if entries, _ := f.points.Entries(ctx); len(entries) != 0 {
		t.Fatalf("invalid answers must not award points: %+v", entries)
	}
	if raw, _ := f.store.ReadAll(ctx, answersKey); len(raw) != 0 {
		t.Fatalf("invalid answers must not be saved")
	}
	if len(f.msgr.Sent) != 0 {
		t.Fatalf("nothing should be posted")
	}
}

func TestSubmitAwardsPointsAndPosts(t *testing.T) {
	f := newFixture(praiseRoom)
	ctx := context.Background()
	err := f.w.Submit(ctx, alice, Submission{
		Values:    []string{"trust", "Share", "TRUST"},
		Reason:    "  paired on the outage all night ",
		Usernames: []string{"@bob", "carol", "@alice", "bob"},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for u, want := range map[string]int{"alice": 1, "bob": 1, "carol": 1} {
		if got, _ := f.points.Points(ctx, u); got != want {
			t.Fatalf("%s: %d points, want %d", u, got, want)
		}
	}

	answers, err := storage.ReadAllJSON[Answer](ctx, f.store, answersKey)
	if err != nil || len(answers) != 1 {
		t.Fatalf("answers: %+v %v", answers, err)
	}
	a := answers[0]
	if a.Username != "alice" || strings.Join(a.SelectedUsers, ",") != "bob,carol" ||
		strings.Join(a.Values, ",") != "Trust,Share" || a.Answer != "paired on the outage all night" {
		t.Fatalf("unexpected answer: %+v", a)
	}

	got := f.msgr.To(praiseRoom)
	want := "Here is something @alice thinks @bob and @carol did, that is connected to our value(s) of *Trust, Share*:\npaired on the outage all night"
	if len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected post:\n%+v\nwant\n%s", got, want)
	}
}

func TestSubmitWithoutPraiseRoom(t *testing.T) {
	f := newFixture(0)
	ctx := context.Background()
	if err := f.w.Submit(ctx, bob, Submission{Values: []string{"Own"}, Reason: "fixed CI"}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got, _ := f.points.Points(ctx, "bob"); got != 1 {
		t.Fatalf("sender should get a point, got %d", got)
	}
	if len(f.msgr.Sent) != 0 {
		t.Fatalf("nothing should be posted: %+v", f.msgr.Sent)
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		users []string
		want  string
	}{
		{nil, "Here is something @a thinks is connected to our value(s) of *Dream*:\nwhy"},
		{[]string{"b"}, "Here is something @a thinks @b did, that is connected to our value(s) of *Dream*:\nwhy"},
		{[]string{"b", "c", "d"}, "Here is something @a thinks @b, @c and @d did, that is connected to our value(s) of *Dream*:\nwhy"},
	}
	for _, tc := range cases {
		if got := Format("a", tc.users, []string{"Dream"}, "why"); got != tc.want {
			t.Errorf("%v: got %q", tc.users, got)
		}
	}
}

func TestCommand(t *testing.T) {
	f := newFixture(praiseRoom)
	ctx := context.Background()

	if err := f.w.Command(ctx, dm(bob, "/values"), ""); err != nil {
		t.Fatalf("command: %v", err)
	}
	if got := f.msgr.To(bob.ID); len(got) != 1 || !strings.Contains(got[0], "/values Dream,Own,Trust,Share") {
		t.Fatalf("expected usage prompt, got %+v", got)
	}

	f.msgr.Reset()
	if err := f.w.Command(ctx, dm(bob, "/values Fly"), "Fly"); err != nil {
		t.Fatalf("command: %v", err)
	}
	got := f.msgr.To(bob.ID)
	if len(got) != 1 || !strings.Contains(got[0], "Unknown value: Fly") || !strings.Contains(got[0], "Please type a reason") {
		t.Fatalf("expected validation message, got %+v", got)
	}

	f.msgr.Reset()
	if err := f.w.Command(ctx, dm(bob, ""), "Dream @alice kept the roadmap honest"); err != nil {
		t.Fatalf("command: %v", err)
	}
	if got := f.msgr.To(bob.ID); len(got) != 1 || got[0] != thanksText {
		t.Fatalf("expected thanks, got %+v", got)
	}
	if got := f.msgr.To(praiseRoom); len(got) != 1 || !strings.Contains(got[0], "@bob thinks @alice did") {
		t.Fatalf("unexpected post: %+v", got)
	}
}

func TestRunAndScoreboard(t *testing.T) {
	f := newFixture(praiseRoom)
	ctx := context.Background()
	if err := f.w.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, u := range []chat.User{alice, bob, carol} {
		if got := f.msgr.To(u.ID); len(got) != 1 || !strings.Contains(got[0], "We *Trust*") {
			t.Fatalf("@%s: unexpected prompt %+v", u.Username, got)
		}
	}

	_ = f.w.Submit(ctx, alice, Submission{Values: []string{"Dream"}, Reason: "x", Usernames: []string{"bob"}})
	_ = f.w.Submit(ctx, carol, Submission{Values: []string{"Dream"}, Reason: "y", Usernames: []string{"bob"}})
	board, err := f.w.Scoreboard(ctx)
	if err != nil {
		t.Fatalf("scoreboard: %v", err)
	}
	if !strings.Contains(board, "Values Scoreboard") || !strings.Contains(board, "🥇 bob: 2") {
		t.Fatalf("unexpected scoreboard:\n%s", board)
	}
}
