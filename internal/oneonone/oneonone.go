package oneonone

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"team-pulse/internal/analytics"
	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/conversation"
	"team-pulse/internal/storage"
)

const (
	yes = "Yes"
	no  = "No"

	promptText   = "Are you available for a random one-on-one call?"
	declinedText = "Ok :( maybe some other time..."
	waitingText  = "Yay! I've put you on the waiting list. I'll let you know once someone accepts too."
	alreadyText  = "You're already on the waiting list. I'll let you know once someone accepts too."
	matchText    = "I found a match for you. Please click [here](%s) to join your random one-on-one."
	usageText    = "Usage: /one_on_one [stats]"

	optInData  = "/one_on_one"
	cancelData = "/cancel"
)

var (
	slotKey  = storage.MiscAssociation("one-on-one")
	statsKey = storage.MiscAssociation("one-on-one-stats")
)

// Slot is the single user waiting for a match.
type Slot struct {
	Username string `json:"username"`
	UserID   int64  `json:"userId"`
}

// heldBy matches on the user id when both sides have one, since usernames
// can change or be missing.
func (s Slot) heldBy(u chat.User) bool {
	if s.UserID != 0 && u.ID != 0 {
		return s.UserID == u.ID
	}
	return s.Username != "" && s.Username == u.Username
}

type outcome int

const (
	queued outcome = iota
	alreadyQueued
	matched
)

type Workflow struct {
	kit    *botkit.Kit
	states *conversation.Store
	store  storage.Store
	now    func() time.Time
	roomID func() string
}

func New(kit *botkit.Kit, states *conversation.Store, store storage.Store) *Workflow {
	return &Workflow{
		kit:    kit,
		states: states,
		store:  store,
		now:    time.Now,
		roomID: func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// Run drops whoever is still waiting from the last round and asks every member
// whether they are available.
func (w *Workflow) Run(ctx context.Context) error {
	if err := w.store.Remove(ctx, slotKey); err != nil {
		return fmt.Errorf("oneonone: clear slot: %w", err)
	}
	buttons := []chat.Button{{Text: yes, Data: yes}, {Text: no, Data: no}}
	_, err := w.kit.EachMember(ctx, "one-on-one request", func(ctx context.Context, u chat.User) error {
		if err := w.states.Set(ctx, u.ID, conversation.WaitingForOneOnOneReply{}); err != nil {
			return err
		}
		_, err := w.kit.SendDirect(ctx, u, promptText, buttons)
		return err
	})
	return err
}

// Answer handles the reply to the availability prompt.
func (w *Workflow) Answer(ctx context.Context, in chat.Inbound) error {
	if err := w.states.Clear(ctx, in.Sender.ID); err != nil {
		return err
	}
	if strings.TrimSpace(in.Text) != yes {
		w.kit.Post(ctx, in.Room.ID, declinedText, []chat.Button{{Text: "Actually, I'm available", Data: optInData}})
		return nil
	}
	return w.OptIn(ctx, in.Sender, in.Room)
}

// OptIn puts user on the waiting list, or pairs them with whoever is waiting.
// The slot is decided and consumed in a single atomic update before anyone is
// notified.
func (w *Workflow) OptIn(ctx context.Context, user chat.User, room chat.Room) error {
	var (
		result outcome
		waiter Slot
	)
	err := storage.UpdateJSON(ctx, w.store, slotKey, func(cur *Slot) (*Slot, error) {
		switch {
		case cur == nil:
			result = queued
			return &Slot{Username: user.Username, UserID: user.ID}, nil
		case cur.heldBy(user):
			result = alreadyQueued
			return cur, nil
		default:
			result = matched
			waiter = *cur
			return nil, nil
		}
	})
	if err != nil {
		return fmt.Errorf("oneonone: opt in @%s: %w", user.Username, err)
	}

	switch result {
	case queued:
		log.Printf("🤝 @%s is waiting for a one-on-one", user.Username)
		w.kit.Post(ctx, room.ID, waitingText, []chat.Button{{Text: "Cancel", Data: cancelData}})
	case alreadyQueued:
		w.kit.Post(ctx, room.ID, alreadyText, []chat.Button{{Text: "Cancel", Data: cancelData}})
	case matched:
		w.match(ctx, waiter, user, room)
	}
	return nil
}

func (w *Workflow) match(ctx context.Context, waiter Slot, matcher chat.User, room chat.Room) {
	url := w.meetingURL()
	text := fmt.Sprintf(matchText, url)
	log.Printf("🤝 matched @%s with @%s", waiter.Username, matcher.Username)

	w.kit.Notify(ctx, matcher, room.ID, text)
	if _, err := w.kit.SendDirect(ctx, chat.User{ID: waiter.UserID, Username: waiter.Username}, text); err != nil {
		log.Printf("⚠️ match link to @%s failed: %v", waiter.Username, err)
	}

	entry := analytics.Pairing{Username1: waiter.Username, Username2: matcher.Username, DateTime: w.now().UTC()}
	if err := storage.AppendJSON(ctx, w.store, statsKey, entry); err != nil {
		log.Printf("❌ record one-on-one stats: %v", err)
	}
}

func (w *Workflow) meetingURL() string {
	prefix := strings.ToLower(strings.Join(strings.Fields(w.kit.Settings().Name), "-"))
	if prefix == "" {
		prefix = "pulse"
	}
	base := strings.TrimRight(w.kit.Settings().MeetingBaseURL, "/")
	return fmt.Sprintf("%s/%s-%s", base, prefix, w.roomID())
}

// Leave removes user from the waiting list if they are the one waiting.
func (w *Workflow) Leave(ctx context.Context, user chat.User) error {
	err := storage.UpdateJSON(ctx, w.store, slotKey, func(cur *Slot) (*Slot, error) {
		if cur != nil && cur.heldBy(user) {
			return nil, nil
		}
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("oneonone: leave %d: %w", user.ID, err)
	}
	return nil
}

// Waiting returns the user on the waiting list, if any.
func (w *Workflow) Waiting(ctx context.Context) (Slot, bool, error) {
	var s Slot
	ok, err := storage.ReadJSON(ctx, w.store, slotKey, &s)
	if err != nil {
		return Slot{}, false, fmt.Errorf("oneonone: read slot: %w", err)
	}
	return s, ok, nil
}

// Stats renders the pairing history.
func (w *Workflow) Stats(ctx context.Context) (string, error) {
	entries, err := storage.ReadAllJSON[analytics.Pairing](ctx, w.store, statsKey)
	if err != nil {
		return "", fmt.Errorf("oneonone: read stats: %w", err)
	}
	return analytics.AnalyzePairings(entries, w.now().UTC()).GenerateReportSummary(), nil
}

// Command handles "/one_on_one [stats]".
func (w *Workflow) Command(ctx context.Context, in chat.Inbound, args string) error {
	switch strings.TrimSpace(strings.ToLower(args)) {
	case "":
		if err := w.states.Clear(ctx, in.Sender.ID); err != nil {
			return err
		}
		return w.OptIn(ctx, in.Sender, in.Room)
	case "stats":
		text, err := w.Stats(ctx)
		if err != nil {
			return err
		}
		w.kit.Post(ctx, in.Room.ID, text)
		return nil
	default:
		w.kit.Post(ctx, in.Room.ID, usageText)
		return nil
	}
}
