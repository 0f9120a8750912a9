package praise

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/conversation"
	"team-pulse/internal/karma"
)

var prompts = []string{
	"Hello 🖖 would you like to praise someone today?",
	"I'm sure someone did something good recently. Who deserves your thanks?",
	"Praise time 🎉 Who deserves your 👏 this week?",
	"How about giving praise to someone today?",
}

var templates = []string{
	`@{sender} says thanks to @{username} for "{text}"`,
	`@{sender} gives @{username} kudos for "{text}"`,
	`@{sender} thinks @{username} did a good job on "{text}"`,
}

const (
	selfTemplate   = `@{sender} praises themselves for "{text}"`
	selfReason     = "What did you do so well that deserves your own thanks?"
	registeredText = "Your praise has been registered"
	buttonsPerRow  = 2
)

type Workflow struct {
	kit      *botkit.Kit
	states   *conversation.Store
	karma    *karma.Ledger
	praisers *karma.Ledger
	intn     func(n int) int
}

func New(kit *botkit.Kit, states *conversation.Store, received, given *karma.Ledger) *Workflow {
	return &Workflow{kit: kit, states: states, karma: received, praisers: given, intn: rand.Intn}
}

// Run asks every member, or just the given ones, who they would like to praise.
func (w *Workflow) Run(ctx context.Context, only ...chat.User) error {
	all, err := w.kit.Members(ctx)
	if err != nil {
		return fmt.Errorf("praise: run: %w", err)
	}
	roster := rosterButtons(all)
	ask := func(ctx context.Context, u chat.User) error {
		if err := w.states.Set(ctx, u.ID, conversation.WaitingForUsername{}); err != nil {
			return err
		}
		_, err := w.kit.SendDirect(ctx, u, prompts[w.intn(len(prompts))], roster...)
		return err
	}
	if len(only) == 0 {
		_, err = w.kit.EachMember(ctx, "praise request", ask)
		return err
	}
	for _, u := range only {
		if err := ask(ctx, u); err != nil {
			log.Printf("⚠️ praise request to @%s failed: %v", u.Username, err)
		}
	}
	return nil
}

func rosterButtons(members []chat.User) [][]chat.Button {
	var rows [][]chat.Button
	var row []chat.Button
	for _, m := range botkit.SortedByName(members) {
		row = append(row, chat.Button{Text: m.DisplayName(), Data: "@" + m.Username})
		if len(row) == buttonsPerRow {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return rows
}

// ResolveUsername accepts text only when, without one leading "@" and
// surrounding spaces, it equals a member's username exactly.
func (w *Workflow) ResolveUsername(ctx context.Context, text string) (string, bool, error) {
	name := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), "@"))
	if name == "" {
		return "", false, nil
	}
	u, ok, err := w.kit.FindMember(ctx, name)
	if err != nil || !ok {
		return "", false, err
	}
	return u.Username, true, nil
}

func (w *Workflow) Answer(ctx context.Context, in chat.Inbound, st conversation.State) error {
	username, ok, err := w.ResolveUsername(ctx, in.Text)
	if err != nil {
		return err
	}
	switch v := st.(type) {
	case conversation.WaitingForUsername:
		if !ok {
			w.kit.Post(ctx, in.Room.ID, fmt.Sprintf("I haven't found the username: *%s*", in.Text))
			return nil
		}
		return w.selectUsername(ctx, in, username)
	case conversation.WaitingForPraiseReason:
		if ok {
			return w.selectUsername(ctx, in, username)
		}
		if err := w.states.Clear(ctx, in.Sender.ID); err != nil {
			return err
		}
		return w.give(ctx, in, v.Username, in.Text)
	default:
		return fmt.Errorf("praise: unexpected state %T", st)
	}
}

// Command handles "/praise [@user [reason...]]".
func (w *Workflow) Command(ctx context.Context, in chat.Inbound, args string) error {
	args = strings.TrimSpace(args)
	if args == "" {
		return w.Run(ctx, in.Sender)
	}
	target, reason, _ := strings.Cut(args, " ")
	username, ok, err := w.ResolveUsername(ctx, target)
	if err != nil {
		return err
	}
	if !ok {
		w.kit.Post(ctx, in.Room.ID, fmt.Sprintf("I haven't found the username: *%s*", target))
		return w.Run(ctx, in.Sender)
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		return w.selectUsername(ctx, in, username)
	}
	if err := w.states.Clear(ctx, in.Sender.ID); err != nil {
		return err
	}
	return w.give(ctx, in, username, reason)
}

func (w *Workflow) selectUsername(ctx context.Context, in chat.Inbound, username string) error {
	if err := w.states.Set(ctx, in.Sender.ID, conversation.WaitingForPraiseReason{Username: username}); err != nil {
		return err
	}
	text := fmt.Sprintf("What would you like to praise @%s for?", username)
	if username == in.Sender.Username {
		text = selfReason
	}
	w.kit.Post(ctx, in.Room.ID, text)
	return nil
}

func (w *Workflow) give(ctx context.Context, in chat.Inbound, username, reason string) error {
	sender := in.Sender.Username
	self := username == sender
	if !self {
		if err := w.karma.Increment(ctx, username, 1); err != nil {
			return err
		}
		if err := w.praisers.Increment(ctx, sender, 1); err != nil {
			return err
		}
	}

	tpl := selfTemplate
	if !self {
		tpl = templates[w.intn(len(templates))]
	}
	text := strings.NewReplacer("{sender}", sender, "{username}", username, "{text}", reason).Replace(tpl)
	if room := w.kit.Settings().PraiseRoomID; room != 0 {
		w.kit.Post(ctx, room, text)
	} else {
		log.Printf("⚠️ praise room is not configured, praise from @%s not posted", sender)
	}
	w.kit.Post(ctx, in.Room.ID, registeredText)
	log.Printf("👏 @%s praised @%s", sender, username)
	return nil
}

// Scoreboard renders the top received and given praise.
func (w *Workflow) Scoreboard(ctx context.Context) (string, error) {
	received, err := w.karma.Entries(ctx)
	if err != nil {
		return "", err
	}
	given, err := w.praisers.Entries(ctx)
	if err != nil {
		return "", err
	}
	return karma.Render("Karma Scoreboard", karma.Rank(received, karma.DefaultLimit)) + "\n\n" +
		karma.Render("Top Praisers", karma.Rank(given, karma.DefaultLimit)), nil
}

// SendScoreboard posts the scoreboard to the praise room.
func (w *Workflow) SendScoreboard(ctx context.Context) error {
	room := w.kit.Settings().PraiseRoomID
	if room == 0 {
		log.Printf("⚠️ praise room is not configured, scoreboard skipped")
		return nil
	}
	text, err := w.Scoreboard(ctx)
	if err != nil {
		return fmt.Errorf("praise: scoreboard: %w", err)
	}
	if _, err := w.kit.Send(ctx, chat.Outgoing{RoomID: room, Text: text}); err != nil {
		return fmt.Errorf("praise: scoreboard: %w", err)
	}
	return nil
}
