package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"team-pulse/internal/asked"
	"team-pulse/internal/chat"
	"team-pulse/internal/pending"
)

const (
	approvePrefix = "approve:"
	denyPrefix    = "deny:"

	msgSomethingWrong  = "Something went wrong, please try again."
	msgIdle            = "I'm not waiting for an answer from you right now. Send /help to see what I can do."
	msgUnknownCommand  = "Unknown command. Send /help to see what I can do."
	msgAdminOnly       = "This command is only available to the admin."
	msgRequestSent     = "Your request to join the team has been sent to the admin. I'll let you know once it is approved."
	msgRequestWaiting  = "Your request to join the team is still waiting for the admin. I'll let you know once it is approved."
	msgNeedUsername    = "Please set a Telegram username in your profile settings so your teammates can find you, then write to me again."
	askUsage           = "Usage: /ask YYYY-MM-DD [HH:MM] your question"
	askDeadlineLayout  = "Mon, 02 Jan 2006 15:04"
	answersPostedLater = "Your question was sent to %d member(s). I'll post the answers on %s."
)

const helpText = "Here's what I can do:\n" +
	"/praise [@user [reason]] - thank a teammate\n" +
	"/question [anonymous] - answer the current question\n" +
	"/ask YYYY-MM-DD [HH:MM] question - collect answers from everyone until a deadline\n" +
	"/one\\_on\\_one [stats] - get matched for a random one-on-one call\n" +
	"/values Value1,Value2 [@user ...] story - share something that represents our values\n" +
	"/scores - show the scoreboards\n" +
	"/rooms - team chats you might want to join\n" +
	"/cancel - stop whatever I'm asking you"

const adminHelpText = "\n\nAdmin:\n" +
	"/send @user|praise|answers text\n" +
	"/members, /pending\n" +
	"/approve <user\\_id>, /deny <user\\_id>, /remove <user\\_id>\n" +
	"/register\\_room <name> <invite\\_link>, /remove\\_room <name>[, <name>...]"

func (b *Bot) helpFor(userID int64) string {
	if b.adminUserID != 0 && userID == b.adminUserID {
		return helpText + adminHelpText
	}
	return helpText
}

// handleIncomingMessage
func (b *Bot) handleIncomingMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || msg.Chat == nil || !msg.Chat.IsPrivate() {
		return
	}
	if !b.members.IsMember(msg.From.ID) {
		b.handleStranger(msg)
		return
	}
	b.refreshMember(msg.From)

	log.Printf("📝 message from %d (@%s): %q", msg.From.ID, msg.From.UserName, msg.Text)
	in := chat.Inbound{
		Sender: memberFrom(msg.From).User(),
		Room:   chat.Room{ID: msg.Chat.ID, Name: msg.Chat.UserName, Direct: true},
		Text:   strings.TrimSpace(msg.Text),
		Ref:    chat.MessageRef{RoomID: msg.Chat.ID, MessageID: msg.MessageID},
	}
	if msg.ReplyToMessage != nil {
		in.ReplyTo = msg.ReplyToMessage.MessageID
	}
	b.route(ctx, in)
}

// refreshMember keeps the roster in step with profile changes, e.g. a new username.
func (b *Bot) refreshMember(u *tgbotapi.User) {
	m := memberFrom(u)
	if cur, ok := b.members.ByID(u.ID); ok && cur == m {
		return
	}
	if err := b.members.Touch(m); err != nil {
		log.Printf("⚠️ refresh member %d: %v", u.ID, err)
		return
	}
	b.rosterChanged()
}

func (b *Bot) handleStranger(msg *tgbotapi.Message) {
	log.Printf("🔒 Unauthorized access attempt by user ID: %d, username: @%s", msg.From.ID, msg.From.UserName)
	if _, ok, err := b.pending.Get(msg.From.ID); err == nil && ok {
		b.sendMessage(msg.Chat.ID, msgRequestWaiting)
		return
	}
	req := pending.Request{Member: memberFrom(msg.From), RequestedAt: time.Now().UTC()}
	if err := b.pending.Upsert(req); err != nil {
		log.Printf("❌ save join request of %d: %v", msg.From.ID, err)
		b.sendMessage(msg.Chat.ID, msgSomethingWrong)
		return
	}
	b.sendMessage(msg.Chat.ID, msgRequestSent)
	b.notifyAdminRequest(req)
}

// route sends what a member said to the right place: commands first, then
// replies to collected questions, then the conversation they are in.
func (b *Bot) route(ctx context.Context, in chat.Inbound) {
	name, args, isCommand := parseCommand(in.Text)
	if in.Sender.Username == "" && !(isCommand && (name == "start" || name == "help")) {
		// praise, pairing and ledgers all address members by username
		b.sendMessage(in.Room.ID, msgNeedUsername)
		return
	}
	if isCommand {
		b.handleCommand(ctx, in, name, args)
		return
	}
	if b.wf.Asked != nil {
		captured, err := b.wf.Asked.CaptureReply(ctx, in)
		if err != nil {
			log.Printf("❌ capture reply from @%s: %v", in.Sender.Username, err)
			b.sendMessage(in.Room.ID, msgSomethingWrong)
			return
		}
		if captured {
			return
		}
	}
	if b.wf.Dispatcher != nil && b.wf.Dispatcher.Dispatch(ctx, in) {
		return
	}
	b.sendMessage(in.Room.ID, msgIdle)
}

// parseCommand splits "/name@bot args" into name and args.
func parseCommand(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "/") || len(text) < 2 {
		return "", "", false
	}
	body := text[1:]
	name, args := body, ""
	if i := strings.IndexFunc(body, unicode.IsSpace); i >= 0 {
		name, args = body[:i], strings.TrimSpace(body[i:])
	}
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), args, true
}

// handleCommand
func (b *Bot) handleCommand(ctx context.Context, in chat.Inbound, name, args string) {
	var err error
	switch name {
	case "start", "help":
		b.sendMessage(in.Room.ID, b.helpFor(in.Sender.ID))
	case "praise":
		err = b.wf.Praise.Command(ctx, in, args)
	case "question":
		err = b.wf.Question.Command(ctx, in, args)
	case "one_on_one":
		err = b.wf.OneOnOne.Command(ctx, in, args)
	case "cancel":
		err = b.wf.Dispatcher.Cancel(ctx, in.Sender, in.Room)
	case "ask":
		err = b.handleAsk(ctx, in, args)
	case "values":
		err = b.wf.Values.Command(ctx, in, args)
	case "rooms":
		err = b.wf.Rooms.Suggest(ctx, in.Room.ID)
	case "scores":
		err = b.handleScores(ctx, in)
	case "send", "members", "pending", "approve", "deny", "remove", "register_room", "remove_room":
		if b.adminUserID == 0 || in.Sender.ID != b.adminUserID {
			b.sendMessage(in.Room.ID, msgAdminOnly)
			return
		}
		b.handleAdminCommand(ctx, in, name, args)
	default:
		b.sendMessage(in.Room.ID, msgUnknownCommand)
	}
	if err != nil {
		log.Printf("❌ /%s from @%s failed: %v", name, in.Sender.Username, err)
		b.sendMessage(in.Room.ID, msgSomethingWrong)
	}
}

func (b *Bot) handleAsk(ctx context.Context, in chat.Inbound, args string) error {
	form, err := asked.ParseCommand(args, b.loc)
	var rec asked.Record
	if err == nil {
		form.AskedBy = in.Sender.Username
		rec, err = b.wf.Asked.Submit(ctx, form)
	}
	var ve *asked.ValidationError
	if errors.As(err, &ve) {
		b.sendMessage(in.Room.ID, askUsage+"\n"+ve.Message())
		return nil
	}
	if err != nil {
		return err
	}
	b.sendMessage(in.Room.ID, fmt.Sprintf(answersPostedLater, len(rec.MsgIDs), rec.CollectionDate.In(b.loc).Format(askDeadlineLayout)))
	return nil
}

func (b *Bot) handleScores(ctx context.Context, in chat.Inbound) error {
	karma, err := b.wf.Praise.Scoreboard(ctx)
	if err != nil {
		return err
	}
	vals, err := b.wf.Values.Scoreboard(ctx)
	if err != nil {
		return err
	}
	b.sendMessage(in.Room.ID, karma+"\n\n"+vals)
	return nil
}

// handleCallback replays a pressed button as if the user had typed its data.
func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if _, err := b.s.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("⚠️ failed to answer callback: %v", err)
	}
	if cb.From == nil {
		return
	}

	switch {
	case strings.HasPrefix(cb.Data, approvePrefix), strings.HasPrefix(cb.Data, denyPrefix):
		if b.adminUserID == 0 || cb.From.ID != b.adminUserID {
			return
		}
		if idStr, ok := strings.CutPrefix(cb.Data, approvePrefix); ok {
			id, _ := strconv.ParseInt(idStr, 10, 64)
			b.approveUser(id)
			return
		}
		id, _ := strconv.ParseInt(strings.TrimPrefix(cb.Data, denyPrefix), 10, 64)
		b.denyUser(id)
		return
	}

	if cb.Message == nil || cb.Message.Chat == nil || !b.members.IsMember(cb.From.ID) {
		return
	}
	b.refreshMember(cb.From)
	in := chat.Inbound{
		Sender: memberFrom(cb.From).User(),
		Room:   chat.Room{ID: cb.Message.Chat.ID, Direct: cb.Message.Chat.IsPrivate()},
		Text:   cb.Data,
		Ref:    chat.MessageRef{RoomID: cb.Message.Chat.ID, MessageID: cb.Message.MessageID},
	}
	log.Printf("📝 button from %d (@%s): %q", cb.From.ID, cb.From.UserName, cb.Data)
	b.route(ctx, in)
}
