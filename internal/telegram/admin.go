package telegram

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"team-pulse/internal/chat"
	"team-pulse/internal/members"
	"team-pulse/internal/pending"
	"team-pulse/internal/rooms"
)

const (
	sendUsage         = "Usage: /send @username|praise|answers text"
	registerRoomUsage = "Usage: /register_room <name> <invite_link>"
	removeRoomUsage   = "Usage: /remove_room <name>[, <name>...]"
)

// notifyAdminRequest
func (b *Bot) notifyAdminRequest(req pending.Request) {
	if b.adminUserID == 0 {
		return
	}
	m := req.Member
	text := fmt.Sprintf("User @%s (%s) with id %d wants to join the team", m.Username, m.Name(), m.ID)
	kb := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", approvePrefix+strconv.FormatInt(m.ID, 10)),
			tgbotapi.NewInlineKeyboardButtonData("Deny", denyPrefix+strconv.FormatInt(m.ID, 10)),
		),
	)
	msg := tgbotapi.NewMessage(b.adminUserID, text)
	msg.ReplyMarkup = kb
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("⚠️ failed to notify admin: %v", err)
	}
}

func (b *Bot) approveUser(id int64) {
	if id == 0 {
		return
	}
	m := members.Member{ID: id}
	req, ok, err := b.pending.Get(id)
	if err != nil {
		log.Printf("⚠️ read join request of %d: %v", id, err)
	}
	if ok {
		m = req.Member
	}
	if err := b.members.Upsert(m); err != nil {
		b.sendMessage(b.adminUserID, fmt.Sprintf("Failed to approve %d: %v", id, err))
		return
	}
	if err := b.pending.Remove(id); err != nil {
		log.Printf("⚠️ drop join request of %d: %v", id, err)
	}
	b.rosterChanged()
	log.Printf("✅ user %d (@%s) approved", id, m.Username)
	b.sendMessage(id, "Welcome to the team! 🎉\n\n"+helpText)
	if b.wf.Rooms != nil {
		if err := b.wf.Rooms.Welcome(context.Background(), id); err != nil {
			log.Printf("⚠️ rooms welcome to %d: %v", id, err)
		}
	}
	b.sendMessage(b.adminUserID, fmt.Sprintf("User @%s (%d) approved", m.Username, id))
}

func (b *Bot) denyUser(id int64) {
	if id == 0 {
		return
	}
	if err := b.pending.Remove(id); err != nil {
		log.Printf("⚠️ drop join request of %d: %v", id, err)
	}
	log.Printf("⛔ user %d denied", id)
	b.sendMessage(id, "Sorry, your request to join the team was declined.")
	b.sendMessage(b.adminUserID, fmt.Sprintf("User %d denied", id))
}

// handleAdminCommand
func (b *Bot) handleAdminCommand(ctx context.Context, in chat.Inbound, name, args string) {
	room := in.Room.ID
	switch name {
	case "members":
		var bld strings.Builder
		bld.WriteString("Members:\n")
		for _, m := range b.members.List() {
			bld.WriteString(fmt.Sprintf("- id=%d, @%s %s\n", m.ID, m.Username, m.Name()))
		}
		b.sendMessage(room, bld.String())
	case "pending":
		reqs, err := b.pending.LoadAll()
		if err != nil {
			b.sendMessage(room, fmt.Sprintf("Failed to load requests: %v", err))
			return
		}
		var bld strings.Builder
		bld.WriteString("Pending requests:\n")
		for _, r := range reqs {
			bld.WriteString(fmt.Sprintf("- id=%d, @%s %s (%s)\n", r.Member.ID, r.Member.Username, r.Member.Name(), r.RequestedAt.In(b.loc).Format("2006-01-02 15:04")))
		}
		b.sendMessage(room, bld.String())
	case "approve", "deny", "remove":
		fields := strings.Fields(args)
		if len(fields) != 1 {
			b.sendMessage(room, fmt.Sprintf("Usage: /%s <user_id>", name))
			return
		}
		uid, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			b.sendMessage(room, "Invalid user_id")
			return
		}
		switch name {
		case "approve":
			b.approveUser(uid)
		case "deny":
			b.denyUser(uid)
		case "remove":
			if err := b.members.Remove(uid); err != nil {
				b.sendMessage(room, fmt.Sprintf("Failed to remove: %v", err))
				return
			}
			b.rosterChanged()
			b.sendMessage(room, fmt.Sprintf("User %d removed from the team", uid))
		}
	case "send":
		b.handleSend(ctx, room, args)
	case "register_room":
		b.handleRegisterRoom(ctx, room, args)
	case "remove_room":
		b.handleRemoveRoom(ctx, room, args)
	}
}

// handleRegisterRoom reads "<name...> <invite_link>"; the link is the last word.
func (b *Bot) handleRegisterRoom(ctx context.Context, room int64, args string) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		b.sendMessage(room, registerRoomUsage)
		return
	}
	name := strings.Join(fields[:len(fields)-1], " ")
	link := fields[len(fields)-1]
	switch err := b.wf.Rooms.Register(ctx, name, link); {
	case errors.Is(err, rooms.ErrAlreadyRegistered):
		b.sendMessage(room, "A room with that name is already registered.")
	case errors.Is(err, rooms.ErrInvalidRoom):
		b.sendMessage(room, registerRoomUsage)
	case err != nil:
		log.Printf("❌ register room %q: %v", name, err)
		b.sendMessage(room, msgSomethingWrong)
	default:
		b.sendMessage(room, fmt.Sprintf("Room %s registered.", name))
	}
}

func (b *Bot) handleRemoveRoom(ctx context.Context, room int64, args string) {
	var names []string
	for _, n := range strings.Split(args, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		b.sendMessage(room, removeRoomUsage)
		return
	}
	n, err := b.wf.Rooms.Remove(ctx, names...)
	if err != nil {
		log.Printf("❌ remove rooms %v: %v", names, err)
		b.sendMessage(room, msgSomethingWrong)
		return
	}
	if n == 0 {
		b.sendMessage(room, "No such room.")
		return
	}
	b.sendMessage(room, fmt.Sprintf("Removed %d room(s).", n))
}

// handleSend posts a message as the bot to a member or one of the team rooms.
func (b *Bot) handleSend(ctx context.Context, room int64, args string) {
	target, text, _ := strings.Cut(strings.TrimSpace(args), " ")
	text = strings.TrimSpace(text)
	if target == "" || text == "" {
		b.sendMessage(room, sendUsage)
		return
	}
	var dest int64
	switch {
	case strings.HasPrefix(target, "@"):
		if m, ok := b.members.ByUsername(strings.TrimPrefix(target, "@")); ok {
			dest = m.ID
		}
	case target == "praise":
		dest = b.settings.PraiseRoomID
	case target == "answers":
		dest = b.settings.AnswersRoomID
	}
	if dest == 0 {
		b.sendMessage(room, fmt.Sprintf("I don't know where %s is.\n%s", target, sendUsage))
		return
	}
	if _, err := b.Send(ctx, chat.Outgoing{RoomID: dest, Text: text}); err != nil {
		b.sendMessage(room, fmt.Sprintf("Failed to send: %v", err))
		return
	}
	b.sendMessage(room, "Sent.")
}
