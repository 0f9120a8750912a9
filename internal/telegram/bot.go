package telegram

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"team-pulse/internal/asked"
	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/conversation"
	"team-pulse/internal/members"
	"team-pulse/internal/oneonone"
	"team-pulse/internal/pending"
	"team-pulse/internal/praise"
	"team-pulse/internal/question"
	"team-pulse/internal/rooms"
	"team-pulse/internal/values"
)

// Workflows are the features reachable from chat.
type Workflows struct {
	Dispatcher *conversation.Dispatcher
	Praise     *praise.Workflow
	Question   *question.Workflow
	OneOnOne   *oneonone.Workflow
	Asked      *asked.Workflow
	Values     *values.Workflow
	Rooms      *rooms.Workflow
}

// Bot is the Telegram side of the team: it delivers messages for the
// workflows, serves the roster as the member directory and routes updates.
type Bot struct {
	api         *tgbotapi.BotAPI
	s           sender
	members     *members.Service
	pending     pending.Repository
	adminUserID int64
	parseMode   string
	loc         *time.Location
	self        chat.User

	settings      botkit.Settings
	wf            Workflows
	rosterChanged func()
}

func New(botToken string, membersSvc *members.Service, pendingRepo pending.Repository, adminUserID int64, parseMode string, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	b := newBot(botAPISender{api: api}, membersSvc, pendingRepo, adminUserID, parseMode, loc)
	b.api = api
	b.self = chat.User{ID: api.Self.ID, Username: api.Self.UserName, Name: api.Self.FirstName}
	log.Printf("🤖 Authorized as @%s", api.Self.UserName)
	return b, nil
}

func newBot(s sender, membersSvc *members.Service, pendingRepo pending.Repository, adminUserID int64, parseMode string, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		s:             s,
		members:       membersSvc,
		pending:       pendingRepo,
		adminUserID:   adminUserID,
		parseMode:     parseMode,
		loc:           loc,
		rosterChanged: func() {},
	}
}

// Self is the bot's own account.
func (b *Bot) Self() chat.User { return b.self }

// Attach wires the workflows, which are built on top of the bot itself.
// rosterChanged runs whenever members are approved, removed or renamed.
func (b *Bot) Attach(settings botkit.Settings, wf Workflows, rosterChanged func()) {
	b.settings = settings
	b.wf = wf
	if rosterChanged != nil {
		b.rosterChanged = rosterChanged
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message != nil {
		b.handleIncomingMessage(ctx, update.Message)
		return
	}
	if update.CallbackQuery != nil {
		b.handleCallback(ctx, update.CallbackQuery)
	}
}

// Send implements chat.Messenger. Threads are Telegram replies.
func (b *Bot) Send(_ context.Context, out chat.Outgoing) (chat.MessageRef, error) {
	msg := tgbotapi.NewMessage(out.RoomID, out.Text)
	msg.ParseMode = b.parseModeValue()
	msg.ReplyToMessageID = out.ThreadID
	if len(out.Buttons) > 0 {
		msg.ReplyMarkup = inlineKeyboard(out.Buttons)
	}
	sent, err := b.send(msg)
	if err != nil {
		return chat.MessageRef{}, fmt.Errorf("telegram: send to %d: %w", out.RoomID, err)
	}
	return chat.MessageRef{RoomID: out.RoomID, MessageID: sent.MessageID}, nil
}

// Notify implements chat.Messenger. Telegram has no ephemeral messages, so
// the notice is a plain message in the user's room.
func (b *Bot) Notify(ctx context.Context, _ chat.User, roomID int64, text string) error {
	_, err := b.Send(ctx, chat.Outgoing{RoomID: roomID, Text: text})
	return err
}

func (b *Bot) send(msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	sent, err := b.s.Send(msg)
	if err != nil && msg.ParseMode != "" {
		// legacy Markdown rejects usernames with underscores
		log.Printf("⚠️ send with %s failed, retrying as plain text: %v", msg.ParseMode, err)
		msg.ParseMode = ""
		sent, err = b.s.Send(msg)
	}
	return sent, err
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.Send(context.Background(), chat.Outgoing{RoomID: chatID, Text: text}); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}

func (b *Bot) parseModeValue() string {
	switch strings.ToLower(b.parseMode) {
	case "markdown":
		return tgbotapi.ModeMarkdown
	case "markdownv2":
		return tgbotapi.ModeMarkdownV2
	case "html":
		return tgbotapi.ModeHTML
	default:
		return ""
	}
}

func inlineKeyboard(rows [][]chat.Button) tgbotapi.InlineKeyboardMarkup {
	kb := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			r = append(r, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		kb = append(kb, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kb...)
}

// Members implements chat.Directory over the approved roster. Members
// without a username cannot be addressed and are left out until they set one.
func (b *Bot) Members(context.Context) ([]chat.User, error) {
	list := b.members.List()
	out := make([]chat.User, 0, len(list))
	for _, m := range list {
		if m.Username == "" {
			continue
		}
		out = append(out, m.User())
	}
	return out, nil
}

func (b *Bot) UserByUsername(_ context.Context, username string) (chat.User, error) {
	m, ok := b.members.ByUsername(username)
	if !ok {
		return chat.User{}, chat.ErrNotFound
	}
	return m.User(), nil
}

func (b *Bot) UserByID(_ context.Context, id int64) (chat.User, error) {
	m, ok := b.members.ByID(id)
	if !ok {
		return chat.User{}, chat.ErrNotFound
	}
	return m.User(), nil
}

// Direct returns the private chat with username; its id is the user id.
func (b *Bot) Direct(_ context.Context, username string) (chat.Room, error) {
	m, ok := b.members.ByUsername(username)
	if !ok {
		return chat.Room{}, fmt.Errorf("telegram: direct room for @%s: %w", username, chat.ErrNotFound)
	}
	return chat.Room{ID: m.ID, Name: username, Direct: true}, nil
}

func memberFrom(u *tgbotapi.User) members.Member {
	return members.Member{ID: u.ID, Username: u.UserName, FirstName: u.FirstName, LastName: u.LastName}
}
