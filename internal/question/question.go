package question

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/conversation"
	"team-pulse/internal/storage"
)

// Anonymous replaces the username of answers submitted anonymously.
const Anonymous = "Anonymous"

var recordKey = storage.MiscAssociation("question")

const (
	anonymousData = "/question anonymous"
	noQuestion    = "There is no open question right now."
)

type Answer struct {
	Username string `json:"username"`
	Answer   string `json:"answer"`
}

// Record is the current question and every answer ever given, per question text.
type Record struct {
	Question string              `json:"question"`
	Answers  map[string][]Answer `json:"answers"`
}

type Workflow struct {
	kit    *botkit.Kit
	states *conversation.Store
	store  storage.Store
	source Source
}

func New(kit *botkit.Kit, states *conversation.Store, store storage.Store, source Source) *Workflow {
	return &Workflow{kit: kit, states: states, store: store, source: source}
}

// Current returns the open question, or "" when there is none.
func (w *Workflow) Current(ctx context.Context) (string, error) {
	var r Record
	if _, err := storage.ReadJSON(ctx, w.store, recordKey, &r); err != nil {
		return "", fmt.Errorf("question: read: %w", err)
	}
	return r.Question, nil
}

// Run closes the previous cycle and sends a new question to every member.
func (w *Workflow) Run(ctx context.Context) error {
	if _, err := w.PostAnswers(ctx); err != nil {
		log.Printf("❌ posting previous answers failed: %v", err)
	}

	q, err := w.source.Next(ctx)
	if err != nil {
		return fmt.Errorf("question: pick: %w", err)
	}
	err = storage.UpdateJSON(ctx, w.store, recordKey, func(cur *Record) (*Record, error) {
		if cur == nil {
			cur = &Record{}
		}
		cur.Question = q
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("question: store: %w", err)
	}
	log.Printf("❓ new question: %q", q)

	_, err = w.kit.EachMember(ctx, "question", func(ctx context.Context, u chat.User) error {
		if err := w.states.Set(ctx, u.ID, conversation.WaitingForAnswer{}); err != nil {
			return err
		}
		_, err := w.kit.SendDirect(ctx, u, q, anonymousButton())
		return err
	})
	return err
}

func anonymousButton() []chat.Button {
	return []chat.Button{{Text: "Answer anonymously", Data: anonymousData}}
}

// Answer records the reply of a user waiting for the question.
func (w *Workflow) Answer(ctx context.Context, in chat.Inbound, st conversation.WaitingForAnswer) error {
	if err := w.states.Clear(ctx, in.Sender.ID); err != nil {
		return err
	}
	err := w.Submit(ctx, in.Sender.Username, in.Text, st.Anonymous)
	if errors.Is(err, ErrNoQuestion) {
		w.kit.Post(ctx, in.Room.ID, noQuestion)
		return nil
	}
	if err != nil {
		return err
	}
	w.kit.Post(ctx, in.Room.ID, "Your answer has been registered")
	return nil
}

var ErrNoQuestion = errors.New("question: no open question")

// Submit stores an answer to the current question. A user answering again
// replaces their previous answer; anonymous answers are always appended.
func (w *Workflow) Submit(ctx context.Context, username, text string, anonymous bool) error {
	text = strings.TrimSpace(text)
	err := storage.UpdateJSON(ctx, w.store, recordKey, func(cur *Record) (*Record, error) {
		if cur == nil || cur.Question == "" {
			return nil, ErrNoQuestion
		}
		if cur.Answers == nil {
			cur.Answers = make(map[string][]Answer)
		}
		list := cur.Answers[cur.Question]
		if anonymous {
			cur.Answers[cur.Question] = append(list, Answer{Username: Anonymous, Answer: text})
			return cur, nil
		}
		for i := range list {
			if list[i].Username == username {
				list[i].Answer = text
				return cur, nil
			}
		}
		cur.Answers[cur.Question] = append(list, Answer{Username: username, Answer: text})
		return cur, nil
	})
	if err != nil && !errors.Is(err, ErrNoQuestion) {
		return fmt.Errorf("question: submit: %w", err)
	}
	return err
}

// Command handles "/question [anonymous]": it resends the open question and
// waits for an answer again.
func (w *Workflow) Command(ctx context.Context, in chat.Inbound, args string) error {
	anonymous := strings.EqualFold(strings.TrimSpace(args), "anonymous")
	return w.RepeatQuestion(ctx, in.Sender, in.Room, anonymous)
}

func (w *Workflow) RepeatQuestion(ctx context.Context, user chat.User, room chat.Room, anonymous bool) error {
	var r Record
	if _, err := storage.ReadJSON(ctx, w.store, recordKey, &r); err != nil {
		return fmt.Errorf("question: read: %w", err)
	}
	if r.Question == "" {
		w.kit.Post(ctx, room.ID, noQuestion)
		return nil
	}
	if err := w.states.Set(ctx, user.ID, conversation.WaitingForAnswer{Anonymous: anonymous}); err != nil {
		return err
	}

	text := r.Question
	for _, a := range r.Answers[r.Question] {
		if a.Username == user.Username {
			text += fmt.Sprintf("\n\nYour current answer: %s\nSending a new one replaces it.", a.Answer)
			break
		}
	}
	if anonymous {
		text += "\n\nYour next message will be recorded anonymously."
		w.kit.Post(ctx, room.ID, text)
		return nil
	}
	w.kit.Post(ctx, room.ID, text, anonymousButton())
	return nil
}

// PostAnswers closes the open question and posts its answers to the answers
// room. It reports whether anything was posted. The question is claimed
// before posting, so a second call finds nothing to do.
func (w *Workflow) PostAnswers(ctx context.Context) (bool, error) {
	room := w.kit.Settings().AnswersRoomID
	if room == 0 {
		log.Printf("⚠️ answers room is not configured, answers not posted")
		return false, nil
	}

	var claimed Record
	err := storage.UpdateJSON(ctx, w.store, recordKey, func(cur *Record) (*Record, error) {
		claimed = Record{}
		if cur == nil || cur.Question == "" {
			return cur, nil
		}
		claimed = Record{Question: cur.Question, Answers: map[string][]Answer{cur.Question: cur.Answers[cur.Question]}}
		cur.Question = ""
		return cur, nil
	})
	if err != nil {
		return false, fmt.Errorf("question: claim: %w", err)
	}
	if claimed.Question == "" {
		return false, nil
	}
	answers := claimed.Answers[claimed.Question]
	if len(answers) == 0 {
		log.Printf("ℹ️ nobody answered %q", claimed.Question)
		return false, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%s*\n---\n", claimed.Question)
	for _, a := range answers {
		fmt.Fprintf(&b, "*%s*: %s\n", a.Username, a.Answer)
	}
	b.WriteString("---")
	if _, err := w.kit.Send(ctx, chat.Outgoing{RoomID: room, Text: b.String()}); err != nil {
		return false, fmt.Errorf("question: post answers: %w", err)
	}
	return true, nil
}
