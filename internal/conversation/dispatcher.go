package conversation

import (
	"context"
	"fmt"
	"log"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
)

const (
	msgSomethingWrong = "Something went wrong, please try again."
	msgCancelled      = "Cancelled."
)

// PraiseAnswerer handles WaitingForUsername and WaitingForPraiseReason.
type PraiseAnswerer interface {
	Answer(ctx context.Context, in chat.Inbound, st State) error
}

type QuestionAnswerer interface {
	Answer(ctx context.Context, in chat.Inbound, st WaitingForAnswer) error
}

type OneOnOneAnswerer interface {
	Answer(ctx context.Context, in chat.Inbound) error
	Leave(ctx context.Context, user chat.User) error
}

type Dispatcher struct {
	states   *Store
	kit      *botkit.Kit
	praise   PraiseAnswerer
	question QuestionAnswerer
	oneOnOne OneOnOneAnswerer
}

func NewDispatcher(states *Store, kit *botkit.Kit, praise PraiseAnswerer, question QuestionAnswerer, oneOnOne OneOnOneAnswerer) *Dispatcher {
	return &Dispatcher{states: states, kit: kit, praise: praise, question: question, oneOnOne: oneOnOne}
}

// Dispatch routes a direct message to the workflow the sender is talking to.
// It reports whether the message was consumed. Workflow errors are logged and
// answered with a generic apology, never returned.
func (d *Dispatcher) Dispatch(ctx context.Context, in chat.Inbound) bool {
	st, err := d.states.Get(ctx, in.Sender.ID)
	if err != nil {
		log.Printf("❌ load conversation state for %d: %v", in.Sender.ID, err)
		d.kit.Post(ctx, in.Room.ID, msgSomethingWrong)
		return true
	}
	if st == nil {
		return false
	}

	switch v := st.(type) {
	case WaitingForUsername, WaitingForPraiseReason:
		err = d.praise.Answer(ctx, in, v)
	case WaitingForAnswer:
		err = d.question.Answer(ctx, in, v)
	case WaitingForOneOnOneReply:
		err = d.oneOnOne.Answer(ctx, in)
	default:
		err = fmt.Errorf("conversation: unhandled state %T", v)
	}
	if err != nil {
		log.Printf("❌ %s reply from @%s failed: %v", st.listen(), in.Sender.Username, err)
		d.kit.Post(ctx, in.Room.ID, msgSomethingWrong)
	}
	return true
}

// Cancel drops whatever the user was doing, including a one-on-one wait.
// Calling it with nothing to cancel is fine.
func (d *Dispatcher) Cancel(ctx context.Context, user chat.User, room chat.Room) error {
	if err := d.states.Clear(ctx, user.ID); err != nil {
		return err
	}
	if err := d.oneOnOne.Leave(ctx, user); err != nil {
		return err
	}
	d.kit.Post(ctx, room.ID, msgCancelled)
	return nil
}
