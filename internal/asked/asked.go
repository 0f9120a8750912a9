package asked

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"strings"
	"time"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat"
	"team-pulse/internal/scheduler"
	"team-pulse/internal/storage"
)

var ErrQuestionNotFound = errors.New("asked: question not found")

const deadlineLayout = "Mon, 02 Jan 2006 15:04 MST"

// Scheduler is the one-shot half of scheduler.Scheduler.
type Scheduler interface {
	AddOnce(name string, at time.Time, job scheduler.Job)
}

type Workflow struct {
	kit   *botkit.Kit
	store storage.Store
	sched Scheduler
	now   func() time.Time
}

func New(kit *botkit.Kit, store storage.Store, sched Scheduler) *Workflow {
	return &Workflow{kit: kit, store: store, sched: sched, now: time.Now}
}

func jobName(id string) string { return "ask-digest:" + id }

// Get loads a question record.
func (w *Workflow) Get(ctx context.Context, id string) (Record, error) {
	var r Record
	ok, err := storage.ReadJSON(ctx, w.store, recordKey(id), &r)
	if err != nil {
		return Record{}, fmt.Errorf("asked: read %s: %w", id, err)
	}
	if !ok {
		return Record{}, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
	}
	return r, nil
}

// Submit validates the form, saves the question as pending and broadcasts it.
func (w *Workflow) Submit(ctx context.Context, f Form) (Record, error) {
	f.Text = normalize(f.Text)
	if err := validateForm(f); err != nil {
		return Record{}, err
	}

	rec := Record{
		ID:             QuestionID(f.Text),
		Text:           f.Text,
		CollectionDate: f.CollectionDate,
		AskedBy:        f.AskedBy,
		Timestamp:      w.now().UTC(),
		State:          StatePending,
	}
	err := storage.UpdateJSON(ctx, w.store, recordKey(rec.ID), func(cur *Record) (*Record, error) {
		// a pending record is a broadcast that never got through; asking again replaces it
		if cur != nil && cur.State == StateSent {
			return nil, &ValidationError{Fields: map[string]string{"Text": "This question is already being collected"}}
		}
		return &rec, nil
	})
	if err != nil {
		var ve *ValidationError
		if errors.As(err, &ve) {
			return Record{}, err
		}
		return Record{}, fmt.Errorf("asked: save %s: %w", rec.ID, err)
	}
	err = storage.UpdateJSON(ctx, w.store, indexKey, func(cur *index) (*index, error) {
		if cur == nil {
			cur = &index{}
		}
		if !slices.Contains(cur.IDs, rec.ID) {
			cur.IDs = append(cur.IDs, rec.ID)
		}
		return cur, nil
	})
	if err != nil {
		return Record{}, fmt.Errorf("asked: index %s: %w", rec.ID, err)
	}
	log.Printf("📝 @%s asked %q, collecting until %s", rec.AskedBy, rec.Text, rec.CollectionDate.Format(time.RFC3339))

	if err := w.Run(ctx, rec.ID); err != nil {
		return rec, err
	}
	return w.Get(ctx, rec.ID)
}

// Run broadcasts a pending question to every member and schedules its digest.
func (w *Workflow) Run(ctx context.Context, id string) error {
	rec, err := w.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State != StatePending {
		return fmt.Errorf("asked: run %s: question is %s", id, rec.State)
	}

	deadline := fmt.Sprintf("*Deadline:* %s\nReply in this thread to submit your answer", rec.CollectionDate.Format(deadlineLayout))
	var roots []chat.MessageRef
	_, broadcastErr := w.kit.EachMember(ctx, "ask question", func(ctx context.Context, u chat.User) error {
		root, err := w.kit.SendDirect(ctx, u, "*"+rec.Text+"*")
		if err != nil {
			return err
		}
		th := thread{QuestionID: id, Asked: rec.Timestamp, Root: root}
		if err := storage.PutJSON(ctx, w.store, threadKey(root), th); err != nil {
			return err
		}
		roots = append(roots, root)
		note, err := w.kit.Send(ctx, chat.Outgoing{RoomID: root.RoomID, ThreadID: root.MessageID, Text: deadline})
		if err != nil {
			log.Printf("⚠️ deadline note to @%s failed: %v", u.Username, err)
			return nil
		}
		return storage.PutJSON(ctx, w.store, threadKey(note), th)
	})
	if broadcastErr != nil && len(roots) == 0 {
		return fmt.Errorf("asked: broadcast %s: %w", id, broadcastErr)
	}

	// members who already got the question must be able to answer it, so a
	// broadcast cut short still moves the question to sent
	ctx = context.WithoutCancel(ctx)
	err = storage.UpdateJSON(ctx, w.store, recordKey(id), func(cur *Record) (*Record, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
		}
		cur.MsgIDs = roots
		if err := cur.advance(ctx, eventSend); err != nil {
			return nil, err
		}
		rec = *cur
		return cur, nil
	})
	if err != nil {
		return err
	}
	w.schedule(rec)
	if broadcastErr != nil {
		return fmt.Errorf("asked: broadcast %s reached %d member(s): %w", id, len(roots), broadcastErr)
	}
	return nil
}

func (w *Workflow) schedule(rec Record) {
	id := rec.ID
	w.sched.AddOnce(jobName(id), rec.CollectionDate, func(ctx context.Context) error {
		return w.PostAnswers(ctx, id)
	})
}

// Resume reschedules digests of every question still collecting answers.
func (w *Workflow) Resume(ctx context.Context) error {
	var idx index
	if _, err := storage.ReadJSON(ctx, w.store, indexKey, &idx); err != nil {
		return fmt.Errorf("asked: read index: %w", err)
	}
	resumed := 0
	for _, id := range idx.IDs {
		rec, err := w.Get(ctx, id)
		if err != nil {
			log.Printf("⚠️ resume %s: %v", id, err)
			continue
		}
		if rec.State != StateSent {
			continue
		}
		w.schedule(rec)
		resumed++
	}
	log.Printf("📅 resumed %d question digest(s)", resumed)
	return nil
}

// CaptureReply stores a threaded reply to a broadcast question. It reports
// whether the message belonged to a question thread. Only the first reply in
// each thread is kept.
func (w *Workflow) CaptureReply(ctx context.Context, in chat.Inbound) (bool, error) {
	if in.ReplyTo == 0 || w.kit.IsBot(in.Sender) {
		return false, nil
	}
	var th thread
	ok, err := storage.ReadJSON(ctx, w.store, threadKey(chat.MessageRef{RoomID: in.Room.ID, MessageID: in.ReplyTo}), &th)
	if err != nil {
		return false, fmt.Errorf("asked: read thread: %w", err)
	}
	if !ok {
		return false, nil
	}
	rec, err := w.Get(ctx, th.QuestionID)
	if err != nil {
		return true, err
	}
	if rec.State != StateSent || !th.Asked.Equal(rec.Timestamp) || w.now().After(rec.CollectionDate) {
		w.kit.Post(ctx, in.Room.ID, "This question is no longer collecting answers.")
		return true, nil
	}

	resp := Response{
		RoomID:    in.Ref.RoomID,
		MsgID:     in.Ref.MessageID,
		UserID:    in.Sender.ID,
		Username:  in.Sender.Username,
		Text:      strings.TrimSpace(in.Text),
		Timestamp: w.now().UTC(),
	}
	first := false
	err = storage.UpdateJSON(ctx, w.store, responseKey(th.Root), func(cur *Response) (*Response, error) {
		if cur != nil {
			first = false
			return cur, nil
		}
		first = true
		return &resp, nil
	})
	if err != nil {
		return true, fmt.Errorf("asked: save response: %w", err)
	}
	if !first {
		log.Printf("ℹ️ later reply from @%s to %s ignored", in.Sender.Username, th.QuestionID)
		w.kit.Post(ctx, in.Room.ID, "You've already answered this one, thanks!")
		return true, nil
	}
	w.kit.Post(ctx, in.Room.ID, "Thanks! Your answer has been recorded.")
	return true, nil
}

// PostAnswers publishes the digest of a question and closes it.
func (w *Workflow) PostAnswers(ctx context.Context, id string) error {
	rec, err := w.Get(ctx, id)
	if err != nil {
		return err
	}
	if rec.State == StateClosed {
		return nil
	}
	room := w.kit.Settings().AnswersRoomID
	if room == 0 {
		log.Printf("⚠️ answers room is not configured, digest for %s skipped", id)
		return nil
	}

	responses, err := w.responses(ctx, rec)
	if err != nil {
		return err
	}

	if len(responses) == 0 {
		w.kit.Post(ctx, room, fmt.Sprintf("*%s*\nNo responses were collected for this question.", rec.Text))
	} else if err := w.postDigest(ctx, room, rec, responses); err != nil {
		return err
	}

	return storage.UpdateJSON(ctx, w.store, recordKey(id), func(cur *Record) (*Record, error) {
		if cur == nil {
			return nil, fmt.Errorf("%w: %s", ErrQuestionNotFound, id)
		}
		if err := cur.advance(ctx, eventClose); err != nil {
			return nil, err
		}
		return cur, nil
	})
}

type named struct {
	Response
	Name string
}

func (w *Workflow) responses(ctx context.Context, rec Record) ([]named, error) {
	var out []named
	for _, root := range rec.MsgIDs {
		var r Response
		ok, err := storage.ReadJSON(ctx, w.store, responseKey(root), &r)
		if err != nil {
			return nil, fmt.Errorf("asked: read response: %w", err)
		}
		if !ok {
			continue
		}
		name := r.Username
		if u, err := w.kit.UserByID(ctx, r.UserID); err == nil {
			name = u.DisplayName()
		}
		out = append(out, named{Response: r, Name: name})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func teaser(n int) string {
	switch {
	case n == 1:
		return "Only one answer came in, make it count 👀"
	case n < 5:
		return fmt.Sprintf("%d teammates shared their take 🙌", n)
	default:
		return fmt.Sprintf("%d answers came in, what a conversation 🔥", n)
	}
}

func (w *Workflow) postDigest(ctx context.Context, room int64, rec Record, responses []named) error {
	settings := w.kit.Settings()
	header, err := w.kit.Send(ctx, chat.Outgoing{
		RoomID: room,
		Text:   fmt.Sprintf("*%s*\n%s", rec.Text, teaser(len(responses))),
	})
	if err != nil {
		return fmt.Errorf("asked: post digest header: %w", err)
	}

	first := responses[0]
	w.kit.Post(ctx, room, fmt.Sprintf("*%s*: %s\n%s", first.Name, first.Text,
		settings.Permalink(chat.MessageRef{RoomID: first.RoomID, MessageID: first.MsgID})))

	var b strings.Builder
	for _, r := range responses {
		link := settings.Permalink(chat.MessageRef{RoomID: r.RoomID, MessageID: r.MsgID})
		fmt.Fprintf(&b, "*%s*: %s ([link](%s))\n", r.Name, r.Text, link)
	}
	if _, err := w.kit.Send(ctx, chat.Outgoing{RoomID: room, ThreadID: header.MessageID, Text: strings.TrimRight(b.String(), "\n")}); err != nil {
		return fmt.Errorf("asked: post digest thread: %w", err)
	}
	log.Printf("📬 digest for %q posted with %d response(s)", rec.Text, len(responses))
	return nil
}
