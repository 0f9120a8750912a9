package asked

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/looplab/fsm"

	"team-pulse/internal/chat"
	"team-pulse/internal/storage"
)

const (
	StatePending = "pending"
	StateSent    = "sent"
	StateClosed  = "closed"

	eventSend  = "send"
	eventClose = "close"
)

// Record is a question collected over days through threaded replies.
type Record struct {
	ID             string            `json:"id"`
	Text           string            `json:"text"`
	CollectionDate time.Time         `json:"collectionDate"`
	AskedBy        string            `json:"askedBy"`
	Timestamp      time.Time         `json:"timestamp"`
	MsgIDs         []chat.MessageRef `json:"msgIds"`
	State          string            `json:"state"`
}

// thread maps a broadcast message back to its question and thread root.
// Asked is the Timestamp of the record it was broadcast for, which tells
// threads of an earlier round of the same question apart.
type thread struct {
	QuestionID string          `json:"questionId"`
	Asked      time.Time       `json:"asked"`
	Root       chat.MessageRef `json:"root"`
}

// Response is the first reply captured in a member's thread.
type Response struct {
	RoomID    int64     `json:"roomId"`
	MsgID     int       `json:"msgId"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type index struct {
	IDs []string `json:"ids"`
}

var indexKey = storage.MiscAssociation("asked-questions")

func recordKey(id string) storage.Association {
	return storage.MiscAssociation("asked-question:" + id)
}

func threadKey(ref chat.MessageRef) storage.Association {
	return storage.MiscAssociation("ask-thread:" + ref.Key())
}

func responseKey(root chat.MessageRef) storage.Association {
	return storage.MiscAssociation("ask-response:" + root.Key())
}

// normalize strips the highlighting asterisks and surrounding space.
func normalize(text string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(text), "*"))
}

// QuestionID is the hex SHA-1 of the normalized question text.
func QuestionID(text string) string {
	sum := sha1.Sum([]byte(normalize(text)))
	return hex.EncodeToString(sum[:])
}

func newMachine(state string) *fsm.FSM {
	return fsm.NewFSM(state, fsm.Events{
		{Name: eventSend, Src: []string{StatePending}, Dst: StateSent},
		{Name: eventClose, Src: []string{StateSent}, Dst: StateClosed},
	}, fsm.Callbacks{})
}

// advance moves r forward by event; states never go back.
func (r *Record) advance(ctx context.Context, event string) error {
	m := newMachine(r.State)
	if err := m.Event(ctx, event); err != nil {
		return fmt.Errorf("asked: %s question %s in state %s: %w", event, r.ID, r.State, err)
	}
	r.State = m.Current()
	return nil
}
