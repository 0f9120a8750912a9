package wellness

import (
	"context"
	"testing"

	"team-pulse/internal/botkit"
	"team-pulse/internal/chat/chattest"
	"team-pulse/internal/storage"
)

func newWorkflow(room int64) (*Workflow, *chattest.Messenger) {
	msgr := chattest.NewMessenger()
	dir := chattest.NewDirectory()
	kit := botkit.New(botkit.Settings{AnswersRoomID: room}, msgr, dir, dir)
	return New(kit, storage.NewMemoryStore()), msgr
}

func TestFirstRunIntroduces(t *testing.T) {
	w, msgr := newWorkflow(-5)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := w.Run(ctx); err != nil {
			t.Fatalf("run #%d: %v", i, err)
		}
	}
	got := msgr.To(-5)
	if len(got) != 3 {
		t.Fatalf("want 3 posts, got %d", len(got))
	}
	if got[0] != introText || got[1] != checkInText || got[2] != checkInText {
		t.Fatalf("unexpected posts: %+v", got)
	}
}

func TestSkipsWithoutRoom(t *testing.T) {
	w, msgr := newWorkflow(0)
	if err := w.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(msgr.Sent) != 0 {
		t.Fatalf("nothing should be posted: %+v", msgr.Sent)
	}
	var m marker
	if ok, _ := storage.ReadJSON(context.Background(), w.store, markerKey, &m); ok {
		t.Fatalf("marker must not be set while nothing was posted")
	}
}
