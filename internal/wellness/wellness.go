// Package wellness posts the recurring mood check-in.
package wellness

import (
	"context"
	"fmt"
	"log"

	"team-pulse/internal/botkit"
	"team-pulse/internal/storage"
)

var markerKey = storage.MiscAssociation("wellness")

const (
	introText = "To make us feel a little closer together we're creating a regular point of contact around here to start our days! " +
		"A simple check-in to know how everyone is feeling, so let's begin?\n\n" +
		"Please react to this message with an emoji that represents how you are feeling today!"
	checkInText = "*Check-in* - Please react to this message with an emoji that represents how you are feeling today!"
)

type marker struct {
	First bool `json:"first"`
}

type Workflow struct {
	kit   *botkit.Kit
	store storage.Store
}

func New(kit *botkit.Kit, store storage.Store) *Workflow {
	return &Workflow{kit: kit, store: store}
}

// Run posts a check-in to the answers room. The very first one introduces the ritual.
func (w *Workflow) Run(ctx context.Context) error {
	room := w.kit.Settings().AnswersRoomID
	if room == 0 {
		log.Printf("⚠️ answers room is not configured, wellness check-in skipped")
		return nil
	}

	first := false
	err := storage.UpdateJSON(ctx, w.store, markerKey, func(cur *marker) (*marker, error) {
		first = cur == nil
		return &marker{First: true}, nil
	})
	if err != nil {
		return fmt.Errorf("wellness: marker: %w", err)
	}

	text := checkInText
	if first {
		text = introText
	}
	w.kit.Post(ctx, room, text)
	return nil
}
