package karma

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"team-pulse/internal/storage"
)

const DefaultLimit = 10

var (
	KarmaKey       = storage.MiscAssociation("karma")
	PraiserKey     = storage.MiscAssociation("praiser-karma")
	ValuePointsKey = storage.MiscAssociation("value-points")
)

type Entry struct {
	Username string `json:"username"`
	Points   int    `json:"points"`
}

// document keeps entries in first-seen order so ties rank stably.
type document struct {
	Entries []Entry `json:"entries"`
}

// Ledger is a per-username counter stored under one association.
type Ledger struct {
	store storage.Store
	key   storage.Association
}

func NewLedger(s storage.Store, key storage.Association) *Ledger {
	return &Ledger{store: s, key: key}
}

// Increment adds n points to username atomically.
func (l *Ledger) Increment(ctx context.Context, username string, n int) error {
	if n < 0 {
		return fmt.Errorf("karma: negative increment %d", n)
	}
	err := storage.UpdateJSON(ctx, l.store, l.key, func(cur *document) (*document, error) {
		if cur == nil {
			cur = &document{}
		}
		for i := range cur.Entries {
			if cur.Entries[i].Username == username {
				cur.Entries[i].Points += n
				return cur, nil
			}
		}
		cur.Entries = append(cur.Entries, Entry{Username: username, Points: n})
		return cur, nil
	})
	if err != nil {
		return fmt.Errorf("karma: increment %s in %s: %w", username, l.key, err)
	}
	return nil
}

// Entries returns all entries in insertion order.
func (l *Ledger) Entries(ctx context.Context) ([]Entry, error) {
	var doc document
	if _, err := storage.ReadJSON(ctx, l.store, l.key, &doc); err != nil {
		return nil, fmt.Errorf("karma: read %s: %w", l.key, err)
	}
	return doc.Entries, nil
}

func (l *Ledger) Points(ctx context.Context, username string) (int, error) {
	entries, err := l.Entries(ctx)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.Username == username {
			return e.Points, nil
		}
	}
	return 0, nil
}

// Ranked is an entry with its medal tier: 0, 1, 2 for the three best distinct
// scores, 3 for everything below.
type Ranked struct {
	Entry
	Tier int
}

// Rank orders by points descending, keeping insertion order among ties, and
// truncates to limit entries when limit > 0.
func Rank(entries []Entry, limit int) []Ranked {
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Points > sorted[j].Points })
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	out := make([]Ranked, 0, len(sorted))
	tier := -1
	for i, e := range sorted {
		if i == 0 || e.Points != sorted[i-1].Points {
			tier++
		}
		out = append(out, Ranked{Entry: e, Tier: min(tier, 3)})
	}
	return out
}

var medals = [...]string{"🥇", "🥈", "🥉", "🎗"}

// Render formats a scoreboard.
func Render(title string, ranked []Ranked) string {
	var b strings.Builder
	b.WriteString("*" + title + "*\n")
	if len(ranked) == 0 {
		b.WriteString("Nobody is on the board yet.")
		return b.String()
	}
	for _, r := range ranked {
		fmt.Fprintf(&b, "%s %s: %d\n", medals[r.Tier], r.Username, r.Points)
	}
	return strings.TrimRight(b.String(), "\n")
}
