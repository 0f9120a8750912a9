package karma

import (
	"context"
	"strings"
	"sync"
	"testing"

	"team-pulse/internal/storage"
)

func TestIncrementKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(storage.NewMemoryStore(), KarmaKey)
	for _, u := range []string{"carol", "alice", "carol", "bob"} {
		if err := l.Increment(ctx, u, 1); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	got, err := l.Entries(ctx)
	if err != nil {
		t.Fatalf("entries: %v", err)
	}
	want := []Entry{{"carol", 2}, {"alice", 1}, {"bob", 1}}
	if len(got) != len(want) {
		t.Fatalf("want %+v, got %+v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %+v, got %+v", want, got)
		}
	}
}

func TestIncrementRejectsNegative(t *testing.T) {
	l := NewLedger(storage.NewMemoryStore(), KarmaKey)
	if err := l.Increment(context.Background(), "a", -1); err == nil {
		t.Fatalf("expected error")
	}
}

func TestConcurrentIncrementsAreNotLost(t *testing.T) {
	ctx := context.Background()
	l := NewLedger(storage.NewMemoryStore(), PraiserKey)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Increment(ctx, "alice", 1)
		}()
	}
	wg.Wait()
	if n, _ := l.Points(ctx, "alice"); n != 40 {
		t.Fatalf("want 40, got %d", n)
	}
}

func TestRankOrdersByScoreStably(t *testing.T) {
	ranked := Rank([]Entry{{"a", 3}, {"b", 5}, {"c", 3}}, DefaultLimit)
	if ranked[0].Username != "b" {
		t.Fatalf("b must rank first: %+v", ranked)
	}
	if ranked[1].Username != "a" || ranked[2].Username != "c" {
		t.Fatalf("ties must keep insertion order: %+v", ranked)
	}
	if ranked[0].Tier != 0 || ranked[1].Tier != 1 || ranked[2].Tier != 1 {
		t.Fatalf("unexpected tiers: %+v", ranked)
	}
}

func TestRankTiersAndLimit(t *testing.T) {
	var entries []Entry
	for i := 0; i < 12; i++ {
		entries = append(entries, Entry{Username: string(rune('a' + i)), Points: 12 - i})
	}
	ranked := Rank(entries, DefaultLimit)
	if len(ranked) != 10 {
		t.Fatalf("want 10 entries, got %d", len(ranked))
	}
	if ranked[3].Tier != 3 || ranked[9].Tier != 3 {
		t.Fatalf("entries past the third tier get the ribbon: %+v", ranked)
	}
}

func TestRender(t *testing.T) {
	out := Render("Karma", Rank([]Entry{{"a", 3}, {"b", 5}, {"c", 3}, {"d", 1}, {"e", 0}}, 0))
	lines := strings.Split(out, "\n")
	want := []string{"*Karma*", "🥇 b: 5", "🥈 a: 3", "🥈 c: 3", "🥉 d: 1", "🎗 e: 0"}
	if len(lines) != len(want) {
		t.Fatalf("unexpected output:\n%s", out)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d: want %q, got %q", i, want[i], lines[i])
		}
	}
	if !strings.Contains(Render("Empty", nil), "Nobody") {
		t.Fatalf("empty board text missing")
	}
}
