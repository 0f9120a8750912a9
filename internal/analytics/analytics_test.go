package analytics

import (
	"strings"
	"testing"
	"time"
)

func TestAnalyzePairings(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	entries := []Pairing{
		// Older than the recent window
		{Username1: "alice", Username2: "bob", DateTime: now.AddDate(0, -2, 0)},
		// Recent
		{Username1: "carol", Username2: "alice", DateTime: now.AddDate(0, 0, -3)},
		{Username1: "bob", Username2: "alice", DateTime: now.AddDate(0, 0, -1)},
		// Malformed entries are ignored
		{Username1: "dave", DateTime: now},
	}

	stats := AnalyzePairings(entries, now)

	if stats.TotalPairings != 3 {
		t.Errorf("Expected 3 pairings, got %d", stats.TotalPairings)
	}
	if stats.RecentPairings != 2 {
		t.Errorf("Expected 2 recent pairings, got %d", stats.RecentPairings)
	}
	if stats.UniqueUsers != 3 {
		t.Errorf("Expected 3 unique users, got %d", stats.UniqueUsers)
	}
	if !stats.LastPairing.Equal(now.AddDate(0, 0, -1)) {
		t.Errorf("Unexpected last pairing %s", stats.LastPairing)
	}

	expected := map[string]int{"alice": 3, "bob": 2, "carol": 1}
	for u, n := range expected {
		if stats.ByUser[u] != n {
			t.Errorf("Expected %s to have %d pairings, got %d", u, n, stats.ByUser[u])
		}
	}
}

func TestTopUsers(t *testing.T) {
	stats := &PairingStats{ByUser: map[string]int{"zoe": 2, "amy": 2, "bob": 5, "cid": 1}}

	top := stats.TopUsers(3)
	want := []string{"bob", "amy", "zoe"}
	if len(top) != len(want) {
		t.Fatalf("Expected %d users, got %d", len(want), len(top))
	}
	for i, u := range want {
		if top[i].Username != u {
			t.Errorf("Position %d: expected %s, got %s", i, u, top[i].Username)
		}
	}

	if all := stats.TopUsers(0); len(all) != 4 {
		t.Errorf("Expected no limit for 0, got %d users", len(all))
	}
}

func TestGenerateReportSummary(t *testing.T) {
	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	stats := AnalyzePairings([]Pairing{
		{Username1: "alice", Username2: "bob", DateTime: now.AddDate(0, 0, -2)},
	}, now)

	summary := stats.GenerateReportSummary()

	expectedParts := []string{
		"*One-on-one stats*",
		"Pairings: 1 (1 in the last 30 days)",
		"Participants: 2",
		"Last match: 2024-03-13",
		"- @alice: 1",
		"- @bob: 1",
	}
	for _, part := range expectedParts {
		if !strings.Contains(summary, part) {
			t.Errorf("Summary should contain %q, got:\n%s", part, summary)
		}
	}
}

func TestGenerateReportSummaryEmpty(t *testing.T) {
	summary := AnalyzePairings(nil, time.Now()).GenerateReportSummary()
	if !strings.Contains(summary, "No one-on-ones") {
		t.Errorf("Unexpected empty summary: %s", summary)
	}
}
