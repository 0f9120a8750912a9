package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RecentWindow is how far back a pairing still counts as recent.
const RecentWindow = 30 * 24 * time.Hour

// Pairing is one successful one-on-one match: Username1 waited, Username2 matched.
type Pairing struct {
	Username1 string    `json:"username1"`
	Username2 string    `json:"username2"`
	DateTime  time.Time `json:"dateTime"`
}

// PairingStats summarizes the pairing log.
type PairingStats struct {
	TotalPairings  int
	RecentPairings int
	UniqueUsers    int
	LastPairing    time.Time
	ByUser         map[string]int
}

// UserCount is one line of the most-paired list.
type UserCount struct {
	Username string
	Pairings int
}

// AnalyzePairings counts pairings overall and within RecentWindow before now.
func AnalyzePairings(entries []Pairing, now time.Time) *PairingStats {
	stats := &PairingStats{ByUser: make(map[string]int)}
	since := now.Add(-RecentWindow)

	for _, p := range entries {
		if p.Username1 == "" || p.Username2 == "" {
			continue
		}
		stats.TotalPairings++
		if !p.DateTime.Before(since) && !p.DateTime.After(now) {
			stats.RecentPairings++
		}
		if p.DateTime.After(stats.LastPairing) {
			stats.LastPairing = p.DateTime
		}
		stats.ByUser[p.Username1]++
		stats.ByUser[p.Username2]++
	}

	stats.UniqueUsers = len(stats.ByUser)
	return stats
}

// TopUsers returns the most paired users, ties broken by username.
func (ps *PairingStats) TopUsers(limit int) []UserCount {
	out := make([]UserCount, 0, len(ps.ByUser))
	for u, n := range ps.ByUser {
		out = append(out, UserCount{Username: u, Pairings: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pairings != out[j].Pairings {
			return out[i].Pairings > out[j].Pairings
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GenerateReportSummary renders the stats as a chat message.
func (ps *PairingStats) GenerateReportSummary() string {
	if ps.TotalPairings == 0 {
		return "*One-on-one stats*\nNo one-on-ones have been matched yet."
	}

	var b strings.Builder
	b.WriteString("*One-on-one stats*\n")
	fmt.Fprintf(&b, "Pairings: %d (%d in the last 30 days)\n", ps.TotalPairings, ps.RecentPairings)
	fmt.Fprintf(&b, "Participants: %d\n", ps.UniqueUsers)
	fmt.Fprintf(&b, "Last match: %s\n", ps.LastPairing.Format("2006-01-02"))

	b.WriteString("Most social:\n")
	for _, uc := range ps.TopUsers(5) {
		fmt.Fprintf(&b, "- @%s: %d\n", uc.Username, uc.Pairings)
	}
	return strings.TrimRight(b.String(), "\n")
}
