package stats

import (
	"bytes"
	"strings"
	"testing"

	"github.com/verte-zerg/killchain/internal/model"
)

func TestSparklineFlat(t *testing.T) {
	if got := Sparkline([]float64{5, 5, 5}); got != "+++" {
		t.Fatalf("unexpected flat sparkline: %q", got)
	}
	if got := Sparkline([]float64{0, 100}); got != " @" {
		t.Fatalf("unexpected sparkline: %q", got)
	}
}

func TestRenderLeaderboardEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderLeaderboard(&buf, nil, 80); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "No sessions found." {
		t.Fatalf("unexpected output: %q", buf.String())
	}
}

func TestRenderLeaderboardRows(t *testing.T) {
	entries := []model.LeaderboardEntry{
		{
			Rank: 1,
			Session: model.SessionAggregate{
				SessionID:       "session-alpha",
				Score:           420,
				TotalAttempts:   4,
				CorrectAttempts: 3,
				PhasesMastered:  2,
			},
			RecentPoints: []int{10, 60, 35},
		},
	}
	var buf bytes.Buffer
	if err := RenderLeaderboard(&buf, entries, 120); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Leaderboard", "session-alpha", "420", "75%", "2/7 phases"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestRenderLeaderboardTruncatesSession(t *testing.T) {
	long := strings.Repeat("s", 64)
	entries := []model.LeaderboardEntry{{
		Rank:    1,
		Session: model.SessionAggregate{SessionID: long, Score: 10, TotalAttempts: 1, CorrectAttempts: 1},
	}}
	var buf bytes.Buffer
	if err := RenderLeaderboard(&buf, entries, 60); err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(buf.String(), long) {
		t.Fatalf("expected session id to be truncated:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "…") {
		t.Fatalf("expected ellipsis:\n%s", buf.String())
	}
}
