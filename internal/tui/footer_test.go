package tui

import (
	"strings"
	"testing"

	"github.com/verte-zerg/killchain/internal/engine"
	"github.com/verte-zerg/killchain/internal/model"
	"github.com/verte-zerg/killchain/internal/stats"
)

func TestRenderFooterFormats(t *testing.T) {
	s := engine.Snapshot{
		Difficulty:       model.Intermediate,
		BackendAvailable: false,
		Stats: stats.PlayerStats{
			Score:    420,
			Streak:   3,
			Level:    5,
			Accuracy: 88,
		},
	}
	out := renderFooter(s)
	if out == "" {
		t.Fatalf("expected footer output")
	}
	if !containsAll(out, []string{"Score 420", "Streak 3", "Level 5", "Accuracy 88%", "Tier intermediate", "offline"}) {
		t.Fatalf("footer missing expected segments: %s", out)
	}
}

func TestRenderToastListsAchievements(t *testing.T) {
	out := renderToast([]string{"score_1000", "unknown"})
	if !containsAll(out, []string{"Achievement unlocked!", "Kill Chain Master"}) {
		t.Fatalf("unexpected toast: %s", out)
	}
	if renderToast(nil) != "" {
		t.Fatalf("expected no toast without unlocks")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
