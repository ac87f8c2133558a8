package difficulty

import (
	"math"
	"testing"
	"time"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/model"
)

func TestForTiers(t *testing.T) {
	cases := []struct {
		name                    string
		score, streak, accuracy float64
		want                    model.Difficulty
	}{
		{"fresh session", 0, 0, 100, model.Beginner},
		{"just below intermediate", 30, 0, 100, model.Beginner},
		{"intermediate boundary", 34, 0, 100, model.Intermediate},
		{"streak pushes up", 0, 5, 100, model.Intermediate},
		{"below expert", 300, 2, 75, model.Intermediate},
		{"expert", 300, 5, 75, model.Expert},
		{"high score", 1000, 0, 0, model.Expert},
	}
	for _, tc := range cases {
		if got := For(tc.score, tc.streak, tc.accuracy); got != tc.want {
			t.Fatalf("%s: For(%v, %v, %v) = %s, want %s", tc.name, tc.score, tc.streak, tc.accuracy, got, tc.want)
		}
	}
}

func TestPerformanceScoreFreshSession(t *testing.T) {
	if got := PerformanceScore(0, 0, 100); got != 40 {
		t.Fatalf("expected 40, got %v", got)
	}
}

func TestForIsTotal(t *testing.T) {
	inputs := [][3]float64{
		{math.NaN(), 0, 0},
		{math.Inf(1), 0, 0},
		{0, math.Inf(-1), 0},
		{-500, -3, -100},
	}
	for _, in := range inputs {
		if got := For(in[0], in[1], in[2]); got != model.Beginner {
			t.Fatalf("For(%v) = %s, want beginner", in, got)
		}
	}
	if got := Tier(math.NaN()); got != model.Beginner {
		t.Fatalf("Tier(NaN) = %s", got)
	}
}

func TestForIsDeterministic(t *testing.T) {
	first := For(120, 3, 80)
	for i := 0; i < 10; i++ {
		if got := For(120, 3, 80); got != first {
			t.Fatalf("run %d: %s != %s", i, got, first)
		}
	}
}

func TestProfiles(t *testing.T) {
	p := ProfileFor(model.Beginner)
	if p.Phases != 3 || p.TimeLimit != 60*time.Second || p.BasePoints != 10 {
		t.Fatalf("unexpected beginner profile: %+v", p)
	}
	if got := ProfileFor("unknown"); got != p {
		t.Fatalf("unknown tier should use beginner profile, got %+v", got)
	}
	if got := ProfileFor(model.Expert).Phases; got != 7 {
		t.Fatalf("expert phases = %d", got)
	}
}

func TestParse(t *testing.T) {
	if got := Parse(" Expert "); got != model.Expert {
		t.Fatalf("Parse expert = %s", got)
	}
	if got := Parse("nightmare"); got != model.Beginner {
		t.Fatalf("Parse unknown = %s", got)
	}
}

func TestMax(t *testing.T) {
	if got := Max(model.Intermediate, model.Beginner); got != model.Intermediate {
		t.Fatalf("Max = %s", got)
	}
	if got := Max(model.Beginner, model.Expert); got != model.Expert {
		t.Fatalf("Max = %s", got)
	}
}

func TestAllowedPhases(t *testing.T) {
	phases := catalog.Phases()
	got := AllowedPhases(model.Beginner, phases)
	if len(got) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(got))
	}
	if got[0].ID != catalog.PhaseReconnaissance || got[2].ID != catalog.PhaseDelivery {
		t.Fatalf("unexpected phases: %+v", got)
	}
	if ids := AllowedPhaseIDs(model.Expert); len(ids) != 7 {
		t.Fatalf("expected 7 ids, got %d", len(ids))
	}
	if got := AllowedPhases(model.Expert, phases[:2]); len(got) != 2 {
		t.Fatalf("expected cap at catalog length, got %d", len(got))
	}
}
