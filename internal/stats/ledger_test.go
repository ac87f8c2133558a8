package stats

import (
	"math/rand"
	"testing"

	"github.com/verte-zerg/killchain/internal/catalog"
)

func TestNewLedgerDefaults(t *testing.T) {
	s := NewLedger().Snapshot()
	if s.Level != 1 || s.Score != 0 || s.Accuracy != 100 {
		t.Fatalf("unexpected defaults: %+v", s)
	}
}

func TestApplyCorrectOutcome(t *testing.T) {
	l := NewLedger()
	s := l.Apply(Outcome{Correct: true, Points: 35})
	if s.Score != 35 || s.Streak != 1 || s.TotalAttempts != 1 || s.CorrectAttempts != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
	if s.Accuracy != 100 {
		t.Fatalf("expected accuracy 100, got %d", s.Accuracy)
	}
}

func TestApplyIncorrectResetsStreak(t *testing.T) {
	l := NewLedger()
	l.Apply(Outcome{Correct: true, Points: 10})
	l.Apply(Outcome{Correct: true, Points: 10})
	s := l.Apply(Outcome{Correct: false, Points: 5})
	if s.Streak != 0 {
		t.Fatalf("expected streak reset, got %d", s.Streak)
	}
	if s.Score != 25 {
		t.Fatalf("expected score 25, got %d", s.Score)
	}
	if s.Accuracy != 67 {
		t.Fatalf("expected accuracy 67, got %d", s.Accuracy)
	}
}

func TestApplyNegativePointsNeverLowerScore(t *testing.T) {
	l := NewLedger()
	l.Apply(Outcome{Correct: true, Points: 40})
	s := l.Apply(Outcome{Correct: false, Points: -100})
	if s.Score != 40 {
		t.Fatalf("expected score 40, got %d", s.Score)
	}
}

func TestApplyLevelUpAcrossThousand(t *testing.T) {
	l := LedgerFrom(PlayerStats{Score: 960, Level: 10, TotalAttempts: 20, CorrectAttempts: 18})
	s := l.Apply(Outcome{Correct: true, Points: 50})
	if s.Score != 1010 {
		t.Fatalf("expected score 1010, got %d", s.Score)
	}
	if s.Level != 11 {
		t.Fatalf("expected level 11, got %d", s.Level)
	}
	newly := l.EvaluateAndUnlock()
	found := false
	for _, id := range newly {
		if id == catalog.AchievementScore1000 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected score_1000 in %v", newly)
	}
}

func TestLevelSkipsWhenPointsAreLarge(t *testing.T) {
	l := NewLedger()
	s := l.Apply(Outcome{Correct: true, Points: 250})
	if s.Level != 3 {
		t.Fatalf("expected level 3, got %d", s.Level)
	}
}

func TestLedgerInvariantsHoldOverRandomRounds(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	l := NewLedger()
	prevLevel := 1
	for i := 0; i < 500; i++ {
		prev := l.Snapshot()
		correct := rnd.Intn(2) == 0
		s := l.Apply(Outcome{Correct: correct, Points: rnd.Intn(80)})
		if s.CorrectAttempts > s.TotalAttempts {
			t.Fatalf("round %d: correct %d > total %d", i, s.CorrectAttempts, s.TotalAttempts)
		}
		if s.Accuracy != Accuracy(s.CorrectAttempts, s.TotalAttempts) {
			t.Fatalf("round %d: stale accuracy %d", i, s.Accuracy)
		}
		if correct && s.Streak != prev.Streak+1 {
			t.Fatalf("round %d: streak %d after %d", i, s.Streak, prev.Streak)
		}
		if !correct && s.Streak != 0 {
			t.Fatalf("round %d: streak not reset", i)
		}
		if s.Level < prevLevel || s.Score < (s.Level-1)*100 {
			t.Fatalf("round %d: bad level %d for score %d", i, s.Level, s.Score)
		}
		if s.Score < prev.Score {
			t.Fatalf("round %d: score decreased", i)
		}
		prevLevel = s.Level
	}
}

func TestUnlockIsIdempotent(t *testing.T) {
	l := NewLedger()
	if got := l.Unlock("a", "b"); len(got) != 2 {
		t.Fatalf("expected 2 new, got %v", got)
	}
	if got := l.Unlock("b", "c"); len(got) != 1 || got[0] != "c" {
		t.Fatalf("expected only c, got %v", got)
	}
	s := l.Snapshot()
	if len(s.Unlocked) != 3 || s.Unlocked[0] != "a" || s.Unlocked[2] != "c" {
		t.Fatalf("unexpected unlock order: %v", s.Unlocked)
	}
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	l := NewLedger()
	l.RecordPhase(catalog.PhaseDelivery)
	l.Unlock("x")
	s := l.Snapshot()
	s.PhasesCompleted[catalog.PhaseDelivery] = 99
	s.Unlocked[0] = "y"
	again := l.Snapshot()
	if again.PhasesCompleted[catalog.PhaseDelivery] != 1 || again.Unlocked[0] != "x" {
		t.Fatalf("snapshot aliases ledger state: %+v", again)
	}
}

func TestAccuracy(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{0, 0, 100},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{0, 4, 0},
	}
	for _, tc := range cases {
		if got := Accuracy(tc.correct, tc.total); got != tc.want {
			t.Fatalf("Accuracy(%d, %d) = %d, want %d", tc.correct, tc.total, got, tc.want)
		}
	}
}
