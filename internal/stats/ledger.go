// Package stats contains the player ledger, achievement evaluation and
// leaderboard reporting.
package stats

import (
	"math"
	"sort"
)

// PlayerStats is the cumulative performance of one session.
type PlayerStats struct {
	Score           int
	Streak          int
	Level           int
	TotalAttempts   int
	CorrectAttempts int
	Accuracy        int
	PhasesCompleted map[string]int
	// Unlocked lists achievement ids in unlock order.
	Unlocked []string
}

// Outcome is the result of one scored round.
type Outcome struct {
	Correct bool
	Points  int
}

// Ledger owns a session's PlayerStats. All counters change together in
// Apply; nothing else writes them.
type Ledger struct {
	stats    PlayerStats
	unlocked map[string]struct{}
}

// NewLedger returns a ledger at level 1 with no attempts.
func NewLedger() *Ledger {
	return LedgerFrom(PlayerStats{})
}

// LedgerFrom restores a ledger from a snapshot. Level and accuracy are
// normalised so the usual invariants hold.
func LedgerFrom(s PlayerStats) *Ledger {
	l := &Ledger{unlocked: make(map[string]struct{})}
	if s.Score < 0 {
		s.Score = 0
	}
	if s.Streak < 0 {
		s.Streak = 0
	}
	if s.TotalAttempts < 0 {
		s.TotalAttempts = 0
	}
	if s.CorrectAttempts < 0 {
		s.CorrectAttempts = 0
	}
	if s.CorrectAttempts > s.TotalAttempts {
		s.CorrectAttempts = s.TotalAttempts
	}
	if s.Level < 1 {
		s.Level = 1
	}
	s.Level = levelFor(s.Score, s.Level)
	s.Accuracy = Accuracy(s.CorrectAttempts, s.TotalAttempts)
	s.PhasesCompleted = copyCounts(s.PhasesCompleted)
	unlocked := s.Unlocked
	s.Unlocked = nil
	l.stats = s
	l.Unlock(unlocked...)
	return l
}

// Apply records one round outcome as a single transaction and returns the
// updated stats. Negative points are treated as zero.
func (l *Ledger) Apply(o Outcome) PlayerStats {
	points := o.Points
	if points < 0 {
		points = 0
	}
	s := l.stats
	s.Score += points
	s.TotalAttempts++
	if o.Correct {
		s.CorrectAttempts++
		s.Streak++
	} else {
		s.Streak = 0
	}
	s.Accuracy = Accuracy(s.CorrectAttempts, s.TotalAttempts)
	s.Level = levelFor(s.Score, s.Level)
	l.stats = s
	return l.Snapshot()
}

// RecordPhase counts a correct classification of phase.
func (l *Ledger) RecordPhase(phase string) {
	if phase == "" {
		return
	}
	if l.stats.PhasesCompleted == nil {
		l.stats.PhasesCompleted = make(map[string]int)
	}
	l.stats.PhasesCompleted[phase]++
}

// Unlock adds achievements and returns the ids that were not already
// unlocked, in argument order.
func (l *Ledger) Unlock(ids ...string) []string {
	var added []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := l.unlocked[id]; ok {
			continue
		}
		l.unlocked[id] = struct{}{}
		l.stats.Unlocked = append(l.stats.Unlocked, id)
		added = append(added, id)
	}
	return added
}

// Has reports whether an achievement is unlocked.
func (l *Ledger) Has(id string) bool {
	_, ok := l.unlocked[id]
	return ok
}

// Snapshot returns a deep copy of the current stats.
func (l *Ledger) Snapshot() PlayerStats {
	s := l.stats
	s.PhasesCompleted = copyCounts(l.stats.PhasesCompleted)
	if l.stats.Unlocked != nil {
		s.Unlocked = make([]string, len(l.stats.Unlocked))
		copy(s.Unlocked, l.stats.Unlocked)
	}
	return s
}

// Accuracy returns round(100*correct/total), or 100 with no attempts.
func Accuracy(correct, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// MasteredPhases returns the phases classified correctly at least min
// times, sorted.
func MasteredPhases(counts map[string]int, min int) []string {
	var out []string
	for phase, n := range counts {
		if n >= min {
			out = append(out, phase)
		}
	}
	sort.Strings(out)
	return out
}

func levelFor(score, level int) int {
	for score >= level*100 {
		level++
	}
	return level
}

func copyCounts(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
