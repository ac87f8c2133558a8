package stats

import "github.com/verte-zerg/killchain/internal/catalog"

const (
	phaseMasterRepeats = 3
	phaseMasterPhases  = 4
)

// Evaluate returns the achievements whose predicates hold for s, in
// evaluation order. It does not consult what is already unlocked.
func Evaluate(s PlayerStats) []string {
	var ids []string
	if s.Streak == 5 {
		ids = append(ids, catalog.AchievementStreak5)
	}
	if s.Streak == 10 {
		ids = append(ids, catalog.AchievementStreak10)
	}
	if s.Score >= 500 {
		ids = append(ids, catalog.AchievementScore500)
	}
	if s.Score >= 1000 {
		ids = append(ids, catalog.AchievementScore1000)
	}
	if len(MasteredPhases(s.PhasesCompleted, phaseMasterRepeats)) >= phaseMasterPhases {
		ids = append(ids, catalog.AchievementPhaseMaster)
	}
	return ids
}

// EvaluateAndUnlock evaluates the ledger's current stats and unlocks the
// results, returning only the newly unlocked ids.
func (l *Ledger) EvaluateAndUnlock() []string {
	return l.Unlock(Evaluate(l.stats)...)
}
