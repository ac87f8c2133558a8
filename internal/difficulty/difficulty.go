// Package difficulty maps rolling player performance to a content tier.
package difficulty

import (
	"math"
	"strings"
	"time"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/model"
)

const (
	scoreWeight    = 0.3
	streakWeight   = 10.0
	accuracyWeight = 0.4

	intermediateThreshold = 50.0
	expertThreshold       = 150.0
)

// Profile holds the per-tier round parameters.
type Profile struct {
	Phases     int
	TimeLimit  time.Duration
	BasePoints int
}

var profiles = map[model.Difficulty]Profile{
	model.Beginner:     {Phases: 3, TimeLimit: 60 * time.Second, BasePoints: 10},
	model.Intermediate: {Phases: 5, TimeLimit: 40 * time.Second, BasePoints: 25},
	model.Expert:       {Phases: 7, TimeLimit: 30 * time.Second, BasePoints: 50},
}

// PerformanceScore returns 0.3*score + 10*streak + 0.4*accuracy. Non-finite
// or negative inputs count as zero.
func PerformanceScore(score, streak, accuracy float64) float64 {
	return scoreWeight*sanitize(score) + streakWeight*sanitize(streak) + accuracyWeight*sanitize(accuracy)
}

// For returns the tier for the given performance. It never fails; malformed
// input yields Beginner.
func For(score, streak, accuracy float64) model.Difficulty {
	return Tier(PerformanceScore(score, streak, accuracy))
}

// Tier maps a performance score to a tier.
func Tier(perf float64) model.Difficulty {
	switch {
	case math.IsNaN(perf) || math.IsInf(perf, 0):
		return model.Beginner
	case perf < intermediateThreshold:
		return model.Beginner
	case perf < expertThreshold:
		return model.Intermediate
	default:
		return model.Expert
	}
}

// ProfileFor returns the round parameters of a tier. Unknown tiers use the
// beginner profile.
func ProfileFor(d model.Difficulty) Profile {
	if p, ok := profiles[d]; ok {
		return p
	}
	return profiles[model.Beginner]
}

// Parse normalises a tier name. Unknown names map to Beginner.
func Parse(value string) model.Difficulty {
	d := model.Difficulty(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := profiles[d]; ok {
		return d
	}
	return model.Beginner
}

// Rank orders tiers; Beginner is 0.
func Rank(d model.Difficulty) int {
	switch d {
	case model.Intermediate:
		return 1
	case model.Expert:
		return 2
	default:
		return 0
	}
}

// Max returns the higher of two tiers.
func Max(a, b model.Difficulty) model.Difficulty {
	if Rank(b) > Rank(a) {
		return b
	}
	return a
}

// AllowedPhases returns the leading phases selectable at a tier.
func AllowedPhases(d model.Difficulty, phases []model.Phase) []model.Phase {
	n := ProfileFor(d).Phases
	if n > len(phases) {
		n = len(phases)
	}
	out := make([]model.Phase, n)
	copy(out, phases[:n])
	return out
}

// AllowedPhaseIDs is AllowedPhases over the built-in catalog.
func AllowedPhaseIDs(d model.Difficulty) []string {
	phases := AllowedPhases(d, catalog.Phases())
	ids := make([]string, len(phases))
	for i, p := range phases {
		ids[i] = p.ID
	}
	return ids
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
