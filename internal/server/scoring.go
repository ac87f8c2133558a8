package server

import (
	"math"

	"github.com/verte-zerg/killchain/internal/difficulty"
	"github.com/verte-zerg/killchain/internal/model"
)

const (
	timeBonusRate    = 0.5
	maxTimeRemaining = 300
)

// Points scores a validated mitigation: the tier's base points for reaching
// the mitigation step, plus the base again and a time bonus when the choice
// is effective.
func Points(d model.Difficulty, timeRemaining int, correct bool) int {
	base := difficulty.ProfileFor(d).BasePoints
	points := base
	if correct {
		if timeRemaining < 0 {
			timeRemaining = 0
		}
		points += base + int(math.Floor(float64(timeRemaining)*timeBonusRate))
	}
	return points
}
