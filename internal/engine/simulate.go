package engine

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/verte-zerg/killchain/internal/model"
)

// Offline outcomes are drawn against these thresholds: a phase answer is
// correct when Float64 exceeds phaseFailure (70% success), a mitigation when
// it exceeds mitigationFailure (60%).
const (
	phaseFailure      = 0.3
	mitigationFailure = 0.4

	offlineCorrectBase   = 25
	offlineTimeBonusRate = 0.5
	offlineIncorrect     = 5
)

type phaseOutcome struct {
	correct      bool
	correctPhase string
}

type mitigationOutcome struct {
	correct bool
	points  int
}

func simulatePhase(rnd *rand.Rand, selected, incidentPhase string, selectable, all []model.Phase) phaseOutcome {
	if rnd.Float64() > phaseFailure || (incidentPhase != "" && selected == incidentPhase) {
		return phaseOutcome{correct: true}
	}
	return phaseOutcome{correctPhase: disclosedPhase(selected, incidentPhase, selectable, all)}
}

func simulateMitigation(rnd *rand.Rand, timeRemaining int) mitigationOutcome {
	if rnd.Float64() > mitigationFailure {
		return mitigationOutcome{correct: true, points: offlinePoints(timeRemaining)}
	}
	return mitigationOutcome{points: offlineIncorrect}
}

func offlinePoints(timeRemaining int) int {
	if timeRemaining < 0 {
		timeRemaining = 0
	}
	return offlineCorrectBase + int(math.Floor(float64(timeRemaining)*offlineTimeBonusRate))
}

// disclosedPhase picks the phase revealed after a simulated wrong answer:
// the incident's own phase when known, else the first selectable phase that
// differs from the answer.
func disclosedPhase(selected, incidentPhase string, selectable, all []model.Phase) string {
	if incidentPhase != "" && incidentPhase != selected {
		return incidentPhase
	}
	for _, phases := range [][]model.Phase{selectable, all} {
		for _, p := range phases {
			if p.ID != selected {
				return p.ID
			}
		}
	}
	return ""
}

func findPhase(phases []model.Phase, id string) (model.Phase, bool) {
	for _, p := range phases {
		if p.ID == id {
			return p, true
		}
	}
	return model.Phase{}, false
}

func phaseName(phases []model.Phase, id string) string {
	if p, ok := findPhase(phases, id); ok {
		return p.Name
	}
	if id == "" {
		return "unknown"
	}
	return id
}

func offlinePhaseCorrect(phases []model.Phase, phase string) model.Feedback {
	return model.Feedback{
		Kind:        model.FeedbackPhaseCorrect,
		Title:       "Correct!",
		Message:     fmt.Sprintf("You identified the %s phase. Choose the best mitigation.", phaseName(phases, phase)),
		Explanation: "Offline mode: this answer was scored locally.",
		Offline:     true,
	}
}

func offlinePhaseIncorrect(phases []model.Phase, correctPhase string) model.Feedback {
	f := model.Feedback{
		Kind:         model.FeedbackPhaseIncorrect,
		Title:        "Incorrect",
		Message:      fmt.Sprintf("This incident belongs to the %s phase.", phaseName(phases, correctPhase)),
		Explanation:  "Offline mode: look for the indicators that place the activity in the attack chain.",
		CorrectPhase: correctPhase,
		Offline:      true,
	}
	if p, ok := findPhase(phases, correctPhase); ok {
		f.PhaseInfo = &p
	}
	return f
}

func timeoutFeedback() model.Feedback {
	return model.Feedback{
		Kind:        model.FeedbackTimeout,
		Title:       "Time's up!",
		Message:     "The round expired before a phase was submitted.",
		Explanation: "Tip: read the log source and the action it describes first; together they usually point at the phase.",
	}
}
