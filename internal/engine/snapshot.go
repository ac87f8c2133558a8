package engine

import (
	"github.com/verte-zerg/killchain/internal/model"
	"github.com/verte-zerg/killchain/internal/stats"
)

// Snapshot is a read-only copy of everything the presentation layer shows.
type Snapshot struct {
	SessionID        string
	State            model.GameState
	Difficulty       model.Difficulty
	BackendAvailable bool
	Advisory         string
	// Loading is set while round content or an offline round is pending.
	Loading bool
	// Submitting is set while a phase or mitigation is being validated.
	Submitting bool

	Round         Round
	TimeRemaining int
	TimerRunning  bool
	Feedback      *model.Feedback
	Stats         stats.PlayerStats
	NewlyUnlocked []string
}

// Snapshot returns a deep copy of the session's visible state.
func (e *Engine) Snapshot() Snapshot {
	s := Snapshot{
		SessionID:        e.cfg.SessionID,
		State:            e.state,
		Difficulty:       e.difficulty,
		BackendAvailable: e.backendAvailable,
		Advisory:         e.advisory,
		Loading:          e.loading(),
		Submitting:       e.submitting(),
		Round:            cloneRound(e.round),
		TimeRemaining:    e.timer.Remaining(),
		TimerRunning:     e.timer.Running(),
		Stats:            e.ledger.Snapshot(),
		NewlyUnlocked:    cloneStrings(e.newlyUnlocked),
	}
	if e.feedback != nil {
		fb := cloneFeedback(*e.feedback)
		s.Feedback = &fb
	}
	return s
}

func cloneRound(r Round) Round {
	out := r
	out.Incident.Metadata = cloneMetadata(r.Incident.Metadata)
	out.Phases = clonePhases(r.Phases)
	out.MitigationOptions = cloneMitigations(r.MitigationOptions)
	return out
}

func cloneFeedback(f model.Feedback) model.Feedback {
	out := f
	out.Indicators = cloneStrings(f.Indicators)
	if f.PhaseInfo != nil {
		p := *f.PhaseInfo
		out.PhaseInfo = &p
	}
	if f.BestMitigation != nil {
		m := *f.BestMitigation
		out.BestMitigation = &m
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func clonePhases(in []model.Phase) []model.Phase {
	if in == nil {
		return nil
	}
	out := make([]model.Phase, len(in))
	copy(out, in)
	return out
}

func cloneMitigations(in []model.Mitigation) []model.Mitigation {
	if in == nil {
		return nil
	}
	out := make([]model.Mitigation, len(in))
	copy(out, in)
	return out
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
