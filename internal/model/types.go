// Package model defines shared data structures.
package model

import "time"

// Difficulty is a content tier. The string value is the wire representation.
type Difficulty string

// Difficulty tiers in ascending order.
const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Expert       Difficulty = "expert"
)

// GameState is the screen the session is on.
type GameState int

// Session states.
const (
	StateWelcome GameState = iota
	StateTutorial
	StatePlaying
	StateMitigationSelect
	StatePhaseFeedback
	StateFinalFeedback
)

func (s GameState) String() string {
	switch s {
	case StateWelcome:
		return "welcome"
	case StateTutorial:
		return "tutorial"
	case StatePlaying:
		return "playing"
	case StateMitigationSelect:
		return "mitigation_select"
	case StatePhaseFeedback:
		return "phase_feedback"
	case StateFinalFeedback:
		return "final_feedback"
	default:
		return "unknown"
	}
}

// Phase is one stage of the attack chain.
type Phase struct {
	ID          string `json:"id,omitempty" toml:"id"`
	Name        string `json:"name" toml:"name"`
	Description string `json:"description" toml:"description"`
	Icon        string `json:"icon,omitempty" toml:"icon"`
}

// Mitigation is a defensive strategy offered after a correct classification.
type Mitigation struct {
	ID            string `json:"id" toml:"id"`
	Name          string `json:"name" toml:"name"`
	Description   string `json:"description" toml:"description"`
	Icon          string `json:"icon,omitempty" toml:"icon"`
	Effectiveness string `json:"effectiveness" toml:"effectiveness"`
}

// Incident is the security event shown to the player.
type Incident struct {
	ID          string
	RawText     string
	SourceLabel string
	Severity    string
	Timestamp   string
	Metadata    map[string]string
}

// FeedbackKind distinguishes feedback payloads.
type FeedbackKind string

// Feedback kinds.
const (
	FeedbackPhaseCorrect   FeedbackKind = "phase_correct"
	FeedbackPhaseIncorrect FeedbackKind = "phase_incorrect"
	FeedbackTimeout        FeedbackKind = "timeout"
	FeedbackFinal          FeedbackKind = "final"
)

// Feedback is the payload attached to a feedback or mitigation screen.
type Feedback struct {
	Kind        FeedbackKind
	Title       string
	Message     string
	Explanation string
	Indicators  []string

	// Set for FeedbackPhaseIncorrect only.
	CorrectPhase string
	PhaseInfo    *Phase

	// Set for FeedbackFinal only.
	IsCorrect             bool
	Points                int
	SelectedEffectiveness string
	BestMitigation        *Mitigation

	// Offline marks outcomes produced by local simulation.
	Offline bool
}

// ShowsCorrectAnswer reports whether the payload discloses the correct phase.
func (f Feedback) ShowsCorrectAnswer() bool {
	return f.Kind == FeedbackPhaseIncorrect && f.CorrectPhase != ""
}

// PlayConfig defines settings for the interactive quiz client.
type PlayConfig struct {
	APIURL        string
	Timeout       time.Duration
	FallbackDelay time.Duration
	Seed          int64
	LogFile       string
	Offline       bool
}

// ServeConfig defines settings for the local content server.
type ServeConfig struct {
	Addr          string
	DBPath        string
	ContentPath   string
	RatePerMinute int
	Burst         int
	Seed          int64
	SessionTTL    time.Duration
}

// BoardConfig defines settings for the leaderboard views.
type BoardConfig struct {
	Limit  int
	Query  string
	Recent int
}

// RoundState is the server-side record of a session's active round.
type RoundState struct {
	SessionID      string
	LogID          string
	CorrectPhase   string
	BestMitigation string
	Difficulty     Difficulty
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RoundResult is one validated mitigation recorded by the server.
type RoundResult struct {
	SessionID  string
	Phase      string
	Mitigation string
	Correct    bool
	Points     int
	RecordedAt time.Time
}

// SessionAggregate summarizes a server-side session for reporting.
type SessionAggregate struct {
	SessionID       string
	CreatedAt       time.Time
	TotalAttempts   int
	CorrectAttempts int
	Score           int
	Streak          int
	PhasesMastered  int
}

// PhaseTally aggregates a session's recorded results for one phase.
type PhaseTally struct {
	Phase    string
	Attempts int
	Correct  int
	Points   int
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank         int
	Session      SessionAggregate
	RecentPoints []int
}
