package model

// Wire types for the remote content source. Pointer fields mark values whose
// absence makes a response malformed.

// StatsPayload carries the player's rolling performance.
type StatsPayload struct {
	Score    int `json:"score"`
	Streak   int `json:"streak"`
	Accuracy int `json:"accuracy"`
}

// LogRequest asks for new round content.
type LogRequest struct {
	SessionID  string       `json:"session_id"`
	Difficulty Difficulty   `json:"difficulty"`
	Stats      StatsPayload `json:"stats"`
}

// LogPayload is the incident as sent over the wire.
type LogPayload struct {
	ID        string         `json:"id"`
	Raw       string         `json:"raw"`
	Source    string         `json:"source"`
	Severity  string         `json:"severity"`
	Timestamp string         `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// LogResponse is the reply to LogRequest.
type LogResponse struct {
	Log        *LogPayload `json:"log"`
	TimeLimit  *int        `json:"time_limit"`
	Difficulty Difficulty  `json:"difficulty,omitempty"`
}

// PhaseRequest submits a phase classification.
type PhaseRequest struct {
	SessionID     string `json:"session_id"`
	SelectedPhase string `json:"selected_phase"`
}

// PhaseResponse is the reply to PhaseRequest.
type PhaseResponse struct {
	IsCorrect            *bool        `json:"is_correct"`
	MitigationStrategies []Mitigation `json:"mitigation_strategies,omitempty"`
	Explanation          string       `json:"explanation,omitempty"`
	Indicators           []string     `json:"indicators,omitempty"`
	CorrectPhase         string       `json:"correct_phase,omitempty"`
	PhaseInfo            *Phase       `json:"phase_info,omitempty"`
}

// MitigationRequest submits a mitigation choice.
type MitigationRequest struct {
	SessionID          string     `json:"session_id"`
	SelectedMitigation string     `json:"selected_mitigation"`
	TimeRemaining      int        `json:"time_remaining"`
	Difficulty         Difficulty `json:"difficulty"`
}

// MitigationResponse is the reply to MitigationRequest.
type MitigationResponse struct {
	IsCorrect             *bool       `json:"is_correct"`
	Points                *int        `json:"points"`
	SelectedEffectiveness string      `json:"selected_effectiveness,omitempty"`
	BestMitigation        *Mitigation `json:"best_mitigation,omitempty"`
}

// SessionRequest identifies a session for statistics and reset calls.
type SessionRequest struct {
	SessionID string `json:"session_id"`
}

// StatisticsResponse reports server-side session statistics.
type StatisticsResponse struct {
	TotalGames     int     `json:"total_games"`
	CorrectAnswers int     `json:"correct_answers"`
	CurrentScore   int     `json:"current_score"`
	CurrentStreak  int     `json:"current_streak"`
	Accuracy       float64 `json:"accuracy"`
	SessionCreated string  `json:"session_created"`
}

// LeaderboardRow is one leaderboard entry on the wire.
type LeaderboardRow struct {
	Rank    int    `json:"rank"`
	Name    string `json:"name"`
	Score   int    `json:"score"`
	Mastery string `json:"mastery"`
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

// LeaderboardResponse is the reply to a leaderboard query.
type LeaderboardResponse struct {
	Leaderboard []LeaderboardRow `json:"leaderboard"`
}

// PhasesResponse lists the attack-chain phases.
type PhasesResponse struct {
	Phases []Phase `json:"phases"`
}

// HealthResponse reports server liveness.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Game      string `json:"game"`
}

// ResetResponse is the reply to a session reset.
type ResetResponse struct {
	Success bool `json:"success"`
	Reset   bool `json:"reset"`
}
