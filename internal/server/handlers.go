package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/difficulty"
	"github.com/verte-zerg/killchain/internal/model"
	"github.com/verte-zerg/killchain/internal/stats"
	"github.com/verte-zerg/killchain/internal/store"
)

const (
	maxBodyBytes      = 1 << 20
	defaultBoardLimit = 10
	maxBoardLimit     = 100
	gameName          = "Kill Chain Defender"
	errNoActiveRound  = "no active round for session"
	errInvalidSession = "invalid session_id"
	errRateLimited    = "rate limit exceeded"
	errInternal       = "internal server error"
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{5,64}$`)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, model.HealthResponse{
		Status:    "healthy",
		Timestamp: s.now().UTC().Format(time.RFC3339),
		Game:      gameName,
	})
}

func (s *Server) handlePhases(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, model.PhasesResponse{Phases: catalog.Phases()})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultBoardLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxBoardLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	sessions, err := s.store.Leaderboard(r.Context(), limit)
	if err != nil {
		s.internalError(w, "leaderboard", err)
		return
	}
	rows := make([]model.LeaderboardRow, 0, len(sessions))
	for i, agg := range sessions {
		rows = append(rows, model.LeaderboardRow{
			Rank:    i + 1,
			Name:    agg.SessionID,
			Score:   agg.Score,
			Mastery: stats.MasteryLabel(agg.PhasesMastered),
		})
	}
	s.writeJSON(w, http.StatusOK, model.LeaderboardResponse{Leaderboard: rows})
}

func (s *Server) handleGetLog(w http.ResponseWriter, r *http.Request) {
	var req model.LogRequest
	if !s.decode(w, r, &req) || !s.admit(w, req.SessionID) {
		return
	}
	requested, ok := parseDifficulty(req.Difficulty)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid difficulty")
		return
	}
	dynamic := difficulty.For(float64(req.Stats.Score), float64(req.Stats.Streak), float64(req.Stats.Accuracy))
	tier := difficulty.Max(requested, dynamic)

	previous := ""
	if round, err := s.store.GetRound(r.Context(), req.SessionID); err == nil {
		previous = round.LogID
	} else if !errors.Is(err, store.ErrNotFound) {
		s.internalError(w, "get round", err)
		return
	}

	inc, ok := s.gen.Pick(s.content.IncidentsForPhases(difficulty.AllowedPhaseIDs(tier)), previous)
	if !ok {
		s.internalError(w, "pick incident", errors.New("no incidents for tier "+string(tier)))
		return
	}
	best, _ := catalog.BestMitigation(s.content.MitigationsFor(inc.Phase))
	err := s.store.UpsertRound(r.Context(), model.RoundState{
		SessionID:      req.SessionID,
		LogID:          inc.ID,
		CorrectPhase:   inc.Phase,
		BestMitigation: best.ID,
		Difficulty:     tier,
		UpdatedAt:      s.now(),
	})
	if err != nil {
		s.internalError(w, "upsert round", err)
		return
	}
	s.log.Info("log generated", "session_id", req.SessionID, "log_id", inc.ID, "difficulty", tier, "requested", requested)

	payload := inc.Payload()
	limit := int(difficulty.ProfileFor(tier).TimeLimit / time.Second)
	s.writeJSON(w, http.StatusOK, model.LogResponse{
		Log:        &payload,
		TimeLimit:  &limit,
		Difficulty: tier,
	})
}

func (s *Server) handleValidatePhase(w http.ResponseWriter, r *http.Request) {
	var req model.PhaseRequest
	if !s.decode(w, r, &req) || !s.admit(w, req.SessionID) {
		return
	}
	if _, ok := catalog.PhaseByID(req.SelectedPhase); !ok {
		s.writeError(w, http.StatusBadRequest, "invalid selected_phase")
		return
	}
	round, ok := s.activeRound(w, r, req.SessionID)
	if !ok {
		return
	}
	inc, _ := s.content.IncidentByID(round.LogID)

	correct := req.SelectedPhase == round.CorrectPhase
	resp := model.PhaseResponse{
		IsCorrect:   &correct,
		Explanation: inc.Explanation,
		Indicators:  inc.Indicators,
	}
	if correct {
		resp.MitigationStrategies = s.content.MitigationsFor(round.CorrectPhase)
	} else {
		resp.CorrectPhase = round.CorrectPhase
		if info, ok := catalog.PhaseByID(round.CorrectPhase); ok {
			resp.PhaseInfo = &info
		}
	}
	s.log.Info("phase validated", "session_id", req.SessionID, "selected", req.SelectedPhase, "correct", correct)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidateMitigation(w http.ResponseWriter, r *http.Request) {
	var req model.MitigationRequest
	if !s.decode(w, r, &req) || !s.admit(w, req.SessionID) {
		return
	}
	if req.SelectedMitigation == "" {
		s.writeError(w, http.StatusBadRequest, "invalid selected_mitigation")
		return
	}
	if req.TimeRemaining < 0 || req.TimeRemaining > maxTimeRemaining {
		s.writeError(w, http.StatusBadRequest, "time_remaining must be between 0 and 300")
		return
	}
	tier, ok := parseDifficulty(req.Difficulty)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid difficulty")
		return
	}
	round, ok := s.activeRound(w, r, req.SessionID)
	if !ok {
		return
	}
	if req.Difficulty == "" {
		tier = difficulty.Parse(string(round.Difficulty))
	}

	options := s.content.MitigationsFor(round.CorrectPhase)
	var selected *model.Mitigation
	var best *model.Mitigation
	for i := range options {
		if options[i].ID == req.SelectedMitigation {
			selected = &options[i]
		}
		if options[i].ID == round.BestMitigation {
			best = &options[i]
		}
	}
	if selected == nil {
		s.writeError(w, http.StatusBadRequest, "invalid selected_mitigation")
		return
	}

	correct := catalog.IsEffective(selected.Effectiveness)
	points := Points(tier, req.TimeRemaining, correct)
	err := s.store.RecordResult(r.Context(), model.RoundResult{
		SessionID:  req.SessionID,
		Phase:      round.CorrectPhase,
		Mitigation: selected.ID,
		Correct:    correct,
		Points:     points,
		RecordedAt: s.now(),
	})
	if err != nil {
		s.internalError(w, "record result", err)
		return
	}
	s.log.Info("mitigation validated", "session_id", req.SessionID, "selected", selected.ID, "correct", correct, "points", points)
	s.writeJSON(w, http.StatusOK, model.MitigationResponse{
		IsCorrect:             &correct,
		Points:                &points,
		SelectedEffectiveness: selected.Effectiveness,
		BestMitigation:        best,
	})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if !s.decode(w, r, &req) || !s.admit(w, req.SessionID) {
		return
	}
	agg, err := s.store.SessionStats(r.Context(), req.SessionID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeJSON(w, http.StatusOK, model.StatisticsResponse{Accuracy: 100})
		return
	}
	if err != nil {
		s.internalError(w, "session stats", err)
		return
	}
	accuracy := 100.0
	if agg.TotalAttempts > 0 {
		accuracy = math.Round(float64(agg.CorrectAttempts)/float64(agg.TotalAttempts)*10000) / 100
	}
	s.writeJSON(w, http.StatusOK, model.StatisticsResponse{
		TotalGames:     agg.TotalAttempts,
		CorrectAnswers: agg.CorrectAttempts,
		CurrentScore:   agg.Score,
		CurrentStreak:  agg.Streak,
		Accuracy:       accuracy,
		SessionCreated: agg.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req model.SessionRequest
	if !s.decode(w, r, &req) || !s.admit(w, req.SessionID) {
		return
	}
	existed := true
	if _, err := s.store.SessionStats(r.Context(), req.SessionID); errors.Is(err, store.ErrNotFound) {
		existed = false
	} else if err != nil {
		s.internalError(w, "session stats", err)
		return
	}
	if err := s.store.DeleteSession(r.Context(), req.SessionID); err != nil {
		s.internalError(w, "delete session", err)
		return
	}
	s.log.Info("session reset", "session_id", req.SessionID, "existed", existed)
	s.writeJSON(w, http.StatusOK, model.ResetResponse{Success: true, Reset: existed})
}

// admit validates the session id and applies the per-session throttle.
func (s *Server) admit(w http.ResponseWriter, sessionID string) bool {
	if !sessionIDPattern.MatchString(sessionID) {
		s.writeError(w, http.StatusBadRequest, errInvalidSession)
		return false
	}
	if !s.limiters.allow(sessionID) {
		s.log.Warn("rate limited", "session_id", sessionID)
		s.writeError(w, http.StatusTooManyRequests, errRateLimited)
		return false
	}
	return true
}

func (s *Server) activeRound(w http.ResponseWriter, r *http.Request, sessionID string) (model.RoundState, bool) {
	round, err := s.store.GetRound(r.Context(), sessionID)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, errNoActiveRound)
		return model.RoundState{}, false
	}
	if err != nil {
		s.internalError(w, "get round", err)
		return model.RoundState{}, false
	}
	return round, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		s.writeError(w, http.StatusBadRequest, "Content-Type must be application/json")
		return false
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, model.ErrorResponse{
		Success:   false,
		Error:     message,
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	s.log.Error(op, "error", err)
	s.writeError(w, http.StatusInternalServerError, errInternal)
}

// parseDifficulty accepts an empty tier as beginner and rejects unknown ones.
func parseDifficulty(d model.Difficulty) (model.Difficulty, bool) {
	raw := strings.ToLower(strings.TrimSpace(string(d)))
	if raw == "" {
		return model.Beginner, true
	}
	parsed := difficulty.Parse(raw)
	return parsed, string(parsed) == raw
}
