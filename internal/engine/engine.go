// Package engine implements the quiz session: round lifecycle, the round
// timer, remote validation with offline fallback, and player bookkeeping.
//
// The engine runs on a Bubble Tea event loop. Actions return a tea.Cmd that
// performs the blocking work; its result comes back as a message that must be
// passed to Update. All state changes happen inside actions and Update.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/client"
	"github.com/verte-zerg/killchain/internal/difficulty"
	"github.com/verte-zerg/killchain/internal/model"
	"github.com/verte-zerg/killchain/internal/stats"
)

const (
	defaultTimeout       = 5 * time.Second
	defaultFallbackDelay = time.Second

	advisoryOffline   = "Server unreachable. Playing in offline mode."
	advisoryMalformed = "Server sent an unexpected reply. Playing in offline mode."
	advisoryRejected  = "Server rejected the request. Playing in offline mode."
)

// Config is injected into a session at construction.
type Config struct {
	// SessionID is sent with every request. Empty generates one.
	SessionID string
	// Source is the remote content source. Nil plays offline only.
	Source ContentSource
	// Timeout bounds each request.
	Timeout time.Duration
	// FallbackDelay is the pause before an offline round replaces a failed
	// content request.
	FallbackDelay time.Duration
	// TickInterval is the Round Timer granularity; defaults to one second.
	TickInterval time.Duration
	// Rand drives offline simulation and fallback selection.
	Rand    *rand.Rand
	Catalog catalog.Catalog
	Logger  *slog.Logger
}

// Round is the content and selections of the active round.
type Round struct {
	Incident model.Incident
	// IncidentPhase is the true phase when the incident came from the
	// fallback catalog.
	IncidentPhase      string
	TimeLimit          int
	Phases             []model.Phase
	SelectedPhase      string
	SelectedMitigation string
	MitigationOptions  []model.Mitigation
	Offline            bool
}

// Engine is one quiz session. It is not safe for concurrent use; drive it
// from a single event loop.
type Engine struct {
	cfg Config
	log *slog.Logger
	rnd *rand.Rand

	state            model.GameState
	difficulty       model.Difficulty
	backendAvailable bool
	advisory         string

	round         Round
	timer         Timer
	feedback      *model.Feedback
	ledger        *stats.Ledger
	newlyUnlocked []string

	pending *request
	lastReq int
}

// New creates a session on the welcome screen.
func New(cfg Config) *Engine {
	if cfg.SessionID == "" {
		cfg.SessionID = NewSessionID()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.FallbackDelay <= 0 {
		cfg.FallbackDelay = defaultFallbackDelay
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if len(cfg.Catalog.Phases) == 0 {
		cfg.Catalog = catalog.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Engine{
		cfg:              cfg,
		log:              logger.With("session_id", cfg.SessionID),
		rnd:              cfg.Rand,
		state:            model.StateWelcome,
		difficulty:       model.Beginner,
		backendAvailable: cfg.Source != nil,
		timer:            NewTimer(cfg.TickInterval),
		ledger:           stats.NewLedger(),
	}
}

// NewSessionID returns an identifier accepted by the content server.
func NewSessionID() string {
	return "session_" + uuid.NewString()
}

// SessionID returns the session identifier.
func (e *Engine) SessionID() string {
	return e.cfg.SessionID
}

// State returns the current screen.
func (e *Engine) State() model.GameState {
	return e.state
}

// OpenTutorial moves from the welcome screen to the tutorial.
func (e *Engine) OpenTutorial() error {
	if e.state != model.StateWelcome {
		return ErrInvalidTransition
	}
	e.state = model.StateTutorial
	return nil
}

// CloseTutorial returns from the tutorial to the welcome screen.
func (e *Engine) CloseTutorial() error {
	if e.state != model.StateTutorial {
		return ErrInvalidTransition
	}
	e.state = model.StateWelcome
	return nil
}

// DismissAdvisory clears the transient advisory message.
func (e *Engine) DismissAdvisory() {
	e.advisory = ""
}

// StartRound requests new round content, superseding any content request
// still in flight. The round begins when the returned command's message is
// passed to Update.
func (e *Engine) StartRound() (tea.Cmd, error) {
	switch e.state {
	case model.StatePlaying, model.StateMitigationSelect:
		return nil, ErrInvalidTransition
	}
	if e.submitting() {
		return nil, ErrBusy
	}
	e.cancelPending()
	e.timer.Stop()
	e.round.SelectedPhase = ""
	e.round.SelectedMitigation = ""
	e.round.MitigationOptions = nil

	s := e.ledger.Snapshot()
	e.difficulty = difficulty.For(float64(s.Score), float64(s.Streak), float64(s.Accuracy))

	if e.cfg.Source == nil {
		return e.scheduleFallback(errNoSource), nil
	}

	req := model.LogRequest{
		SessionID:  e.cfg.SessionID,
		Difficulty: e.difficulty,
		Stats:      model.StatsPayload{Score: s.Score, Streak: s.Streak, Accuracy: s.Accuracy},
	}
	ctx, r := e.begin(kindContent)
	src := e.cfg.Source
	e.log.Debug("requesting round", "request_id", r.id, "difficulty", e.difficulty)
	return func() tea.Msg {
		resp, err := src.GetLog(ctx, req)
		return contentMsg{id: r.id, resp: resp, err: err}
	}, nil
}

// SelectPhase records the phase answer for the active round.
func (e *Engine) SelectPhase(id string) error {
	if e.state != model.StatePlaying {
		return ErrInvalidTransition
	}
	if e.submitting() {
		return ErrBusy
	}
	if _, ok := findPhase(e.round.Phases, id); !ok {
		return ErrUnknownPhase
	}
	e.round.SelectedPhase = id
	return nil
}

// SelectMitigation records the mitigation answer for the active round.
func (e *Engine) SelectMitigation(id string) error {
	if e.state != model.StateMitigationSelect {
		return ErrInvalidTransition
	}
	if e.submitting() {
		return ErrBusy
	}
	if _, ok := findMitigation(e.round.MitigationOptions, id); !ok {
		return ErrUnknownMitigation
	}
	e.round.SelectedMitigation = id
	return nil
}

// SubmitPhase pauses the timer and validates the selected phase, online
// when the backend is available and by local simulation otherwise.
func (e *Engine) SubmitPhase() (tea.Cmd, error) {
	if e.state != model.StatePlaying {
		return nil, ErrInvalidTransition
	}
	if e.submitting() {
		return nil, ErrBusy
	}
	selected := e.round.SelectedPhase
	if selected == "" {
		return nil, ErrNoSelection
	}
	e.timer.Pause()

	if !e.backendAvailable || e.cfg.Source == nil {
		e.simulatePhase(selected)
		return nil, nil
	}

	req := model.PhaseRequest{SessionID: e.cfg.SessionID, SelectedPhase: selected}
	ctx, r := e.begin(kindPhase)
	src := e.cfg.Source
	return func() tea.Msg {
		resp, err := src.ValidatePhase(ctx, req)
		return phaseResultMsg{id: r.id, selected: selected, resp: resp, err: err}
	}, nil
}

// SubmitMitigation validates the selected mitigation and scores the round.
func (e *Engine) SubmitMitigation() (tea.Cmd, error) {
	if e.state != model.StateMitigationSelect {
		return nil, ErrInvalidTransition
	}
	if e.submitting() {
		return nil, ErrBusy
	}
	selected := e.round.SelectedMitigation
	if selected == "" {
		return nil, ErrNoSelection
	}
	remaining := e.timer.Remaining()

	if !e.backendAvailable || e.cfg.Source == nil {
		e.simulateMitigation(selected, remaining)
		return nil, nil
	}

	req := model.MitigationRequest{
		SessionID:          e.cfg.SessionID,
		SelectedMitigation: selected,
		TimeRemaining:      remaining,
		Difficulty:         e.difficulty,
	}
	ctx, r := e.begin(kindMitigation)
	src := e.cfg.Source
	return func() tea.Msg {
		resp, err := src.ValidateMitigation(ctx, req)
		return mitigationResultMsg{id: r.id, selected: selected, resp: resp, err: err}
	}, nil
}

// Shutdown cancels the outstanding request and the timer.
func (e *Engine) Shutdown() {
	e.cancelPending()
	e.timer.Stop()
}

// Update applies asynchronous results. Messages it does not own are
// ignored.
func (e *Engine) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		return e.handleTick(msg)
	case contentMsg:
		return e.handleContent(msg)
	case fallbackRoundMsg:
		return e.handleFallbackRound(msg)
	case phaseResultMsg:
		e.handlePhaseResult(msg)
	case mitigationResultMsg:
		e.handleMitigationResult(msg)
	}
	return nil
}

func (e *Engine) handleTick(msg TickMsg) tea.Cmd {
	expired, cmd := e.timer.Update(msg)
	if !expired {
		return cmd
	}
	if e.state != model.StatePlaying || e.submitting() {
		return nil
	}
	e.ledger.Apply(stats.Outcome{Correct: false})
	fb := timeoutFeedback()
	e.feedback = &fb
	e.newlyUnlocked = nil
	e.state = model.StatePhaseFeedback
	e.log.Info("round timed out", "incident", e.round.Incident.ID)
	return nil
}

func (e *Engine) handleContent(msg contentMsg) tea.Cmd {
	if !e.claim(msg.id, kindContent) {
		return nil
	}
	if errors.Is(msg.err, context.Canceled) {
		return nil
	}
	if msg.err != nil {
		return e.scheduleFallback(msg.err)
	}
	e.markOnline()
	// The source may escalate the locally computed tier but never lower it.
	if d := msg.resp.Difficulty; d != "" && difficulty.Parse(string(d)) == d {
		e.difficulty = difficulty.Max(e.difficulty, d)
	}
	limit := *msg.resp.TimeLimit
	if limit <= 0 {
		limit = int(difficulty.ProfileFor(e.difficulty).TimeLimit / time.Second)
	}
	return e.beginRound(Round{
		Incident:  client.Incident(*msg.resp.Log),
		TimeLimit: limit,
	})
}

func (e *Engine) handleFallbackRound(msg fallbackRoundMsg) tea.Cmd {
	if !e.claim(msg.id, kindFallback) {
		return nil
	}
	fi, ok := e.pickFallbackIncident()
	if !ok {
		e.log.Error("fallback catalog is empty")
		return nil
	}
	return e.beginRound(Round{
		Incident:      fi.Incident,
		IncidentPhase: fi.Phase,
		TimeLimit:     int(difficulty.ProfileFor(e.difficulty).TimeLimit / time.Second),
		Offline:       true,
	})
}

func (e *Engine) handlePhaseResult(msg phaseResultMsg) {
	if !e.claim(msg.id, kindPhase) {
		return
	}
	if errors.Is(msg.err, context.Canceled) {
		return
	}
	if msg.err != nil {
		e.markOffline(msg.err)
		e.simulatePhase(msg.selected)
		return
	}
	resp := msg.resp
	if *resp.IsCorrect {
		options := resp.MitigationStrategies
		if len(options) == 0 {
			options = e.cfg.Catalog.FallbackMitigations
		}
		e.acceptPhase(msg.selected, options, model.Feedback{
			Kind:        model.FeedbackPhaseCorrect,
			Title:       "Correct!",
			Message:     fmt.Sprintf("You identified the %s phase. Choose the best mitigation.", phaseName(e.cfg.Catalog.Phases, msg.selected)),
			Explanation: resp.Explanation,
			Indicators:  cloneStrings(resp.Indicators),
		})
		return
	}
	fb := model.Feedback{
		Kind:         model.FeedbackPhaseIncorrect,
		Title:        "Incorrect",
		Message:      fmt.Sprintf("This incident belongs to the %s phase.", phaseName(e.cfg.Catalog.Phases, resp.CorrectPhase)),
		Explanation:  resp.Explanation,
		Indicators:   cloneStrings(resp.Indicators),
		CorrectPhase: resp.CorrectPhase,
	}
	if resp.PhaseInfo != nil {
		info := *resp.PhaseInfo
		fb.PhaseInfo = &info
	} else if p, ok := findPhase(e.cfg.Catalog.Phases, resp.CorrectPhase); ok {
		fb.PhaseInfo = &p
	}
	e.rejectPhase(fb)
}

func (e *Engine) handleMitigationResult(msg mitigationResultMsg) {
	if !e.claim(msg.id, kindMitigation) {
		return
	}
	if errors.Is(msg.err, context.Canceled) {
		return
	}
	if msg.err != nil {
		e.markOffline(msg.err)
		e.simulateMitigation(msg.selected, e.timer.Remaining())
		return
	}
	resp := msg.resp
	var best *model.Mitigation
	if resp.BestMitigation != nil {
		m := *resp.BestMitigation
		best = &m
	}
	e.scoreMitigation(*resp.IsCorrect, *resp.Points, resp.SelectedEffectiveness, best, false)
}

func (e *Engine) simulatePhase(selected string) {
	out := simulatePhase(e.rnd, selected, e.round.IncidentPhase, e.round.Phases, e.cfg.Catalog.Phases)
	e.log.Info("phase simulated offline", "selected", selected, "correct", out.correct)
	if out.correct {
		e.acceptPhase(selected, e.cfg.Catalog.FallbackMitigations, offlinePhaseCorrect(e.cfg.Catalog.Phases, selected))
		return
	}
	e.rejectPhase(offlinePhaseIncorrect(e.cfg.Catalog.Phases, out.correctPhase))
}

func (e *Engine) simulateMitigation(selected string, remaining int) {
	out := simulateMitigation(e.rnd, remaining)
	e.log.Info("mitigation simulated offline", "selected", selected, "correct", out.correct)
	effectiveness := ""
	if m, ok := findMitigation(e.round.MitigationOptions, selected); ok {
		effectiveness = m.Effectiveness
	}
	var best *model.Mitigation
	if m, ok := catalog.BestMitigation(e.round.MitigationOptions); ok {
		best = &m
	}
	e.scoreMitigation(out.correct, out.points, effectiveness, best, true)
}

func (e *Engine) acceptPhase(selected string, options []model.Mitigation, fb model.Feedback) {
	e.ledger.RecordPhase(selected)
	e.round.MitigationOptions = cloneMitigations(options)
	e.round.SelectedMitigation = ""
	e.feedback = &fb
	e.newlyUnlocked = nil
	e.state = model.StateMitigationSelect
}

func (e *Engine) rejectPhase(fb model.Feedback) {
	e.ledger.Apply(stats.Outcome{Correct: false})
	e.feedback = &fb
	e.newlyUnlocked = nil
	e.state = model.StatePhaseFeedback
}

func (e *Engine) scoreMitigation(correct bool, points int, effectiveness string, best *model.Mitigation, offline bool) {
	e.ledger.Apply(stats.Outcome{Correct: correct, Points: points})
	e.newlyUnlocked = nil
	if correct {
		e.newlyUnlocked = e.ledger.EvaluateAndUnlock()
		for _, id := range e.newlyUnlocked {
			e.log.Info("achievement unlocked", "achievement", id)
		}
	}
	fb := model.Feedback{
		Kind:                  model.FeedbackFinal,
		IsCorrect:             correct,
		Points:                points,
		SelectedEffectiveness: effectiveness,
		Offline:               offline,
	}
	if correct {
		fb.Title = "Excellent choice!"
		fb.Message = fmt.Sprintf("+%d points", points)
	} else {
		fb.Title = "Not the best choice"
		fb.Message = fmt.Sprintf("+%d points for trying", points)
		if best == nil {
			if m, ok := catalog.BestMitigation(e.round.MitigationOptions); ok {
				best = &m
			}
		}
		fb.BestMitigation = best
	}
	e.feedback = &fb
	e.state = model.StateFinalFeedback
}

func (e *Engine) beginRound(r Round) tea.Cmd {
	r.Phases = difficulty.AllowedPhases(e.difficulty, e.cfg.Catalog.Phases)
	if r.TimeLimit <= 0 {
		r.TimeLimit = int(difficulty.ProfileFor(e.difficulty).TimeLimit / time.Second)
	}
	e.round = r
	e.feedback = nil
	e.newlyUnlocked = nil
	e.state = model.StatePlaying
	e.log.Info("round started", "incident", r.Incident.ID, "difficulty", e.difficulty, "offline", r.Offline, "time_limit", r.TimeLimit)
	return e.timer.Start(r.TimeLimit)
}

func (e *Engine) scheduleFallback(cause error) tea.Cmd {
	e.markOffline(cause)
	_, r := e.begin(kindFallback)
	id := r.id
	return tea.Tick(e.cfg.FallbackDelay, func(time.Time) tea.Msg {
		return fallbackRoundMsg{id: id}
	})
}

func (e *Engine) pickFallbackIncident() (catalog.FallbackIncident, bool) {
	all := e.cfg.Catalog.FallbackIncidents
	if len(all) == 0 {
		return catalog.FallbackIncident{}, false
	}
	allowed := difficulty.AllowedPhases(e.difficulty, e.cfg.Catalog.Phases)
	var candidates []catalog.FallbackIncident
	for _, fi := range all {
		if _, ok := findPhase(allowed, fi.Phase); ok {
			candidates = append(candidates, fi)
		}
	}
	if len(candidates) == 0 {
		candidates = all
	}
	fi := candidates[e.rnd.Intn(len(candidates))]
	fi.Incident.Metadata = cloneMetadata(fi.Incident.Metadata)
	return fi, true
}

func (e *Engine) markOnline() {
	if !e.backendAvailable {
		e.log.Info("backend reachable again")
	}
	e.backendAvailable = true
	e.advisory = ""
}

func (e *Engine) markOffline(err error) {
	e.backendAvailable = false
	var statusErr *client.StatusError
	switch {
	case errors.Is(err, errNoSource):
		e.log.Debug("no content source, playing offline")
	case errors.Is(err, client.ErrMalformed):
		e.advisory = advisoryMalformed
		e.log.Warn("malformed response, falling back", "error", err)
	case errors.As(err, &statusErr):
		e.advisory = advisoryRejected
		e.log.Warn("request rejected, falling back", "status", statusErr.Code, "error", err)
	default:
		e.advisory = advisoryOffline
		e.log.Warn("backend unavailable, falling back", "error", err)
	}
}

// begin registers a new outstanding request, cancelling the previous one.
func (e *Engine) begin(kind requestKind) (context.Context, *request) {
	e.cancelPending()
	e.lastReq++
	r := &request{id: e.lastReq, kind: kind}
	ctx := context.Background()
	if kind != kindFallback {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		r.cancel = cancel
	}
	e.pending = r
	return ctx, r
}

// claim reports whether a result belongs to the outstanding request and, if
// so, retires it.
func (e *Engine) claim(id int, kind requestKind) bool {
	if e.pending == nil || e.pending.id != id || e.pending.kind != kind {
		e.log.Debug("discarding stale result", "request_id", id, "kind", kind.String())
		return false
	}
	if e.pending.cancel != nil {
		e.pending.cancel()
	}
	e.pending = nil
	return true
}

func (e *Engine) cancelPending() {
	if e.pending == nil {
		return
	}
	if e.pending.cancel != nil {
		e.pending.cancel()
	}
	e.log.Debug("cancelled request", "request_id", e.pending.id, "kind", e.pending.kind.String())
	e.pending = nil
}

func (e *Engine) submitting() bool {
	return e.pending != nil && (e.pending.kind == kindPhase || e.pending.kind == kindMitigation)
}

func (e *Engine) loading() bool {
	return e.pending != nil && (e.pending.kind == kindContent || e.pending.kind == kindFallback)
}

func findMitigation(options []model.Mitigation, id string) (model.Mitigation, bool) {
	for _, m := range options {
		if m.ID == id {
			return m, true
		}
	}
	return model.Mitigation{}, false
}
