package tui

import (
	"math/rand"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/killchain/internal/engine"
	"github.com/verte-zerg/killchain/internal/model"
)

func newOfflineModel(seed int64) *Model {
	e := engine.New(engine.Config{
		SessionID:     "session_tui",
		FallbackDelay: time.Millisecond,
		TickInterval:  time.Millisecond,
		Rand:          rand.New(rand.NewSource(seed)),
	})
	return NewModel(e)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runCmd executes a command, unwrapping a batch to its first command.
func runCmd(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			if c != nil {
				return c()
			}
		}
		t.Fatalf("empty batch")
	}
	return msg
}

func startRound(t *testing.T, m *Model) {
	t.Helper()
	_, cmd := m.Update(runes("s"))
	m.Update(runCmd(t, cmd))
	if m.engine.State() != model.StatePlaying {
		t.Fatalf("expected playing, got %s", m.engine.State())
	}
}

func TestModelWelcomeAndTutorial(t *testing.T) {
	m := newOfflineModel(1)
	if !strings.Contains(m.View(), "Kill Chain Defender") {
		t.Fatalf("expected welcome screen")
	}
	m.Update(runes("t"))
	if m.engine.State() != model.StateTutorial {
		t.Fatalf("expected tutorial, got %s", m.engine.State())
	}
	if !containsAll(m.View(), []string{"Reconnaissance", "Actions on Objectives"}) {
		t.Fatalf("tutorial should list every phase")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.engine.State() != model.StateWelcome {
		t.Fatalf("expected welcome, got %s", m.engine.State())
	}
}

func TestModelSubmitWithoutSelectionShowsNotice(t *testing.T) {
	m := newOfflineModel(1)
	startRound(t, m)
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.notice != "Select a phase first." {
		t.Fatalf("unexpected notice %q", m.notice)
	}
	if !strings.Contains(m.View(), "Select a phase first.") {
		t.Fatalf("notice should be rendered")
	}
}

func TestModelPlaysOfflineRound(t *testing.T) {
	m := newOfflineModel(3)
	startRound(t, m)
	if !strings.Contains(m.View(), "Which phase is this?") {
		t.Fatalf("expected phase prompt")
	}

	m.Update(runes("2"))
	if got := m.engine.Snapshot().Round.SelectedPhase; got != m.engine.Snapshot().Round.Phases[1].ID {
		t.Fatalf("expected second phase selected, got %q", got)
	}
	if m.cursor != 1 {
		t.Fatalf("cursor should follow the digit, got %d", m.cursor)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	switch m.engine.State() {
	case model.StatePhaseFeedback:
		if !strings.Contains(m.View(), "next round") {
			t.Fatalf("expected feedback screen")
		}
	case model.StateMitigationSelect:
		if m.cursor != 0 {
			t.Fatalf("cursor should reset on a new screen")
		}
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m.Update(runes(" "))
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.engine.State() != model.StateFinalFeedback {
			t.Fatalf("expected final feedback, got %s", m.engine.State())
		}
		if m.engine.Snapshot().Stats.TotalAttempts != 1 {
			t.Fatalf("expected one attempt recorded")
		}
	default:
		t.Fatalf("unexpected state after submit: %s", m.engine.State())
	}
}

func TestModelMitigationScreenStartsAtTop(t *testing.T) {
	for seed := int64(1); seed <= 50; seed++ {
		m := newOfflineModel(seed)
		startRound(t, m)
		phases := m.engine.Snapshot().Round.Phases
		for i := 0; i < len(phases); i++ {
			m.Update(tea.KeyMsg{Type: tea.KeyDown})
		}
		m.Update(runes(" "))
		m.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.engine.State() != model.StateMitigationSelect {
			continue
		}
		if m.cursor != 0 {
			t.Fatalf("seed %d: mitigation cursor starts at %d", seed, m.cursor)
		}
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m.Update(runes(" "))
		opts := m.engine.Snapshot().Round.MitigationOptions
		if got := m.engine.Snapshot().Round.SelectedMitigation; got != opts[1].ID {
			t.Fatalf("seed %d: expected %s selected, got %q", seed, opts[1].ID, got)
		}
		return
	}
	t.Fatalf("no seed reached mitigation select")
}

func TestModelCursorBounds(t *testing.T) {
	m := newOfflineModel(1)
	startRound(t, m)
	for i := 0; i < 10; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyDown})
	}
	if want := len(m.engine.Snapshot().Round.Phases) - 1; m.cursor != want {
		t.Fatalf("expected cursor %d, got %d", want, m.cursor)
	}
	for i := 0; i < 10; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyUp})
	}
	if m.cursor != 0 {
		t.Fatalf("expected cursor 0, got %d", m.cursor)
	}
	m.Update(runes("7"))
	if m.engine.Snapshot().Round.SelectedPhase != "" {
		t.Fatalf("out of range digit should not select")
	}
}

func TestModelQuitStopsEngine(t *testing.T) {
	m := newOfflineModel(1)
	startRound(t, m)
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := runCmd(t, cmd).(tea.QuitMsg); !ok {
		t.Fatalf("expected quit message")
	}
	if m.engine.Snapshot().TimerRunning {
		t.Fatalf("timer should stop on quit")
	}
}

func TestModelWindowSize(t *testing.T) {
	m := newOfflineModel(1)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	if m.width != 120 || m.progress.Width != progressWidth(120) {
		t.Fatalf("unexpected sizing: width=%d progress=%d", m.width, m.progress.Width)
	}
	if m.View() == "" {
		t.Fatalf("expected a rendered view")
	}
}
