// Package tui provides the Bubble Tea quiz interface.
package tui

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/killchain/internal/engine"
	"github.com/verte-zerg/killchain/internal/model"
)

// Model renders an engine session and forwards key presses to its actions.
type Model struct {
	engine   *engine.Engine
	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model

	width  int
	height int

	// cursor indexes the phase or mitigation list of the current screen.
	cursor int
	notice string
}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	advisoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAAD14"))
	toastStyle    = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	panelStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs the quiz UI over an engine session.
func NewModel(e *engine.Engine) *Model {
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(cursorStyle))
	return &Model{
		engine:   e,
		keys:     newKeyMap(),
		help:     help.New(),
		spinner:  sp,
		progress: progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.engine.State()
	defer func() {
		if m.engine.State() != before {
			m.cursor = 0
		}
	}()
	cmd := m.engine.Update(msg)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.progress.Width = progressWidth(msg.Width)
		return m, cmd
	case spinner.TickMsg:
		var spinCmd tea.Cmd
		m.spinner, spinCmd = m.spinner.Update(msg)
		return m, tea.Batch(cmd, spinCmd)
	case tea.KeyMsg:
		return m, tea.Batch(cmd, m.handleKey(msg))
	default:
		return m, cmd
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if key.Matches(msg, m.keys.Quit) {
		m.engine.Shutdown()
		return tea.Quit
	}
	if key.Matches(msg, m.keys.Help) {
		m.help.ShowAll = !m.help.ShowAll
		return nil
	}
	if key.Matches(msg, m.keys.Dismiss) {
		m.engine.DismissAdvisory()
		m.notice = ""
		return nil
	}

	switch m.engine.State() {
	case model.StateWelcome:
		switch {
		case key.Matches(msg, m.keys.Tutorial):
			m.apply(m.engine.OpenTutorial())
		case key.Matches(msg, m.keys.Start), key.Matches(msg, m.keys.Submit):
			return m.start()
		}
	case model.StateTutorial:
		switch {
		case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Tutorial):
			m.apply(m.engine.CloseTutorial())
		case key.Matches(msg, m.keys.Start), key.Matches(msg, m.keys.Submit):
			return m.start()
		}
	case model.StatePlaying:
		return m.handleChoice(msg, len(m.engine.Snapshot().Round.Phases), m.selectPhase, m.engine.SubmitPhase)
	case model.StateMitigationSelect:
		return m.handleChoice(msg, len(m.engine.Snapshot().Round.MitigationOptions), m.selectMitigation, m.engine.SubmitMitigation)
	case model.StatePhaseFeedback, model.StateFinalFeedback:
		if key.Matches(msg, m.keys.Start) || key.Matches(msg, m.keys.Submit) {
			return m.start()
		}
	}
	return nil
}

func (m *Model) handleChoice(msg tea.KeyMsg, count int, choose func(int) error, submit func() (tea.Cmd, error)) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < count-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		idx := m.cursor
		if n, err := strconv.Atoi(msg.String()); err == nil {
			idx = n - 1
		}
		if idx < 0 || idx >= count {
			return nil
		}
		m.cursor = idx
		m.apply(choose(idx))
	case key.Matches(msg, m.keys.Submit):
		cmd, err := submit()
		m.apply(err)
		return cmd
	}
	return nil
}

func (m *Model) selectPhase(idx int) error {
	return m.engine.SelectPhase(m.engine.Snapshot().Round.Phases[idx].ID)
}

func (m *Model) selectMitigation(idx int) error {
	return m.engine.SelectMitigation(m.engine.Snapshot().Round.MitigationOptions[idx].ID)
}

func (m *Model) start() tea.Cmd {
	cmd, err := m.engine.StartRound()
	m.apply(err)
	return cmd
}

// apply turns an action error into a transient notice.
func (m *Model) apply(err error) {
	switch {
	case err == nil:
		m.notice = ""
	case errors.Is(err, engine.ErrNoSelection):
		if m.engine.State() == model.StateMitigationSelect {
			m.notice = "Select a mitigation first."
		} else {
			m.notice = "Select a phase first."
		}
	case errors.Is(err, engine.ErrBusy):
		m.notice = "Still checking your answer…"
	default:
		m.notice = err.Error()
	}
}

func progressWidth(total int) int {
	w := total / 3
	if w < 10 {
		w = 10
	}
	if w > 60 {
		w = 60
	}
	return w
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	w := int(float64(m.width) * 0.70)
	if w < 20 {
		w = m.width
	}
	return w
}

func (m *Model) notices(s engine.Snapshot) string {
	var out []string
	if s.Advisory != "" {
		out = append(out, advisoryStyle.Render("⚠ "+s.Advisory+"  (x to dismiss)"))
	}
	if m.notice != "" {
		out = append(out, wrongStyle.Render(m.notice))
	}
	if len(out) == 0 {
		return ""
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}

func timerLabel(remaining, limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf("%ds / %ds", remaining, limit)
}
