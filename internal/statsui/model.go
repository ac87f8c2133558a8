// Package statsui provides the Bubble Tea leaderboard browser.
package statsui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/model"
	"github.com/verte-zerg/killchain/internal/stats"
)

const (
	tabBoard = iota
	tabSession
)

const (
	defaultLimit  = 10
	defaultRecent = 10
	maxLimit      = 100
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Source is the read side of the server store used by the browser.
type Source interface {
	Leaderboard(ctx context.Context, limit int) ([]model.SessionAggregate, error)
	RecentPoints(ctx context.Context, sessionID string, n int) ([]int, error)
	PhaseBreakdown(ctx context.Context, sessionID string) ([]model.PhaseTally, error)
}

// Model implements the Bubble Tea leaderboard browser.
type Model struct {
	src Source
	cfg model.BoardConfig

	entries []model.LeaderboardEntry
	errMsg  string

	tabs      []string
	activeTab int
	board     table.Model
	detail    viewport.Model
	layout    tableLayout

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

type tableLayout struct {
	width  int
	height int
}

// NewModel constructs a leaderboard browser and loads the first page.
func NewModel(src Source, cfg model.BoardConfig) *Model {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultLimit
	}
	if cfg.Recent <= 0 {
		cfg.Recent = defaultRecent
	}
	m := &Model{
		src:    src,
		cfg:    cfg,
		tabs:   []string{"Leaderboard", "Session"},
		detail: viewport.New(0, 0),
		board:  buildBoardTable(nil, 0, 1),
	}
	m.initInputs()
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderDetail()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "r":
			m.refresh()
			return m, nil
		case "enter":
			if m.activeTab == tabBoard && len(m.entries) > 0 {
				m.moveTab(1)
				return m, tea.ClearScreen
			}
			return m, nil
		case "g", "home":
			if m.activeTab == tabBoard {
				m.board.GotoTop()
				m.renderDetail()
			} else {
				m.detail.GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabBoard {
				m.board.GotoBottom()
				m.renderDetail()
			} else {
				m.detail.GotoBottom()
			}
			return m, nil
		default:
			var cmd tea.Cmd
			if m.activeTab == tabBoard {
				m.board, cmd = m.board.Update(msg)
				m.renderDetail()
				return m, cmd
			}
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

// Selected returns the entry under the table cursor.
func (m *Model) Selected() (model.LeaderboardEntry, bool) {
	idx := m.board.Cursor()
	if idx < 0 || idx >= len(m.entries) {
		return model.LeaderboardEntry{}, false
	}
	return m.entries[idx], true
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Session: "),
		newFilterInput("Limit: "),
	}
	m.setInputsFromConfig()
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromConfig() {
	m.filterInputs[0].SetValue(m.cfg.Query)
	m.filterInputs[1].SetValue(strconv.Itoa(m.cfg.Limit))
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.detail.Width = m.width
	m.detail.Height = bodyHeight
	m.setBoardSize(m.width, bodyHeight)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabBoard {
		m.board.Focus()
	} else {
		m.board.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	query := m.cfg.Query
	if query == "" {
		query = "any"
	}
	summary := fmt.Sprintf("Settings: session=%s  limit=%d  shown=%d", query, m.cfg.Limit, len(m.entries))
	return tabs + "\n" + headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := "Nav: left/right  Rows: up/down  Details: enter  Reload: r  Filter: /  Quit: q"
	if m.activeTab == tabSession {
		help = "Nav: left/right  Scroll: up/down/pgup/pgdn  Reload: r  Filter: /  Quit: q"
	}
	if m.errMsg != "" {
		return headerStyle.Render(help) + "\n" + errorStyle.Render(m.errMsg)
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFilterForm() string {
	lines := []string{"Filter (enter to apply, esc to cancel)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	if m.filterError != "" {
		lines = append(lines, errorStyle.Render(m.filterError))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		return fitLines(m.renderFilterForm(), m.width, height)
	}
	if m.activeTab == tabBoard {
		if len(m.entries) == 0 {
			return fitLines("No sessions found.", m.width, height)
		}
		return fitLines(tableMutedStyle.Render(m.board.View()), m.width, height)
	}
	return fitLines(m.detail.View(), m.width, height)
}

func (m *Model) refresh() {
	ctx := context.Background()
	sessions, err := m.src.Leaderboard(ctx, m.cfg.Limit)
	if err != nil {
		m.errMsg = err.Error()
		m.entries = nil
		m.applyBoard()
		m.detail.SetContent("Failed to load leaderboard.")
		return
	}
	m.errMsg = ""
	query := strings.ToLower(strings.TrimSpace(m.cfg.Query))
	entries := make([]model.LeaderboardEntry, 0, len(sessions))
	for i, s := range sessions {
		if query != "" && !strings.Contains(strings.ToLower(s.SessionID), query) {
			continue
		}
		recent, err := m.src.RecentPoints(ctx, s.SessionID, m.cfg.Recent)
		if err != nil {
			m.errMsg = err.Error()
		}
		entries = append(entries, model.LeaderboardEntry{Rank: i + 1, Session: s, RecentPoints: recent})
	}
	m.entries = entries
	m.applyBoard()
	m.renderDetail()
}

func (m *Model) applyBoard() {
	rows := boardRows(m.entries)
	m.board.SetRows(rows)
	if m.board.Cursor() >= len(rows) {
		m.board.SetCursor(maxInt(0, len(rows)-1))
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.layout.width = 0
	m.setBoardSize(width, bodyHeight)
}

func (m *Model) renderDetail() {
	entry, ok := m.Selected()
	if !ok {
		m.detail.SetContent("No session selected.")
		return
	}
	tallies, err := m.src.PhaseBreakdown(context.Background(), entry.Session.SessionID)
	if err != nil {
		m.detail.SetContent(fmt.Sprintf("Failed to load session: %v", err))
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.detail.SetContent(renderSession(entry, tallies, width))
	m.detail.GotoTop()
}

func renderSession(entry model.LeaderboardEntry, tallies []model.PhaseTally, width int) string {
	s := entry.Session
	title := cardValueStyle.Render(fmt.Sprintf("#%d %s", entry.Rank, s.SessionID))
	cards := []string{
		metricCard("Score", strconv.Itoa(s.Score)),
		metricCard("Accuracy", fmt.Sprintf("%d%%", stats.Accuracy(s.CorrectAttempts, s.TotalAttempts))),
		metricCard("Streak", strconv.Itoa(s.Streak)),
		metricCard("Mastery", stats.MasteryLabel(s.PhasesMastered)),
	}
	var summary string
	if width < 80 {
		summary = strings.Join(cards, "\n")
	} else {
		summary = lipgloss.JoinHorizontal(lipgloss.Top, cards...)
	}

	lines := []string{title, summary, "", headerStyle.Render("Phases")}
	if len(tallies) == 0 {
		lines = append(lines, "No results recorded.")
	}
	for _, t := range tallies {
		lines = append(lines, fmt.Sprintf("%-24s %3d/%-3d %6d pts",
			truncateLine(phaseName(t.Phase), 24), t.Correct, t.Attempts, t.Points))
	}
	if len(entry.RecentPoints) > 0 {
		recent := make([]float64, len(entry.RecentPoints))
		for i, p := range entry.RecentPoints {
			recent[i] = float64(p)
		}
		lines = append(lines, "", headerStyle.Render("Recent rounds"), stats.Sparkline(recent))
	}
	return strings.Join(lines, "\n")
}

func phaseName(id string) string {
	if p, ok := catalog.PhaseByID(id); ok {
		return p.Name
	}
	return id
}

func metricCard(label, value string) string {
	content := fmt.Sprintf("%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value))
	return cardStyle.Render(content)
}

func boardColumns() []table.Column {
	return []table.Column{
		{Title: "Rank", Width: 4},
		{Title: "Session", Width: 24},
		{Title: "Score", Width: 7},
		{Title: "Accuracy", Width: 8},
		{Title: "Mastery", Width: 11},
	}
}

func boardRows(entries []model.LeaderboardEntry) []table.Row {
	rows := make([]table.Row, 0, len(entries))
	for _, e := range entries {
		s := e.Session
		rows = append(rows, table.Row{
			strconv.Itoa(e.Rank),
			s.SessionID,
			strconv.Itoa(s.Score),
			fmt.Sprintf("%d%%", stats.Accuracy(s.CorrectAttempts, s.TotalAttempts)),
			stats.MasteryLabel(s.PhasesMastered),
		})
	}
	return rows
}

func buildBoardTable(entries []model.LeaderboardEntry, width, height int) table.Model {
	t := table.New(
		table.WithColumns(boardColumns()),
		table.WithRows(boardRows(entries)),
		table.WithHeight(maxInt(1, height-1)),
		table.WithFocused(true),
	)
	t.SetWidth(width)
	t.SetStyles(boardTableStyles())
	return t
}

func (m *Model) setBoardSize(width, height int) {
	viewportHeight := maxInt(1, height-1)
	if m.layout.width == width && m.layout.height == viewportHeight {
		return
	}
	m.layout.width = width
	m.layout.height = viewportHeight
	m.board.SetWidth(width)
	m.board.SetHeight(viewportHeight)
}

func boardTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.setInputsFromConfig()
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		if err := m.applyFilter(); err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		m.filterMode = false
		m.filterError = ""
		m.refresh()
		m.updateLayout()
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func (m *Model) applyFilter() error {
	query := strings.TrimSpace(m.filterInputs[0].Value())
	limitInput := strings.TrimSpace(m.filterInputs[1].Value())
	limit := defaultLimit
	if limitInput != "" {
		parsed, err := strconv.Atoi(limitInput)
		if err != nil || parsed < 1 || parsed > maxLimit {
			return fmt.Errorf("invalid limit (use 1-%d)", maxLimit)
		}
		limit = parsed
	}
	m.cfg.Query = query
	m.cfg.Limit = limit
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
