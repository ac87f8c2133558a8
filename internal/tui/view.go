package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/engine"
	"github.com/verte-zerg/killchain/internal/model"
)

// View implements tea.Model.
func (m *Model) View() string {
	s := m.engine.Snapshot()
	width := m.contentWidth()

	var body string
	switch {
	case s.Loading:
		body = m.renderLoading(s)
	case s.State == model.StateWelcome:
		body = renderWelcome()
	case s.State == model.StateTutorial:
		body = renderTutorial(width)
	case s.State == model.StatePlaying:
		body = m.renderPlaying(s, width)
	case s.State == model.StateMitigationSelect:
		body = m.renderMitigations(s, width)
	case s.State == model.StatePhaseFeedback:
		body = renderPhaseFeedback(s, width)
	case s.State == model.StateFinalFeedback:
		body = renderFinalFeedback(s, width)
	}

	parts := []string{body}
	if toast := renderToast(s.NewlyUnlocked); toast != "" {
		parts = append(parts, toast)
	}
	if n := m.notices(s); n != "" {
		parts = append(parts, n)
	}
	content := lipgloss.NewStyle().Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))

	footer := renderFooter(s) + "\n" + m.help.View(m.keys)
	if m.width == 0 || m.height == 0 {
		return content + "\n\n" + footer
	}
	footerHeight := lipgloss.Height(footer)
	if m.height <= footerHeight+2 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyArea := lipgloss.Place(m.width, m.height-footerHeight, lipgloss.Center, lipgloss.Center, content)
	footerArea := lipgloss.PlaceHorizontal(m.width, lipgloss.Center, footer)
	return bodyArea + "\n" + footerArea
}

func (m *Model) renderLoading(s engine.Snapshot) string {
	msg := "Fetching the next incident…"
	if !s.BackendAvailable {
		msg = "Preparing an offline incident…"
	}
	return m.spinner.View() + " " + mutedStyle.Render(msg)
}

func renderWelcome() string {
	lines := []string{
		titleStyle.Render("Kill Chain Defender"),
		"",
		textStyle.Render("Read each security incident, name the attack phase it belongs to,"),
		textStyle.Render("then pick the mitigation that stops it."),
		"",
		mutedStyle.Render("s  start    t  tutorial    q  quit"),
	}
	return strings.Join(lines, "\n")
}

func renderTutorial(width int) string {
	lines := []string{titleStyle.Render("The seven phases"), ""}
	for i, p := range catalog.Phases() {
		lines = append(lines, selectedStyle.Render(fmt.Sprintf("%d. %s %s", i+1, p.Icon, p.Name)))
		for _, l := range wrapText(p.Description, width-4) {
			lines = append(lines, "   "+mutedStyle.Render(l))
		}
	}
	lines = append(lines, "",
		textStyle.Render("Answer before the timer runs out. Streaks and speed earn more points;"),
		textStyle.Render("difficulty rises as you improve and unlocks more phases."),
		"",
		mutedStyle.Render("esc  back    s  start"),
	)
	return strings.Join(lines, "\n")
}

func (m *Model) renderPlaying(s engine.Snapshot, width int) string {
	parts := []string{
		renderIncident(s.Round.Incident, width),
		m.renderTimer(s),
		titleStyle.Render("Which phase is this?"),
	}
	for i, p := range s.Round.Phases {
		label := fmt.Sprintf("%d. %s %s", i+1, p.Icon, p.Name)
		parts = append(parts, renderOption(label, i == m.cursor, p.ID == s.Round.SelectedPhase))
	}
	if s.Submitting {
		parts = append(parts, m.spinner.View()+" "+mutedStyle.Render("Checking…"))
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderMitigations(s engine.Snapshot, width int) string {
	parts := []string{}
	if fb := s.Feedback; fb != nil {
		parts = append(parts, correctStyle.Render(fb.Title), textStyle.Render(fb.Message))
		if fb.Explanation != "" {
			for _, l := range wrapText(fb.Explanation, width) {
				parts = append(parts, mutedStyle.Render(l))
			}
		}
		if len(fb.Indicators) > 0 {
			parts = append(parts, mutedStyle.Render("Indicators: "+strings.Join(fb.Indicators, ", ")))
		}
		parts = append(parts, "")
	}
	parts = append(parts, titleStyle.Render("Choose the most effective mitigation"))
	for i, opt := range s.Round.MitigationOptions {
		label := fmt.Sprintf("%d. %s %s", i+1, opt.Icon, opt.Name)
		parts = append(parts, renderOption(label, i == m.cursor, opt.ID == s.Round.SelectedMitigation))
		if opt.Description != "" {
			parts = append(parts, "     "+mutedStyle.Render(truncate(opt.Description, width-5)))
		}
	}
	if s.Submitting {
		parts = append(parts, m.spinner.View()+" "+mutedStyle.Render("Checking…"))
	}
	return strings.Join(parts, "\n")
}

func renderPhaseFeedback(s engine.Snapshot, width int) string {
	fb := s.Feedback
	if fb == nil {
		return ""
	}
	parts := []string{wrongStyle.Render(fb.Title), textStyle.Render(fb.Message)}
	if fb.ShowsCorrectAnswer() && fb.PhaseInfo != nil {
		parts = append(parts, selectedStyle.Render(fmt.Sprintf("%s %s", fb.PhaseInfo.Icon, fb.PhaseInfo.Name)))
		for _, l := range wrapText(fb.PhaseInfo.Description, width) {
			parts = append(parts, mutedStyle.Render(l))
		}
	}
	if fb.Explanation != "" {
		parts = append(parts, "")
		for _, l := range wrapText(fb.Explanation, width) {
			parts = append(parts, textStyle.Render(l))
		}
	}
	if len(fb.Indicators) > 0 {
		parts = append(parts, mutedStyle.Render("Indicators: "+strings.Join(fb.Indicators, ", ")))
	}
	parts = append(parts, "", mutedStyle.Render("n  next round"))
	return strings.Join(parts, "\n")
}

func renderFinalFeedback(s engine.Snapshot, width int) string {
	fb := s.Feedback
	if fb == nil {
		return ""
	}
	var parts []string
	if fb.IsCorrect {
		parts = append(parts, correctStyle.Render(fb.Title))
	} else {
		parts = append(parts, wrongStyle.Render(fb.Title))
	}
	parts = append(parts, textStyle.Render(fb.Message))
	if fb.SelectedEffectiveness != "" {
		parts = append(parts, mutedStyle.Render("Your choice: "+fb.SelectedEffectiveness+" effectiveness"))
	}
	if !fb.IsCorrect && fb.BestMitigation != nil {
		best := fb.BestMitigation
		parts = append(parts, "", selectedStyle.Render(fmt.Sprintf("Best option: %s %s (%s)", best.Icon, best.Name, best.Effectiveness)))
		for _, l := range wrapText(best.Description, width) {
			parts = append(parts, mutedStyle.Render(l))
		}
	}
	parts = append(parts, "", mutedStyle.Render("n  next round"))
	return strings.Join(parts, "\n")
}

func renderIncident(inc model.Incident, width int) string {
	inner := width - 4
	header := fmt.Sprintf("%s · %s", inc.SourceLabel, inc.Severity)
	if inc.Timestamp != "" {
		header += " · " + inc.Timestamp
	}
	lines := []string{mutedStyle.Render(truncate(header, inner))}
	for _, l := range wrapText(inc.RawText, inner) {
		lines = append(lines, textStyle.Render(l))
	}
	if len(inc.Metadata) > 0 {
		keys := make([]string, 0, len(inc.Metadata))
		for k := range inc.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines = append(lines, "")
		for _, k := range keys {
			lines = append(lines, mutedStyle.Render(truncate(k+": "+inc.Metadata[k], inner)))
		}
	}
	return panelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m *Model) renderTimer(s engine.Snapshot) string {
	limit := s.Round.TimeLimit
	if limit <= 0 {
		return ""
	}
	ratio := float64(s.TimeRemaining) / float64(limit)
	return m.progress.ViewAs(ratio) + " " + mutedStyle.Render(timerLabel(s.TimeRemaining, limit))
}

func renderOption(label string, atCursor, selected bool) string {
	prefix := "  "
	if atCursor {
		prefix = cursorStyle.Render("› ")
	}
	if selected {
		return prefix + selectedStyle.Render(label+" ✓")
	}
	return prefix + textStyle.Render(label)
}

func renderToast(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	lines := []string{titleStyle.Render("Achievement unlocked!")}
	for _, id := range ids {
		a, ok := catalog.AchievementByID(id)
		if !ok {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %s: %s", a.Icon, a.Name, a.Description))
	}
	return toastStyle.Render(strings.Join(lines, "\n"))
}

func renderFooter(s engine.Snapshot) string {
	st := s.Stats
	online := "online"
	if !s.BackendAvailable {
		online = "offline"
	}
	segments := []string{
		fmt.Sprintf("Score %d", st.Score),
		fmt.Sprintf("Streak %d", st.Streak),
		fmt.Sprintf("Level %d", st.Level),
		fmt.Sprintf("Accuracy %d%%", st.Accuracy),
		fmt.Sprintf("Tier %s", s.Difficulty),
		online,
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}
