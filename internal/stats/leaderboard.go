package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/verte-zerg/killchain/internal/catalog"
	"github.com/verte-zerg/killchain/internal/model"
)

const (
	sparkChars          = " .:-=+*#%@"
	terminalWidthBackup = 80
	minSessionWidth     = 8
)

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal := values[0]
	maxVal := values[0]
	for _, v := range values[1:] {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx >= len(sparkChars) {
			idx = len(sparkChars) - 1
		}
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// MasteryLabel formats mastered phases out of the catalog size.
func MasteryLabel(mastered int) string {
	return fmt.Sprintf("%d/%d phases", mastered, len(catalog.Phases()))
}

// RenderLeaderboard prints ranked sessions. A width of 0 uses the terminal
// width; the session column is truncated to fit.
func RenderLeaderboard(w io.Writer, entries []model.LeaderboardEntry, width int) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found.")
		return err
	}
	if width <= 0 {
		width = TerminalWidth()
	}

	headers := []string{"Rank", "Session", "Score", "Accuracy", "Mastery", "Recent"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		s := e.Session
		recent := make([]float64, len(e.RecentPoints))
		for i, p := range e.RecentPoints {
			recent[i] = float64(p)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", e.Rank),
			s.SessionID,
			fmt.Sprintf("%d", s.Score),
			fmt.Sprintf("%d%%", Accuracy(s.CorrectAttempts, s.TotalAttempts)),
			MasteryLabel(s.PhasesMastered),
			Sparkline(recent),
		})
	}
	fitSessionColumn(headers, rows, 1, width)

	if _, err := fmt.Fprintln(w, "Leaderboard"); err != nil {
		return err
	}
	rightAlign := map[int]bool{0: true, 2: true, 3: true}
	for _, line := range formatTable(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// TerminalWidth returns the stdout width, or 80 when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

func fitSessionColumn(headers []string, rows [][]string, col, width int) {
	total := 0
	widths := columnWidths(headers, rows)
	for _, w := range widths {
		total += w
	}
	total += len(widths) - 1
	if total <= width {
		return
	}
	target := widths[col] - (total - width)
	if target < minSessionWidth {
		target = minSessionWidth
	}
	for _, row := range rows {
		if col < len(row) {
			row[col] = runewidth.Truncate(row[col], target, "…")
		}
	}
}
