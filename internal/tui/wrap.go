package tui

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

type wrapRune struct {
	r       rune
	width   int
	isSpace bool
}

// wrapText breaks text into lines no wider than width, preferring spaces.
// Words longer than the width are split.
func wrapText(text string, width int) []string {
	text = strings.Join(strings.Fields(text), " ")
	if width <= 0 || runewidth.StringWidth(text) <= width {
		return []string{text}
	}

	var lines []string
	line := make([]wrapRune, 0, width)
	lineWidth := 0
	lastSpaceIdx := -1

	runes := []rune(text)
	for i := 0; i < len(runes); {
		item := wrapRune{r: runes[i], width: runewidth.RuneWidth(runes[i]), isSpace: runes[i] == ' '}
		if lineWidth+item.width > width && len(line) > 0 {
			if item.isSpace {
				lines = append(lines, renderRunes(line))
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
				i++
				continue
			}
			if lastSpaceIdx >= 0 {
				lines = append(lines, renderRunes(line[:lastSpaceIdx]))
				line = append([]wrapRune{}, line[lastSpaceIdx+1:]...)
				lineWidth = lineWidthOf(line)
				lastSpaceIdx = lastSpaceIndex(line)
			} else {
				lines = append(lines, renderRunes(line))
				line = line[:0]
				lineWidth = 0
				lastSpaceIdx = -1
			}
			continue
		}
		line = append(line, item)
		lineWidth += item.width
		if item.isSpace {
			lastSpaceIdx = len(line) - 1
		}
		i++
	}
	if len(line) > 0 {
		lines = append(lines, renderRunes(line))
	}
	return lines
}

// truncate shortens s to width display cells with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}

func renderRunes(line []wrapRune) string {
	var b strings.Builder
	for _, item := range line {
		b.WriteRune(item.r)
	}
	return b.String()
}

func lineWidthOf(line []wrapRune) int {
	total := 0
	for _, item := range line {
		total += item.width
	}
	return total
}

func lastSpaceIndex(line []wrapRune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if line[i].isSpace {
			return i
		}
	}
	return -1
}
