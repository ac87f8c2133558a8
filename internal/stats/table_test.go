package stats

import "testing"

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Rank", "Session", "Score"}
	rows := [][]string{
		{"1", "alpha-01", "1010"},
		{"12", "b", "5"},
	}
	rightAlign := map[int]bool{0: true, 2: true}

	lines := formatTable(headers, rows, rightAlign)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "Rank Session  Score" {
		t.Fatalf("unexpected header line: %q", lines[0])
	}
	if lines[1] != "   1 alpha-01  1010" {
		t.Fatalf("unexpected row line: %q", lines[1])
	}
	if lines[2] != "  12 b            5" {
		t.Fatalf("unexpected row line: %q", lines[2])
	}
}

func TestDisplayWidthCountsWideRunes(t *testing.T) {
	if got := displayWidth("🎯"); got != 2 {
		t.Fatalf("expected width 2, got %d", got)
	}
	if got := padCell("ab", 4, false); got != "ab  " {
		t.Fatalf("unexpected padding: %q", got)
	}
}
