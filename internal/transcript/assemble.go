// Package transcript assembles and formats transcribed text and timestamped lines.
package transcript

import (
	"fmt"
	"strconv"
	"strings"
)

// Line is one final-transcript entry: text anchored at an offset from session start.
type Line struct {
	Offset float64
	Text   string
}

// JoinFragments space-joins live transcript fragments with whitespace collapsed.
func JoinFragments(fragments []string) string {
	if len(fragments) == 0 {
		return ""
	}
	joined := strings.Join(fragments, " ")
	return strings.Join(strings.Fields(joined), " ")
}

// Normalize collapses whitespace and applies sentence capitalization.
func Normalize(text string) string {
	collapsed := strings.Join(strings.Fields(text), " ")
	if collapsed == "" {
		return ""
	}
	return capitalizeSentences(collapsed)
}

// Timestamp renders seconds as mm:ss, growing to h:mm:ss past one hour.
func Timestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// FormatLine renders one transcript line as "[mm:ss] text".
func FormatLine(line Line) string {
	return fmt.Sprintf("[%s] %s", Timestamp(line.Offset), strings.TrimSpace(line.Text))
}

// ParseLine recovers a Line from its rendered "[mm:ss] text" form. It reports
// false for lines that do not carry a timestamp prefix.
func ParseLine(rendered string) (Line, bool) {
	rendered = strings.TrimSpace(rendered)
	if !strings.HasPrefix(rendered, "[") {
		return Line{}, false
	}
	end := strings.IndexByte(rendered, ']')
	if end < 0 {
		return Line{}, false
	}

	parts := strings.Split(rendered[1:end], ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Line{}, false
	}
	seconds := 0
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return Line{}, false
		}
		seconds = seconds*60 + n
	}

	return Line{Offset: float64(seconds), Text: strings.TrimSpace(rendered[end+1:])}, true
}

// Render joins transcript lines newline-separated, skipping empty text.
func Render(lines []Line) string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line.Text) == "" {
			continue
		}
		out = append(out, FormatLine(line))
	}
	return strings.Join(out, "\n")
}
