package render

import (
	"strconv"
	"strings"

	"bookdigest/internal/summary"
)

// paragraphs splits scalar text on line breaks and drops blank lines.
func paragraphs(text string) []string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}

	return out
}

// oneLine collapses item text onto a single line.
func oneLine(text string) string {
	return strings.Join(paragraphs(text), " ")
}

func partValues(parts []summary.Part) []string {
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		values = append(values, p.Value)
	}
	return values
}

// stripEmphasis removes Markdown emphasis markers.
func stripEmphasis(text string) string {
	text = strings.ReplaceAll(text, "**", "")
	text = strings.ReplaceAll(text, "__", "")
	text = strings.ReplaceAll(text, "*", "")

	return strings.TrimSpace(text)
}

func pageString(page int) string {
	return strconv.Itoa(page)
}
