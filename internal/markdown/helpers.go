// Package markdown formats text for Telegram's MarkdownV2 parse mode.
package markdown

import "strings"

// Taken from https://core.telegram.org/bots/api#markdownv2-style.
const mdV2SpecialChars = `._[](){}#|!+-=*~>` + "`" + `\`

//nolint:gochecknoglobals // Lookup table meant to be immutable.
var mdV2Lookup = func() [256]bool {
	var m [256]bool
	for i := range len(mdV2SpecialChars) {
		m[mdV2SpecialChars[i]] = true
	}
	return m
}()

func EscapeV2(input string) string {
	charsToEscape := 0

	for i := range len(input) {
		if mdV2Lookup[input[i]] {
			charsToEscape++
		}
	}
	if charsToEscape == 0 {
		return input
	}

	var b strings.Builder
	b.Grow(len(input) + charsToEscape)

	for i := range len(input) {
		c := input[i]
		if mdV2Lookup[c] {
			b.WriteByte('\\')
		}
		b.WriteByte(c)
	}

	return b.String()
}

func Bold(text string) string {
	if text == "" {
		return ""
	}
	return "*" + EscapeV2(text) + "*"
}

func Italic(text string) string {
	if text == "" {
		return ""
	}
	return "_" + EscapeV2(text) + "_"
}

// FromSummary escapes summary text and keeps its **bold** spans as
// MarkdownV2 bold. An unpaired marker is kept as literal text.
func FromSummary(text string) string {
	segments := strings.Split(text, "**")
	if len(segments)%2 == 0 {
		last := len(segments) - 1
		segments[last-1] += "**" + segments[last]
		segments = segments[:last]
	}

	var b strings.Builder
	for i, segment := range segments {
		if i%2 == 1 && strings.TrimSpace(segment) != "" {
			b.WriteString(Bold(segment))
			continue
		}
		if i%2 == 1 {
			b.WriteString(EscapeV2("**" + segment + "**"))
			continue
		}
		b.WriteString(EscapeV2(segment))
	}

	return b.String()
}

// Truncate cuts escaped MarkdownV2 text to at most limit runes without
// splitting an escape sequence, appending an ellipsis when it cuts.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return text
	}

	cut := limit - 1
	escaped := 0
	for i := cut - 1; i >= 0 && runes[i] == '\\'; i-- {
		escaped++
	}
	if escaped%2 == 1 {
		cut--
	}

	return string(runes[:cut]) + "…"
}
