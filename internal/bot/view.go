package bot

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"bookdigest/internal/markdown"
	"bookdigest/internal/viewer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxMessageRunes = 4096
	ellipsisLine    = "…"

	sectionCallbackPrefix = "sec:"
	copyCallbackPrefix    = "copy:"
	openCallbackPrefix    = "open:"
)

// viewText renders the open summary as a MarkdownV2 message. Sections are
// listed by label; expanded ones include their content. Lines that would
// overflow the message limit are dropped.
func viewText(v *viewer.View, suggestion string) string {
	lines := []string{
		markdown.Bold(v.Title),
		markdown.Italic(strings.TrimSpace(v.Style.Emoji + " " + v.Style.Label + " Summary")),
	}

	for _, s := range v.Sections {
		lines = append(lines, "")

		if !v.Expanded(s.Key) {
			lines = append(lines, "▸ "+markdown.Bold(s.Label))
			continue
		}

		lines = append(lines, "▾ "+markdown.Bold(s.Label))
		for i, p := range s.Paragraphs {
			if i > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, markdown.FromSummary(p))
		}
		for _, l := range s.Lines {
			lines = append(lines, viewLine(l))
		}
	}

	if suggestion != "" {
		lines = append(lines, "", "💬 "+markdown.Italic("Ask me anything, e.g. “"+suggestion+"”"))
	}

	return joinWithinLimit(lines, maxMessageRunes)
}

func viewLine(l viewer.Line) string {
	var b strings.Builder
	b.WriteString("• ")

	if l.Headline != "" {
		b.WriteString(markdown.Bold(l.Headline))
		if l.Text != "" {
			b.WriteString(" — ")
		}
	}
	b.WriteString(markdown.FromSummary(l.Text))

	if l.Page > 0 {
		b.WriteString(" ")
		b.WriteString(markdown.Italic("(p. " + strconv.Itoa(l.Page) + ")"))
	}

	return b.String()
}

func joinWithinLimit(lines []string, limit int) string {
	var (
		b    strings.Builder
		used int
	)

	reserve := utf8.RuneCountInString(ellipsisLine) + 1

	for i, line := range lines {
		n := utf8.RuneCountInString(line)
		if i > 0 {
			n++
		}

		budget := limit - reserve
		if i == len(lines)-1 {
			budget = limit
		}

		if i > 0 && (used+n > budget) {
			b.WriteString("\n")
			b.WriteString(ellipsisLine)
			break
		}

		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
		used += n
	}

	return b.String()
}

type viewState struct {
	canListen bool
	speaking  bool
}

func viewKeyboard(v *viewer.View, state viewState) [][]tgbotapi.InlineKeyboardButton {
	var keyboard [][]tgbotapi.InlineKeyboardButton

	for i, s := range v.Sections {
		marker := "▸ "
		if v.Expanded(s.Key) {
			marker = "▾ "
		}

		row := []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(marker+s.Label, sectionCallbackPrefix+strconv.Itoa(i)),
		}
		if v.Expanded(s.Key) {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData("📋 Copy", copyCallbackPrefix+strconv.Itoa(i)))
		}

		keyboard = append(keyboard, row)
	}

	if v.AnyExpanded() {
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⏫ Collapse all", "collapse"),
		})
	}

	if state.canListen {
		if state.speaking {
			keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("⏯ Pause / resume", "pause"),
				tgbotapi.NewInlineKeyboardButtonData("⏹ Stop", "stop"),
			})
		} else {
			keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
				tgbotapi.NewInlineKeyboardButtonData("🔊 Listen", "listen"),
			})
		}
	}

	keyboard = append(keyboard,
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("📄 Markdown", "md"),
			tgbotapi.NewInlineKeyboardButtonData("🖨 Print", "print"),
			tgbotapi.NewInlineKeyboardButtonData("📤 Readwise", "rw"),
		},
		[]tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", "menu"),
		},
	)

	return keyboard
}

func sectionIndex(data, prefix string) (int, bool) {
	raw, ok := strings.CutPrefix(data, prefix)
	if !ok {
		return 0, false
	}

	i, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	return i, true
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	return string([]rune(s)[:limit-1]) + "…"
}

func summaryButtonText(emoji, title, style string) string {
	return truncateRunes(strings.TrimSpace(fmt.Sprintf("%s %s · %s", emoji, title, style)), 64)
}
