package bot

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const maxListedSummaries = 50

func (b *Bot) sendMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) (tgbotapi.Message, error) {
	message := tgbotapi.NewMessage(chatID, b.validUTF8(ctx, chatID, text))

	// See https://core.telegram.org/bots/api#markdownv2-style.
	message.ParseMode = tgbotapi.ModeMarkdownV2

	message.DisableWebPagePreview = true
	if len(keyboard) > 0 {
		message.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}

	return b.sender.Send(ctx, message)
}

// sendPlainText sends text without a parse mode so it can be copied as is.
func (b *Bot) sendPlainText(ctx context.Context, chatID int64, text string) error {
	message := tgbotapi.NewMessage(chatID, truncateRunes(b.validUTF8(ctx, chatID, text), maxMessageRunes))
	message.DisableWebPagePreview = true

	_, err := b.sender.Send(ctx, message)
	return err
}

func (b *Bot) editMessageWithKeyboard(
	ctx context.Context,
	chatID int64,
	messageID int,
	text string,
	keyboard [][]tgbotapi.InlineKeyboardButton,
) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(
		chatID,
		messageID,
		b.validUTF8(ctx, chatID, text),
		tgbotapi.NewInlineKeyboardMarkup(keyboard...),
	)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	edit.DisableWebPagePreview = true

	_, err := b.sender.Send(ctx, edit)
	return err
}

func (b *Bot) sendDocument(ctx context.Context, chatID int64, name string, content []byte) error {
	document := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: content})

	_, err := b.sender.Send(ctx, document)
	return err
}

func (b *Bot) validUTF8(ctx context.Context, chatID int64, text string) string {
	normalizedText := strings.ToValidUTF8(text, "?")
	if normalizedText != text {
		b.log.WarnContext(ctx, "Message text had invalid UTF-8 and was normalized",
			"chatID", chatID,
			"originalLen", len(text),
			"normalizedLen", len(normalizedText))
	}

	return normalizedText
}

func getReturnKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", "menu")},
	}
}

func getMenuKeyboard() [][]tgbotapi.InlineKeyboardButton {
	return [][]tgbotapi.InlineKeyboardButton{
		{
			tgbotapi.NewInlineKeyboardButtonData("📚 My summaries", "menu_list"),
			tgbotapi.NewInlineKeyboardButtonData("📤 Readwise", "menu_readwise"),
		},
	}
}

func getReadwiseKeyboard(hasToken, autoSync bool) [][]tgbotapi.InlineKeyboardButton {
	if !hasToken {
		return getReturnKeyboard()
	}

	autoSyncText := "🔄 Auto-sync: off"
	if autoSync {
		autoSyncText = "🔄 Auto-sync: on"
	}

	return [][]tgbotapi.InlineKeyboardButton{
		{tgbotapi.NewInlineKeyboardButtonData(autoSyncText, "rw_autosync")},
		{tgbotapi.NewInlineKeyboardButtonData("🗑 Remove token", "rw_clear")},
		{tgbotapi.NewInlineKeyboardButtonData("⬅️ Return to menu", "menu")},
	}
}
