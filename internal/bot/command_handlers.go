package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookdigest/internal/markdown"
	"bookdigest/internal/readwise"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const welcomeText = `📚 *Welcome to BookDigest\!*

I keep your book summaries at hand\. I can help you:

– Browse your summaries with /list and open sections one by one
– Copy a section, listen to a summary or download it as Markdown
– Answer questions about the open summary, just write to me
– Import a summary by sending its JSON file \(caption sets the style\)
– Export highlights to Readwise, set up with /readwise`

const readwiseHelpText = `📤 *Readwise*

Send /readwise followed by your access token from readwise\.io/access\_token to connect your account\.`

func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) error {
	_, err := b.sendMessageWithKeyboard(ctx, chatID, welcomeText, b.menuKeyboard)
	return err
}

func (b *Bot) handleMenuCommand(ctx context.Context, chatID int64) error {
	_, err := b.sendMessageWithKeyboard(ctx, chatID, "❔ *Choose an option:*", b.menuKeyboard)
	return err
}

func (b *Bot) handleListCommand(ctx context.Context, chatID int64, userID int64) error {
	summaries, err := b.db.ListUserSummaries(ctx, UserID(userID))

	if len(summaries) == 0 {
		var errs []error
		if err != nil {
			errs = append(errs, fmt.Errorf("list user summaries: %w", err))
		}

		_, sendErr := b.sendMessageWithKeyboard(ctx, chatID,
			"✖️ You have no summaries yet\\. Send me a summary JSON file to import one\\.",
			getReturnKeyboard())
		if sendErr != nil {
			errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
		}

		return errors.Join(errs...)
	}

	var errs []error
	if err != nil {
		errs = append(errs, fmt.Errorf("list user summaries: %w", err))
	}

	shown := summaries[:min(len(summaries), maxListedSummaries)]

	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, len(shown)+1)
	for _, s := range shown {
		style := b.reg.Style(s.Style)

		title := strings.TrimSpace(s.FileName)
		if title == "" {
			title = "Untitled"
		}

		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(
				summaryButtonText(style.Emoji, title, style.Label),
				openCallbackPrefix+s.ID,
			),
		})
	}
	keyboard = append(keyboard, getReturnKeyboard()...)

	text := fmt.Sprintf("🔍 *Found %d summaries:*", len(summaries))
	if len(shown) < len(summaries) {
		text += markdown.EscapeV2(fmt.Sprintf(" (showing the latest %d)", len(shown)))
	}

	if _, err = b.sendMessageWithKeyboard(ctx, chatID, text, keyboard); err != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) handleReadwiseCommand(
	ctx context.Context,
	text string,
	chatID int64,
	userID int64,
	messageID int,
) error {
	token := strings.TrimSpace(strings.TrimPrefix(text, "/readwise"))

	switch {
	case token == "":
		return b.handleReadwiseSettings(ctx, chatID, userID)
	case strings.EqualFold(token, "off"):
		if err := b.db.ClearReadwiseToken(ctx, UserID(userID)); err != nil {
			return b.sendFailure(ctx, chatID, fmt.Errorf("clear Readwise token: %w", err))
		}
		_, err := b.sendMessageWithKeyboard(ctx, chatID, "✅ Readwise is disconnected\\.", b.menuKeyboard)
		return err
	}

	// The token should not stay in the chat history.
	if _, err := b.sender.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		b.log.WarnContext(ctx, "Failed to delete message with token",
			"error", err,
			"chatID", chatID)
	}

	if err := b.readwise.Validate(ctx, token); err != nil {
		if errors.Is(err, readwise.ErrInvalidToken) {
			_, sendErr := b.sendMessageWithKeyboard(ctx, chatID, "❌ Invalid Readwise token\\.", getReturnKeyboard())
			return sendErr
		}
		return b.sendFailure(ctx, chatID, fmt.Errorf("validate Readwise token: %w", err))
	}

	if err := b.db.SetReadwiseToken(ctx, UserID(userID), token); err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("set Readwise token: %w", err))
	}

	if _, err := b.sendMessageWithKeyboard(ctx, chatID, "✅ Readwise is connected\\.", nil); err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}

	return b.handleReadwiseSettings(ctx, chatID, userID)
}

func (b *Bot) handleReadwiseSettings(ctx context.Context, chatID int64, userID int64) error {
	profile, err := b.db.GetProfile(ctx, UserID(userID))
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("get profile: %w", err))
	}

	text := readwiseHelpText
	if profile.HasReadwise() {
		text = "📤 *Readwise*\n\nYour account is connected\\. With auto\\-sync on, new summaries are exported every night\\."
	}

	_, err = b.sendMessageWithKeyboard(ctx, chatID, text, getReadwiseKeyboard(profile.HasReadwise(), profile.AutoSync))
	return err
}

// sendFailure tells the user something went wrong and returns err joined
// with any send error.
func (b *Bot) sendFailure(ctx context.Context, chatID int64, err error) error {
	errs := []error{err}

	if _, sendErr := b.sendMessageWithKeyboard(ctx, chatID, "❌ Failed\\.", getReturnKeyboard()); sendErr != nil {
		errs = append(errs, fmt.Errorf("send message with keyboard: %w", sendErr))
	}

	return errors.Join(errs...)
}
