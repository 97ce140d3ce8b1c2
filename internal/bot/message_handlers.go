package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"slices"
	"strings"

	"bookdigest/internal/chat"
	"bookdigest/internal/domain"
	"bookdigest/internal/markdown"
	"bookdigest/internal/summary"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	defaultImportStyle = "executive"
	maxImportBytes     = 1 << 20
)

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID

	if message.Document != nil {
		return b.withChatAction(ctx, chatID, tgbotapi.ChatUploadDocument, func() error {
			return b.handleDocument(ctx, message)
		})
	}

	text := strings.TrimSpace(message.Text)

	switch {
	case strings.HasPrefix(text, "/start"):
		return b.handleStartCommand(ctx, chatID)
	case strings.HasPrefix(text, "/menu"):
		return b.handleMenuCommand(ctx, chatID)
	case strings.HasPrefix(text, "/list"):
		return b.handleListCommand(ctx, chatID, message.From.ID)
	case strings.HasPrefix(text, "/readwise"):
		return b.handleReadwiseCommand(ctx, text, chatID, message.From.ID, message.MessageID)
	case text == "":
		return nil
	default:
		return b.withSpinner(ctx, chatID, func() error {
			return b.handleQuestion(ctx, text, chatID)
		})
	}
}

// handleQuestion answers free text about the open summary.
func (b *Bot) handleQuestion(ctx context.Context, question string, chatID int64) error {
	sess := b.sessions.get(chatID)
	if sess == nil {
		_, err := b.sendMessageWithKeyboard(ctx, chatID,
			"✖️ Open a summary first, then ask me about it\\.", b.menuKeyboard)
		return err
	}

	if b.assistant == nil {
		_, err := b.sendMessageWithKeyboard(ctx, chatID,
			"✖️ Questions are not available right now\\.", getReturnKeyboard())
		return err
	}

	messages := append(slices.Clone(sess.history), chat.Message{Role: chat.RoleUser, Content: question})

	answer, err := b.assistant.Answer(ctx, chat.Conversation{
		Document: sess.doc,
		Title:    sess.title,
		Messages: messages,
	})
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("answer question: %w", err))
	}

	sess.remember(question, answer)

	text := markdown.FromSummary(answer)
	if len([]rune(text)) > maxMessageRunes {
		text = markdown.Truncate(markdown.EscapeV2(answer), maxMessageRunes)
	}

	_, err = b.sendMessageWithKeyboard(ctx, chatID, text, nil)
	return err
}

// handleDocument imports a summary JSON file. The caption, when it names a
// known style, sets the summary style.
func (b *Bot) handleDocument(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	document := message.Document

	if !strings.EqualFold(path.Ext(document.FileName), ".json") {
		_, err := b.sendMessageWithKeyboard(ctx, chatID,
			"✖️ Send a summary as a \\.json file\\.", getReturnKeyboard())
		return err
	}

	content, err := b.downloadFile(ctx, document.FileID)
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("download file: %w", err))
	}

	style := strings.ToLower(strings.TrimSpace(message.Caption))
	if !b.reg.HasStyle(style) {
		style = defaultImportStyle
	}

	doc, err := summary.Parse(style, content)
	if err != nil {
		if errors.Is(err, summary.ErrMalformedDocument) {
			_, sendErr := b.sendMessageWithKeyboard(ctx, chatID,
				"❌ This file is not a summary document\\.", getReturnKeyboard())
			return sendErr
		}
		return b.sendFailure(ctx, chatID, fmt.Errorf("parse summary: %w", err))
	}

	fileName := strings.TrimSuffix(document.FileName, path.Ext(document.FileName))

	s, err := b.db.AddSummary(ctx, domain.Summary{
		UserID:   UserID(message.From.ID),
		FileName: doc.DisplayTitle(fileName),
		Style:    style,
		Content:  content,
	})
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("add summary: %w", err))
	}

	b.log.InfoContext(ctx, "Summary is imported",
		"summaryID", s.ID,
		"userID", s.UserID,
		"style", s.Style,
		"fields", len(doc.Fields),
		"coercions", len(doc.Coercions))

	return b.openSummary(ctx, chatID, message.From.ID, s.ID)
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) (string, error) {
	fileURL, err := b.files.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("get file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if err = resp.Body.Close(); err != nil {
			b.log.ErrorContext(ctx, "Failed to close response body",
				"error", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImportBytes+1))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if len(data) > maxImportBytes {
		return "", fmt.Errorf("file is larger than %d bytes", maxImportBytes)
	}

	return string(data), nil
}
