package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bookdigest/internal/database"
	"bookdigest/internal/langdetect"
	"bookdigest/internal/readwise"
	"bookdigest/internal/render"
	"bookdigest/internal/speech"
	"bookdigest/internal/viewer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID
	userID := callback.From.ID
	data := strings.TrimSpace(callback.Data)

	switch data {
	case "menu":
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleMenuCommand(ctx, chatID)
		})
	case "menu_list":
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleListCommand(ctx, chatID, userID)
		})
	case "menu_readwise":
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.handleReadwiseSettings(ctx, chatID, userID)
		})
	case "rw_autosync":
		return b.handleAutoSyncQuery(ctx, callback)
	case "rw_clear":
		return b.withCallbackAnswer(callback, "✅ Readwise is disconnected.", func() error {
			if err := b.db.ClearReadwiseToken(ctx, UserID(userID)); err != nil {
				return fmt.Errorf("clear Readwise token: %w", err)
			}
			return b.handleReadwiseSettings(ctx, chatID, userID)
		})
	}

	if id, ok := strings.CutPrefix(data, openCallbackPrefix); ok {
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.openSummary(ctx, chatID, userID, id)
		})
	}

	sess := b.sessions.get(chatID)
	if sess == nil {
		return b.withCallbackAnswer(callback, "Open the summary again.", func() error {
			return b.handleListCommand(ctx, chatID, userID)
		})
	}

	if i, ok := sectionIndex(data, sectionCallbackPrefix); ok {
		return b.handleSectionQuery(ctx, callback, sess, i)
	}
	if i, ok := sectionIndex(data, copyCallbackPrefix); ok {
		return b.handleCopyQuery(ctx, callback, sess, i)
	}

	switch data {
	case "collapse":
		sess.view.CollapseAll()
		return b.withEmptyCallbackAnswer(callback, func() error {
			return b.refreshView(ctx, chatID, sess)
		})
	case "listen":
		return b.handleListenQuery(ctx, callback, sess)
	case "pause":
		return b.handlePauseQuery(ctx, callback, sess)
	case "stop":
		sess.stopSpeaking()
		return b.withCallbackAnswer(callback, "⏹ Stopped.", func() error {
			return b.refreshView(ctx, chatID, sess)
		})
	case "md":
		return b.handleMarkdownQuery(ctx, callback, sess)
	case "print":
		return b.handlePrintQuery(ctx, callback, sess)
	case "rw":
		return b.handleExportQuery(ctx, callback, sess)
	}

	return b.withEmptyCallbackAnswer(callback, func() error { return nil })
}

// openSummary loads a summary, replaces the chat's session and sends the
// collapsed view.
func (b *Bot) openSummary(ctx context.Context, chatID int64, userID int64, summaryID string) error {
	s, doc, err := b.library.Open(ctx, UserID(userID), summaryID)
	if errors.Is(err, database.ErrNotFound) {
		_, sendErr := b.sendMessageWithKeyboard(ctx, chatID, "✖️ Summary is not found\\.", getReturnKeyboard())
		return sendErr
	}
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("open summary: %w", err))
	}

	view, err := viewer.New(b.reg, doc, s.FileName)
	if err != nil {
		return b.sendFailure(ctx, chatID, fmt.Errorf("build view: %w", err))
	}

	sess := &session{
		summaryID: s.ID,
		style:     s.Style,
		title:     view.Title,
		doc:       doc,
		view:      view,
	}
	b.sessions.replace(chatID, sess)

	message, err := b.sendMessageWithKeyboard(ctx, chatID, b.viewText(sess), viewKeyboard(view, b.viewState(sess)))
	if err != nil {
		return fmt.Errorf("send message with keyboard: %w", err)
	}
	sess.messageID = message.MessageID

	return nil
}

func (b *Bot) viewText(sess *session) string {
	var suggestion string
	if b.assistant != nil {
		if suggestions := b.reg.Suggestions(string(langdetect.DetectDocument(sess.doc))); len(suggestions) > 0 {
			suggestion = suggestions[0]
		}
	}

	return viewText(sess.view, suggestion)
}

func (b *Bot) viewState(sess *session) viewState {
	return viewState{
		canListen: b.synth != nil,
		speaking:  sess.channel != nil && sess.channel.Speaking(),
	}
}

func (b *Bot) refreshView(ctx context.Context, chatID int64, sess *session) error {
	text := b.viewText(sess)
	keyboard := viewKeyboard(sess.view, b.viewState(sess))

	if sess.messageID == 0 {
		message, err := b.sendMessageWithKeyboard(ctx, chatID, text, keyboard)
		if err != nil {
			return fmt.Errorf("send message with keyboard: %w", err)
		}
		sess.messageID = message.MessageID
		return nil
	}

	if err := b.editMessageWithKeyboard(ctx, chatID, sess.messageID, text, keyboard); err != nil {
		// Telegram rejects edits that change nothing.
		if strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
		return fmt.Errorf("edit message with keyboard: %w", err)
	}

	return nil
}

func (b *Bot) handleSectionQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, sess *session, i int) error {
	section, ok := sess.view.Section(i)
	if !ok {
		return b.withCallbackAnswer(callback, "Section is not found.", func() error { return nil })
	}

	sess.view.Toggle(section.Key)

	return b.withEmptyCallbackAnswer(callback, func() error {
		return b.refreshView(ctx, callback.Message.Chat.ID, sess)
	})
}

func (b *Bot) handleCopyQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, sess *session, i int) error {
	section, ok := sess.view.Section(i)
	if !ok {
		return b.withCallbackAnswer(callback, "Section is not found.", func() error { return nil })
	}

	text, _ := sess.view.CopyText(section.Key)

	return b.withCallbackAnswer(callback, "📋 "+section.Label, func() error {
		return b.sendPlainText(ctx, callback.Message.Chat.ID, text)
	})
}

func (b *Bot) handleListenQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, sess *session) error {
	chatID := callback.Message.Chat.ID

	if b.synth == nil {
		return b.withCallbackAnswer(callback, "Listening is not available.", func() error { return nil })
	}

	script, err := b.renderer.Speech(sess.doc, sess.title)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("render speech: %w", err))
	}

	if sess.channel == nil {
		sink := &audioSink{bot: b, chatID: chatID, title: sess.title}
		sess.channel = speech.NewChannel(speech.NewSynthesisPlayer(b.synth, sink, speech.MaxInputRunes), b.log)
	}

	narration, err := sess.channel.Start(ctx, script)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("start narration: %w", err))
	}

	b.log.InfoContext(ctx, "Narration is started",
		"chatID", chatID,
		"summaryID", sess.summaryID,
		"narrationID", narration.ID(),
		"scriptLen", len(script))

	return b.withCallbackAnswer(callback, "🔊 Preparing audio…", func() error {
		return b.refreshView(ctx, chatID, sess)
	})
}

func (b *Bot) handlePauseQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, sess *session) error {
	var narration *speech.Narration
	if sess.channel != nil {
		narration = sess.channel.Current()
	}
	if narration == nil {
		return b.withCallbackAnswer(callback, "Nothing is playing.", func() error {
			return b.refreshView(ctx, callback.Message.Chat.ID, sess)
		})
	}

	text := "▶️ Resumed."
	if narration.TogglePause() {
		text = "⏸ Paused."
	}

	return b.withCallbackAnswer(callback, text, func() error { return nil })
}

func (b *Bot) handleMarkdownQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, sess *session) error {
	md, err := b.renderer.Markdown(sess.doc, sess.title)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("render markdown: %w", err))
	}

	return b.withEmptyCallbackAnswer(callback, func() error {
		return b.sendDocument(ctx, callback.Message.Chat.ID, render.Filename(sess.title, sess.style), []byte(md))
	})
}

func (b *Bot) handlePrintQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, sess *session) error {
	html, err := b.renderer.HTML(sess.doc, sess.title)
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("render html: %w", err))
	}

	name := strings.TrimSuffix(render.Filename(sess.title, sess.style), ".md") + ".html"

	return b.withEmptyCallbackAnswer(callback, func() error {
		return b.sendDocument(ctx, callback.Message.Chat.ID, name, []byte(html))
	})
}

func (b *Bot) handleExportQuery(ctx context.Context, callback *tgbotapi.CallbackQuery, sess *session) error {
	count, err := b.library.ExportReadwise(ctx, UserID(callback.From.ID), sess.summaryID)

	switch {
	case err == nil:
		return b.withCallbackAnswer(callback, fmt.Sprintf("✅ Exported %d highlights.", count), func() error { return nil })
	case errors.Is(err, readwise.ErrMissingToken):
		return b.withEmptyCallbackAnswer(callback, func() error {
			_, sendErr := b.sendMessageWithKeyboard(ctx, callback.Message.Chat.ID, readwiseHelpText, getReturnKeyboard())
			return sendErr
		})
	case errors.Is(err, readwise.ErrNothingToExport):
		return b.withCallbackAnswer(callback, "No highlights to export.", func() error { return nil })
	case errors.Is(err, readwise.ErrInvalidToken):
		return b.withCallbackAnswer(callback, "❌ Invalid Readwise token.", func() error { return nil })
	default:
		return b.errorCallbackAnswer(callback, fmt.Errorf("export to Readwise: %w", err))
	}
}

func (b *Bot) handleAutoSyncQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	userID := callback.From.ID

	profile, err := b.db.GetProfile(ctx, UserID(userID))
	if err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("get profile: %w", err))
	}

	if err = b.db.SetAutoSync(ctx, UserID(userID), !profile.AutoSync); err != nil {
		return b.errorCallbackAnswer(callback, fmt.Errorf("set auto-sync: %w", err))
	}

	return b.withCallbackAnswer(callback, "✅ Settings are updated.", func() error {
		return b.handleReadwiseSettings(ctx, callback.Message.Chat.ID, userID)
	})
}

func (b *Bot) withEmptyCallbackAnswer(callback *tgbotapi.CallbackQuery, fn func() error) error {
	return b.withCallbackAnswer(callback, "", fn)
}

func (b *Bot) withCallbackAnswer(callback *tgbotapi.CallbackQuery, text string, fn func() error) error {
	var errs []error

	if _, err := b.sender.Request(tgbotapi.NewCallback(callback.ID, text)); err != nil {
		errs = append(errs, fmt.Errorf("send request: %w", err))
	}

	if err := fn(); err != nil {
		errs = append(errs, fmt.Errorf("call fn: %w", err))
	}

	return errors.Join(errs...)
}

func (b *Bot) errorCallbackAnswer(callback *tgbotapi.CallbackQuery, err error) error {
	if _, sendErr := b.sender.Request(tgbotapi.NewCallback(callback.ID, "❌ Failed.")); sendErr != nil {
		return errors.Join(err, fmt.Errorf("send request: %w", sendErr))
	}
	return err
}
