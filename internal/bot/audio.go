package bot

import (
	"context"
	"fmt"
	"strings"

	"bookdigest/internal/render"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const audioPerformer = "BookDigest"

// audioSink uploads synthesized narration chunks to a chat.
type audioSink struct {
	bot    *Bot
	chatID int64
	title  string
}

func (s *audioSink) Deliver(ctx context.Context, index, total int, audio []byte) error {
	base := strings.TrimSuffix(render.Filename(s.title, ""), ".md")

	name := base + ".mp3"
	title := s.title
	if total > 1 {
		name = fmt.Sprintf("%s-%02d.mp3", base, index+1)
		title = fmt.Sprintf("%s (%d/%d)", s.title, index+1, total)
	}

	config := tgbotapi.NewAudio(s.chatID, tgbotapi.FileBytes{Name: name, Bytes: audio})
	config.Title = title
	config.Performer = audioPerformer

	s.bot.sendChatAction(ctx, s.chatID, tgbotapi.ChatUploadVoice)

	if _, err := s.bot.sender.Send(ctx, config); err != nil {
		return fmt.Errorf("send audio: %w", err)
	}

	return nil
}
