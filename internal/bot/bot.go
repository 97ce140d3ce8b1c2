// Package bot is the Telegram front end: it lists a user's summaries and
// shows them as collapsible views with copy, listen, download and export
// actions.
package bot

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"bookdigest/internal/chat"
	"bookdigest/internal/domain"
	"bookdigest/internal/library"
	"bookdigest/internal/ratelimiter"
	"bookdigest/internal/registry"
	"bookdigest/internal/render"
	"bookdigest/internal/speech"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxBackoffSeconds         = 60
	initialBackoffSeconds     = 3
	backoffGrowthFactor       = 2
	resetOffsetBackoffSeconds = 30
	updateProcessingTimeout   = 90 * time.Second
	downloadTimeout           = 20 * time.Second

	BotUpdateTimeout = 60
)

type sender interface {
	Send(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type fileLinker interface {
	GetFileDirectURL(fileID string) (string, error)
}

type Store interface {
	AddSummary(ctx context.Context, s domain.Summary) (domain.Summary, error)
	ListUserSummaries(ctx context.Context, userID string) ([]domain.Summary, error)
	GetProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	SetReadwiseToken(ctx context.Context, userID, token string) error
	ClearReadwiseToken(ctx context.Context, userID string) error
	SetAutoSync(ctx context.Context, userID string, enabled bool) error
}

type TokenValidator interface {
	Validate(ctx context.Context, token string) error
}

// Deps are the services the bot drives. Assistant and Synthesizer are
// optional; the matching actions are hidden when they are nil.
type Deps struct {
	Store       Store
	Library     *library.Library
	Readwise    TokenValidator
	Assistant   chat.Answerer
	Synthesizer speech.Synthesizer
}

type Bot struct {
	api          *tgbotapi.BotAPI
	rateLimiter  *ratelimiter.RateLimiter
	sender       sender
	files        fileLinker
	http         *http.Client
	db           Store
	library      *library.Library
	renderer     *render.Renderer
	reg          *registry.Registry
	readwise     TokenValidator
	assistant    chat.Answerer
	synth        speech.Synthesizer
	sessions     *sessions
	allowedUsers []int64
	menuKeyboard [][]tgbotapi.InlineKeyboardButton
	log          *slog.Logger
}

func New(
	token string,
	deps Deps,
	allowedUsers []int64,
	log *slog.Logger,
) (*Bot, error) {
	token = strings.TrimSpace(token)

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}

	rateLimiter := ratelimiter.New(api, log)

	b := newBot(rateLimiter, api, deps, allowedUsers, log)
	b.api = api
	b.rateLimiter = rateLimiter

	return b, nil
}

func newBot(
	s sender,
	files fileLinker,
	deps Deps,
	allowedUsers []int64,
	log *slog.Logger,
) *Bot {
	renderer := deps.Library.Renderer()

	return &Bot{
		sender:       s,
		files:        files,
		http:         &http.Client{Timeout: downloadTimeout},
		db:           deps.Store,
		library:      deps.Library,
		renderer:     renderer,
		reg:          renderer.Registry(),
		readwise:     deps.Readwise,
		assistant:    deps.Assistant,
		synth:        deps.Synthesizer,
		sessions:     newSessions(),
		allowedUsers: allowedUsers,
		menuKeyboard: getMenuKeyboard(),
		log:          log,
	}
}

func (b *Bot) Start(ctx context.Context) {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = BotUpdateTimeout

	backoffSeconds := initialBackoffSeconds

	for {
		select {
		case <-ctx.Done():
			b.log.InfoContext(ctx, "Bot context is done",
				"error", ctx.Err())
			return
		default:
		}

		updates := b.api.GetUpdatesChan(updateConfig)
		updatesClosed := false

		for !updatesClosed {
			select {
			case <-ctx.Done():
				b.log.InfoContext(ctx, "Bot context is done",
					"error", ctx.Err())
				b.api.StopReceivingUpdates()
				return

			case update, ok := <-updates:
				if !ok {
					updatesClosed = true
					continue
				}
				updateConfig.Offset = update.UpdateID + 1

				b.handleUpdate(ctx, &update)
			}
		}

		if ctx.Err() != nil {
			return
		}

		b.log.WarnContext(ctx, "Update channel is closed, reconnecting...",
			"offset", updateConfig.Offset,
			"backoffSeconds", backoffSeconds)

		time.Sleep(time.Duration(backoffSeconds) * time.Second)

		backoffSeconds = updateBackoffSeconds(backoffSeconds)

		if backoffSeconds >= resetOffsetBackoffSeconds {
			updateConfig.Offset = 0
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	updateCtx, cancel := context.WithTimeout(ctx, updateProcessingTimeout)
	defer cancel()

	switch {
	case update.Message != nil && update.Message.From != nil:
		chatID, chatType := chatContext(update.Message.Chat)

		userID := update.Message.From.ID
		if !b.userAllowed(userID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", userID,
				"chatID", chatID,
				"username", update.Message.From.UserName,
				"chatType", chatType)

			return
		}

		if err := b.handleMessage(updateCtx, update.Message); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle message",
				"error", err,
				"chatID", chatID,
				"userID", userID,
				"chatType", chatType,
				"messageID", update.Message.MessageID)
		}

	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		chatID := callbackChatID(update.CallbackQuery)

		if !b.userAllowed(update.CallbackQuery.From.ID) {
			b.log.DebugContext(updateCtx, "User is not allowed",
				"userID", update.CallbackQuery.From.ID,
				"chatID", chatID,
				"username", update.CallbackQuery.From.UserName,
				"data", update.CallbackQuery.Data)

			return
		}

		if chatID == 0 {
			return
		}

		if err := b.handleCallbackQuery(updateCtx, update.CallbackQuery); err != nil {
			b.log.ErrorContext(updateCtx, "Failed to handle callback query",
				"error", err,
				"chatID", chatID,
				"userID", update.CallbackQuery.From.ID,
				"data", update.CallbackQuery.Data,
				"messageID", callbackMessageID(update.CallbackQuery))
		}
	}
}

func (b *Bot) Stop() {
	b.sessions.stopAll()

	if b.rateLimiter != nil {
		b.rateLimiter.Stop()
	}
}

func (b *Bot) userAllowed(userID int64) bool {
	return len(b.allowedUsers) == 0 || slices.Contains(b.allowedUsers, userID)
}

// UserID is the store key of a Telegram user.
func UserID(telegramID int64) string {
	return strconv.FormatInt(telegramID, 10)
}

func chatContext(chat *tgbotapi.Chat) (int64, string) {
	if chat == nil {
		return 0, ""
	}

	return chat.ID, chat.Type
}

func callbackChatID(cb *tgbotapi.CallbackQuery) int64 {
	if cb != nil && cb.Message != nil && cb.Message.Chat != nil {
		return cb.Message.Chat.ID
	}

	return 0
}

func callbackMessageID(cb *tgbotapi.CallbackQuery) int {
	if cb != nil && cb.Message != nil {
		return cb.Message.MessageID
	}

	return 0
}

func updateBackoffSeconds(backoffSeconds int) int {
	if backoffSeconds < maxBackoffSeconds {
		backoffSeconds *= backoffGrowthFactor
		if backoffSeconds > maxBackoffSeconds {
			backoffSeconds = maxBackoffSeconds
		}
	}
	return backoffSeconds
}
