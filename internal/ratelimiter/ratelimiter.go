// Package ratelimiter serializes outgoing Telegram messages and spaces them
// per chat to stay under the Bot API flood limits.
package ratelimiter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const queueSize = 1000

// Limits is the minimum spacing between two posts to the same chat. Uploads
// such as narration audio and exported files take UploadFactor slots.
type Limits struct {
	Private      time.Duration
	Group        time.Duration
	UploadFactor int
}

func DefaultLimits() Limits {
	return Limits{
		Private:      time.Second,
		Group:        3 * time.Second,
		UploadFactor: 2,
	}
}

// API is the part of the Bot API client the limiter drives.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type request struct {
	message  tgbotapi.Chattable
	response chan response
}

type response struct {
	message tgbotapi.Message
	err     error
}

type RateLimiter struct {
	api    API
	limits Limits
	queue  chan request
	next   map[int64]time.Time
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger
}

func New(api API, log *slog.Logger) *RateLimiter {
	return NewWithLimits(api, DefaultLimits(), log)
}

func NewWithLimits(api API, limits Limits, log *slog.Logger) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())

	rl := &RateLimiter{
		api:    api,
		limits: limits,
		queue:  make(chan request, queueSize),
		next:   make(map[int64]time.Time),
		ctx:    ctx,
		cancel: cancel,
		log:    log,
	}

	go rl.processQueue()

	return rl
}

// Send queues a message and waits until it is sent, ctx is done or the
// limiter is stopped.
func (rl *RateLimiter) Send(ctx context.Context, message tgbotapi.Chattable) (tgbotapi.Message, error) {
	req := request{
		message:  message,
		response: make(chan response, 1),
	}

	select {
	case rl.queue <- req:
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	case <-rl.ctx.Done():
		return tgbotapi.Message{}, rl.ctx.Err()
	}

	select {
	case resp := <-req.response:
		return resp.message, resp.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	}
}

// Request calls methods that do not post to a chat, like callback answers
// and chat actions, without queueing.
func (rl *RateLimiter) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return rl.api.Request(c)
}

func (rl *RateLimiter) Stop() {
	rl.cancel()
}

func (rl *RateLimiter) processQueue() {
	for {
		select {
		case req := <-rl.queue:
			rl.handleRequest(req)
		case <-rl.ctx.Done():
			rl.drain()
			return
		}
	}
}

func (rl *RateLimiter) drain() {
	for {
		select {
		case req := <-rl.queue:
			req.response <- response{err: rl.ctx.Err()}
		default:
			return
		}
	}
}

func (rl *RateLimiter) handleRequest(req request) {
	target := classify(req.message)

	if wait := rl.reserve(target, time.Now()); wait > 0 {
		rl.log.DebugContext(rl.ctx, "Rate limiting message",
			"chatID", target.chatID,
			"delay", wait,
			"upload", target.upload,
			"chattableType", fmt.Sprintf("%T", req.message),
			"queueLen", len(rl.queue))

		select {
		case <-time.After(wait):
		case <-rl.ctx.Done():
			req.response <- response{err: rl.ctx.Err()}
			return
		}
	}

	message, err := rl.api.Send(req.message)
	req.response <- response{
		message: message,
		err:     err,
	}
}

// reserve books the next free slot of the target chat and returns how long
// to wait for it.
func (rl *RateLimiter) reserve(target target, now time.Time) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	start := now
	if next, ok := rl.next[target.chatID]; ok && next.After(now) {
		start = next
	}

	rl.next[target.chatID] = start.Add(rl.spacing(target))

	return start.Sub(now)
}

func (rl *RateLimiter) spacing(target target) time.Duration {
	rate := rl.limits.Private
	if target.chatID < 0 {
		rate = rl.limits.Group
	}

	if target.upload && rl.limits.UploadFactor > 1 {
		rate *= time.Duration(rl.limits.UploadFactor)
	}

	return rate
}

type target struct {
	chatID int64
	upload bool
}

func classify(message tgbotapi.Chattable) target {
	switch m := message.(type) {
	case tgbotapi.MessageConfig:
		return target{chatID: m.ChatID}
	case tgbotapi.EditMessageTextConfig:
		return target{chatID: m.ChatID}
	case tgbotapi.EditMessageReplyMarkupConfig:
		return target{chatID: m.ChatID}
	case tgbotapi.DeleteMessageConfig:
		return target{chatID: m.ChatID}
	case tgbotapi.ChatActionConfig:
		return target{chatID: m.ChatID}
	case tgbotapi.AudioConfig:
		return target{chatID: m.ChatID, upload: true}
	case tgbotapi.DocumentConfig:
		return target{chatID: m.ChatID, upload: true}
	default:
		return target{}
	}
}
