package ratelimiter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type recordingAPI struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (a *recordingAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sent = append(a.sent, c)
	return tgbotapi.Message{MessageID: len(a.sent)}, nil
}

func (a *recordingAPI) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReserve(t *testing.T) {
	rl := &RateLimiter{limits: DefaultLimits(), next: make(map[int64]time.Time)}
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		target target
		at     time.Time
		want   time.Duration
	}{
		{"first private message", target{chatID: 1}, now, 0},
		{"second private message", target{chatID: 1}, now, time.Second},
		{"private upload after two messages", target{chatID: 1, upload: true}, now, 2 * time.Second},
		{"message after upload", target{chatID: 1}, now, 4 * time.Second},
		{"other chat is independent", target{chatID: 2}, now, 0},
		{"first group message", target{chatID: -1}, now, 0},
		{"second group message", target{chatID: -1}, now.Add(time.Second), 2 * time.Second},
		{"idle chat resets", target{chatID: 2}, now.Add(time.Minute), 0},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := rl.reserve(test.target, test.at); got != test.want {
				t.Fatalf("unexpected wait: %v", got)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message tgbotapi.Chattable
		want    target
	}{
		{"message", tgbotapi.NewMessage(12345, "test"), target{chatID: 12345}},
		{"chat action", tgbotapi.NewChatAction(67890, tgbotapi.ChatTyping), target{chatID: 67890}},
		{"audio", tgbotapi.NewAudio(42, tgbotapi.FileBytes{Name: "a.mp3"}), target{chatID: 42, upload: true}},
		{"document", tgbotapi.NewDocument(-42, tgbotapi.FileBytes{Name: "a.md"}), target{chatID: -42, upload: true}},
		{"edit", tgbotapi.NewEditMessageText(7, 1, "text"), target{chatID: 7}},
		{"callback", tgbotapi.NewCallback("id", "text"), target{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := classify(test.message); got != test.want {
				t.Fatalf("unexpected target: %+v", got)
			}
		})
	}
}

func TestSend(t *testing.T) {
	api := &recordingAPI{}
	rl := New(api, discardLogger())
	defer rl.Stop()

	msg, err := rl.Send(context.Background(), tgbotapi.NewMessage(1, "hello"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.MessageID != 1 {
		t.Fatalf("unexpected message ID: %d", msg.MessageID)
	}
}

func TestSendAfterStop(t *testing.T) {
	rl := New(&recordingAPI{}, discardLogger())
	rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := rl.Send(ctx, tgbotapi.NewMessage(1, "hello"))
	if err == nil {
		t.Fatalf("expected an error after stop")
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("unexpected error: %v", err)
	}
}
