package bot

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"bookdigest/internal/chat"
	"bookdigest/internal/database"
	"bookdigest/internal/domain"
	"bookdigest/internal/library"
	"bookdigest/internal/render"
	"bookdigest/internal/summary"
	"bookdigest/internal/viewer"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	testChatID  int64 = 7
	testContent       = `{
  "title": "Deep Work",
  "overview": "Focus **matters**.",
  "key_insights": [
    {"text": "Depth is rare", "page": 12},
    {"principle": "Rule", "explanation": "Work deeply", "page": 3}
  ]
}`
)

type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (s *fakeSender) Send(_ context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sent = append(s.sent, c)
	return tgbotapi.Message{MessageID: 100 + len(s.sent)}, nil
}

func (s *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *fakeSender) last() tgbotapi.Chattable {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sent) == 0 {
		return nil
	}
	return s.sent[len(s.sent)-1]
}

func (s *fakeSender) audios() []tgbotapi.AudioConfig {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []tgbotapi.AudioConfig
	for _, c := range s.sent {
		if a, ok := c.(tgbotapi.AudioConfig); ok {
			out = append(out, a)
		}
	}
	return out
}

type fakeStore struct {
	summaries map[string]domain.Summary
	profile   domain.UserProfile
}

func (s *fakeStore) AddSummary(_ context.Context, sum domain.Summary) (domain.Summary, error) {
	sum.ID = "imported"
	s.summaries[sum.ID] = sum
	return sum, nil
}

func (s *fakeStore) GetSummary(_ context.Context, userID, id string) (domain.Summary, error) {
	sum, ok := s.summaries[id]
	if !ok || sum.UserID != userID {
		return domain.Summary{}, database.ErrNotFound
	}
	return sum, nil
}

func (s *fakeStore) ListUserSummaries(_ context.Context, userID string) ([]domain.Summary, error) {
	var out []domain.Summary
	for _, sum := range s.summaries {
		if sum.UserID == userID {
			out = append(out, sum)
		}
	}
	return out, nil
}

func (s *fakeStore) GetProfile(context.Context, string) (domain.UserProfile, error) {
	return s.profile, nil
}

func (s *fakeStore) SetReadwiseToken(_ context.Context, _ string, token string) error {
	s.profile.ReadwiseToken = token
	return nil
}

func (s *fakeStore) ClearReadwiseToken(context.Context, string) error {
	s.profile.ReadwiseToken = ""
	return nil
}

func (s *fakeStore) SetAutoSync(_ context.Context, _ string, enabled bool) error {
	s.profile.AutoSync = enabled
	return nil
}

func (s *fakeStore) ListAutoSyncUsers(context.Context) ([]domain.UserProfile, error) {
	return nil, nil
}

func (s *fakeStore) ListUnexportedSummaries(context.Context, string) ([]domain.Summary, error) {
	return nil, nil
}

func (s *fakeStore) RecordExport(context.Context, domain.Export) error {
	return nil
}

type fakeExporter struct{}

func (fakeExporter) Export(_ context.Context, _ string, highlights []render.Highlight) (int, error) {
	return len(highlights), nil
}

type fakeValidator struct{}

func (fakeValidator) Validate(context.Context, string) error { return nil }

type fakeAssistant struct {
	got chat.Conversation
}

func (a *fakeAssistant) Answer(_ context.Context, conv chat.Conversation) (string, error) {
	a.got = conv
	return "It is on **page 12**.", nil
}

type fakeSynth struct{}

func (fakeSynth) Synthesize(_ context.Context, text string) ([]byte, error) {
	return []byte("mp3:" + text), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBot(t *testing.T) (*Bot, *fakeSender, *fakeStore, *fakeAssistant) {
	t.Helper()

	store := &fakeStore{summaries: map[string]domain.Summary{
		"s1": {ID: "s1", UserID: UserID(testChatID), FileName: "deep-work", Style: "executive", Content: testContent},
	}}
	log := discardLogger()
	lib := library.New(store, summary.NewCache(16, time.Minute), nil, fakeExporter{}, log)
	assistant := &fakeAssistant{}
	sender := &fakeSender{}

	b := newBot(sender, nil, Deps{
		Store:       store,
		Library:     lib,
		Readwise:    fakeValidator{},
		Assistant:   assistant,
		Synthesizer: fakeSynth{},
	}, nil, log)
	t.Cleanup(b.Stop)

	return b, sender, store, assistant
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testChatID},
		Message: &tgbotapi.Message{MessageID: 101, Chat: &tgbotapi.Chat{ID: testChatID}},
		Data:    data,
	}
}

func TestOpenSummarySendsCollapsedView(t *testing.T) {
	b, sender, _, _ := newTestBot(t)

	if err := b.handleCallbackQuery(context.Background(), callback("open:s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	message, ok := sender.last().(tgbotapi.MessageConfig)
	if !ok {
		t.Fatalf("unexpected chattable: %T", sender.last())
	}
	if message.ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Fatalf("unexpected parse mode: %q", message.ParseMode)
	}
	for _, want := range []string{"*Deep Work*", "▸ *Overview*", "▸ *Key Insights*", "What are the main takeaways?"} {
		if !strings.Contains(message.Text, want) {
			t.Fatalf("view text is missing %q:\n%s", want, message.Text)
		}
	}
	if strings.Contains(message.Text, "Depth is rare") {
		t.Fatalf("collapsed view shows section content:\n%s", message.Text)
	}

	sess := b.sessions.get(testChatID)
	if sess == nil || sess.summaryID != "s1" || sess.messageID != 101 {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestOpenMissingSummary(t *testing.T) {
	b, sender, _, _ := newTestBot(t)

	if err := b.openSummary(context.Background(), testChatID, testChatID, "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	message := sender.last().(tgbotapi.MessageConfig)
	if !strings.Contains(message.Text, "not found") {
		t.Fatalf("unexpected text: %q", message.Text)
	}
	if b.sessions.get(testChatID) != nil {
		t.Fatalf("unexpected session for a missing summary")
	}
}

func TestSectionToggleEditsView(t *testing.T) {
	b, sender, _, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.handleCallbackQuery(ctx, callback("open:s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.handleCallbackQuery(ctx, callback("sec:1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	edit, ok := sender.last().(tgbotapi.EditMessageTextConfig)
	if !ok {
		t.Fatalf("unexpected chattable: %T", sender.last())
	}
	if edit.MessageID != 101 {
		t.Fatalf("unexpected edited message: %d", edit.MessageID)
	}
	for _, want := range []string{"▾ *Key Insights*", `• Depth is rare _\(p\. 12\)_`, `• *Rule* — Work deeply _\(p\. 3\)_`} {
		if !strings.Contains(edit.Text, want) {
			t.Fatalf("expanded view is missing %q:\n%s", want, edit.Text)
		}
	}
	if edit.ReplyMarkup == nil || len(edit.ReplyMarkup.InlineKeyboard[1]) != 2 {
		t.Fatalf("expanded section has no copy button")
	}
}

func TestCopySendsPlainMarkdown(t *testing.T) {
	b, sender, _, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.handleCallbackQuery(ctx, callback("open:s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.handleCallbackQuery(ctx, callback("copy:1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	message := sender.last().(tgbotapi.MessageConfig)
	if message.ParseMode != "" {
		t.Fatalf("copy text must be sent without parse mode")
	}
	want := "- Depth is rare *(p. 12)*\n- **Rule** — Work deeply *(p. 3)*"
	if message.Text != want {
		t.Fatalf("unexpected copy text: %q", message.Text)
	}
}

func TestMarkdownDownload(t *testing.T) {
	b, sender, _, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.handleCallbackQuery(ctx, callback("open:s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.handleCallbackQuery(ctx, callback("md")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	document, ok := sender.last().(tgbotapi.DocumentConfig)
	if !ok {
		t.Fatalf("unexpected chattable: %T", sender.last())
	}
	file := document.File.(tgbotapi.FileBytes)
	if file.Name != "deep-work-executive.md" {
		t.Fatalf("unexpected file name: %q", file.Name)
	}
	if !strings.HasPrefix(string(file.Bytes), "# Deep Work\n") {
		t.Fatalf("unexpected markdown: %q", file.Bytes)
	}
}

func TestQuestionUsesOpenSummary(t *testing.T) {
	b, sender, _, assistant := newTestBot(t)
	ctx := context.Background()

	if err := b.handleQuestion(ctx, "Where is depth?", testChatID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(sender.last().(tgbotapi.MessageConfig).Text, "Open a summary first") {
		t.Fatalf("expected a hint without an open summary")
	}

	if err := b.handleCallbackQuery(ctx, callback("open:s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.handleQuestion(ctx, "Where is depth?", testChatID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assistant.got.Document == nil || assistant.got.Title != "Deep Work" {
		t.Fatalf("unexpected conversation: %+v", assistant.got)
	}
	if got := sender.last().(tgbotapi.MessageConfig).Text; got != `It is on *page 12*\.` {
		t.Fatalf("unexpected answer text: %q", got)
	}
	if n := len(b.sessions.get(testChatID).history); n != 2 {
		t.Fatalf("unexpected history length: %d", n)
	}
}

func TestListenDeliversAudio(t *testing.T) {
	b, sender, _, _ := newTestBot(t)
	ctx := context.Background()

	if err := b.handleCallbackQuery(ctx, callback("open:s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.handleCallbackQuery(ctx, callback("listen")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(sender.audios()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("no audio was delivered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	audio := sender.audios()[0]
	if audio.Title != "Deep Work" || audio.Performer != audioPerformer {
		t.Fatalf("unexpected audio metadata: %q %q", audio.Title, audio.Performer)
	}
	if !strings.HasPrefix(string(audio.File.(tgbotapi.FileBytes).Bytes), "mp3:Deep Work.") {
		t.Fatalf("unexpected audio payload")
	}
}

func TestCallbackWithoutSession(t *testing.T) {
	b, sender, _, _ := newTestBot(t)

	if err := b.handleCallbackQuery(context.Background(), callback("sec:0")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	message := sender.last().(tgbotapi.MessageConfig)
	if !strings.Contains(message.Text, "Found 1 summaries") {
		t.Fatalf("expected the summary list, got %q", message.Text)
	}
}

func TestReadwiseExportQuery(t *testing.T) {
	b, sender, store, _ := newTestBot(t)
	ctx := context.Background()
	store.profile = domain.UserProfile{UserID: UserID(testChatID), ReadwiseToken: "tok"}

	if err := b.handleCallbackQuery(ctx, callback("open:s1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := b.handleCallbackQuery(ctx, callback("rw")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answer := sender.requests[len(sender.requests)-1].(tgbotapi.CallbackConfig)
	if answer.Text != "✅ Exported 3 highlights." {
		t.Fatalf("unexpected callback answer: %q", answer.Text)
	}
}

func TestReadwiseCommandStoresToken(t *testing.T) {
	b, _, store, _ := newTestBot(t)

	if err := b.handleReadwiseCommand(context.Background(), "/readwise abc123", testChatID, testChatID, 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.profile.ReadwiseToken != "abc123" {
		t.Fatalf("unexpected token: %q", store.profile.ReadwiseToken)
	}

	if err := b.handleReadwiseCommand(context.Background(), "/readwise off", testChatID, testChatID, 6); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.profile.ReadwiseToken != "" {
		t.Fatalf("token was not cleared")
	}
}

func TestUserAllowed(t *testing.T) {
	b := &Bot{}
	if !b.userAllowed(1) {
		t.Fatalf("empty allow list must allow everyone")
	}

	b.allowedUsers = []int64{2}
	if b.userAllowed(1) || !b.userAllowed(2) {
		t.Fatalf("unexpected allow list result")
	}
}

func TestJoinWithinLimit(t *testing.T) {
	lines := []string{"title", strings.Repeat("a", 10), strings.Repeat("b", 10)}

	if got := joinWithinLimit(lines, 100); got != strings.Join(lines, "\n") {
		t.Fatalf("unexpected text: %q", got)
	}

	got := joinWithinLimit(lines, 20)
	if got != "title\n"+strings.Repeat("a", 10)+"\n…" {
		t.Fatalf("unexpected truncated text: %q", got)
	}
}

func TestViewTextWithoutSuggestion(t *testing.T) {
	doc, err := summary.Parse("study", `{"title":"T","overview":"Plain."}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	view, err := viewer.New(nil, doc, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := viewText(view, "")
	if got != "*T*\n_📚 Study Summary_\n\n▸ *Overview*" {
		t.Fatalf("unexpected view text: %q", got)
	}
}
