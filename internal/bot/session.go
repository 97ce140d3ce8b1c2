package bot

import (
	"sync"

	"bookdigest/internal/chat"
	"bookdigest/internal/speech"
	"bookdigest/internal/summary"
	"bookdigest/internal/viewer"
)

// session is the open summary of one chat. Updates are handled one at a
// time, so only the map itself needs locking.
type session struct {
	summaryID string
	style     string
	title     string
	doc       *summary.Document
	view      *viewer.View
	messageID int
	history   []chat.Message
	channel   *speech.Channel
}

func (s *session) remember(question, answer string) {
	s.history = append(s.history,
		chat.Message{Role: chat.RoleUser, Content: question},
		chat.Message{Role: chat.RoleAssistant, Content: answer},
	)

	if len(s.history) > chat.MaxHistory {
		s.history = s.history[len(s.history)-chat.MaxHistory:]
	}
}

// stopSpeaking cancels the chat's narration, if any.
func (s *session) stopSpeaking() {
	if s != nil && s.channel != nil {
		s.channel.Cancel()
	}
}

type sessions struct {
	mu     sync.Mutex
	byChat map[int64]*session
}

func newSessions() *sessions {
	return &sessions{byChat: make(map[int64]*session)}
}

func (s *sessions) get(chatID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.byChat[chatID]
}

// replace stores a new session for the chat and stops the previous one's
// narration.
func (s *sessions) replace(chatID int64, next *session) {
	s.mu.Lock()
	prev := s.byChat[chatID]
	s.byChat[chatID] = next
	s.mu.Unlock()

	prev.stopSpeaking()
}

func (s *sessions) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sess := range s.byChat {
		sess.stopSpeaking()
	}
}
