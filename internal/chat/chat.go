// Package chat answers reader questions about a summary.
package chat

import (
	"context"
	"errors"
	"strings"

	"bookdigest/internal/summary"
)

// MaxHistory is how many of the latest messages are sent to the model.
const MaxHistory = 20

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is a question thread about one summary. The last message must
// come from the user.
type Conversation struct {
	Document *summary.Document
	Title    string
	Messages []Message
}

// Answerer produces the assistant's next reply.
type Answerer interface {
	Answer(ctx context.Context, conv Conversation) (string, error)
}

var (
	ErrNoQuestion = errors.New("conversation has no question")
	ErrNoDocument = errors.New("conversation has no summary")
)

// Trim drops blank and unknown-role messages and keeps the latest
// MaxHistory. The result always ends with a user message.
func Trim(messages []Message) ([]Message, error) {
	kept := make([]Message, 0, len(messages))
	for _, m := range messages {
		m.Content = strings.TrimSpace(m.Content)
		if m.Content == "" || (m.Role != RoleUser && m.Role != RoleAssistant) {
			continue
		}
		kept = append(kept, m)
	}

	if len(kept) == 0 || kept[len(kept)-1].Role != RoleUser {
		return nil, ErrNoQuestion
	}

	if len(kept) > MaxHistory {
		kept = kept[len(kept)-MaxHistory:]
	}

	return kept, nil
}
