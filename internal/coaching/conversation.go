package coaching

import (
	"time"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
)

// Message is a single turn in a coaching conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation holds one user's coaching exchange, optionally scoped to a
// single task.
type Conversation struct {
	UserID    string    `json:"user_id"`
	TaskID    string    `json:"task_id,omitempty"`
	TaskTitle string    `json:"task_title,omitempty"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
}

func NewConversation(userID, taskID, taskTitle string) *Conversation {
	return &Conversation{
		UserID:    userID,
		TaskID:    taskID,
		TaskTitle: taskTitle,
		CreatedAt: time.Now().UTC(),
	}
}

func (c *Conversation) AddUserMessage(content string) {
	c.Messages = append(c.Messages, Message{Role: "user", Content: content, Timestamp: time.Now().UTC()})
}

func (c *Conversation) AddAssistantMessage(content string) {
	c.Messages = append(c.Messages, Message{Role: "assistant", Content: content, Timestamp: time.Now().UTC()})
}

// History returns the most recent messages in the provider's wire shape.
// A limit of zero or less returns everything.
func (c *Conversation) History(limit int) []anthropic.Message {
	msgs := c.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]anthropic.Message, len(msgs))
	for i, m := range msgs {
		out[i] = anthropic.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
