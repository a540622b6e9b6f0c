package entities

import (
	"errors"
	"time"
)

// ChatTurn is the role/content projection of a message sent to the chat backend
type ChatTurn struct {
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
}

// Conversation is the ordered message log owned by one session controller.
// It is not safe for concurrent use.
type Conversation struct {
	messages []Message
	now      func() time.Time
}

// NewConversation creates an empty conversation using the wall clock
func NewConversation() *Conversation {
	return NewConversationWithClock(time.Now)
}

// NewConversationWithClock creates an empty conversation with a custom clock
func NewConversationWithClock(now func() time.Time) *Conversation {
	if now == nil {
		now = time.Now
	}
	return &Conversation{
		messages: make([]Message, 0),
		now:      now,
	}
}

// Append adds a message and returns it. Timestamps are kept strictly
// increasing even when the clock stalls or goes backwards.
func (c *Conversation) Append(role MessageRole, content string) (Message, error) {
	if role != MessageRoleUser && role != MessageRoleAssistant {
		return Message{}, errors.New("invalid message role")
	}

	ts := c.now()
	if n := len(c.messages); n > 0 {
		last := c.messages[n-1].Timestamp
		if !ts.After(last) {
			ts = last.Add(time.Nanosecond)
		}
	}

	msg := NewMessage(role, content, ts)
	c.messages = append(c.messages, msg)
	return msg, nil
}

// Messages returns a copy of the log
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Find returns the message with the given id
func (c *Conversation) Find(id string) (Message, bool) {
	for _, m := range c.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// Projection returns the role/content pairs of the log, without ids or timestamps
func (c *Conversation) Projection() []ChatTurn {
	turns := make([]ChatTurn, 0, len(c.messages))
	for _, m := range c.messages {
		turns = append(turns, ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}
