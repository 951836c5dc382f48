package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTitle is used until the first user message supplies one.
const DefaultTitle = "New Chat"

// titleBudget caps a derived title at roughly thirty characters of content,
// kept to whole words.
const titleBudget = 30

// Conversation is one named chat: metadata plus the full message list. The
// store owns the map from id to Conversation; sessions mutate exactly one at
// a time.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    int64     `json:"created_at"`
	UpdatedAt    int64     `json:"updated_at"`
	MessageCount int       `json:"message_count"`
	LastMessage  string    `json:"last_message,omitempty"`
	Messages     []Message `json:"messages"`
	Status       Status    `json:"-"`
}

// NewConversation creates an empty conversation in the ready state.
func NewConversation() *Conversation {
	now := time.Now().UnixMilli()
	return &Conversation{
		ID:        uuid.NewString(),
		Title:     DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  make([]Message, 0),
		Status:    StatusReady,
	}
}

// Append adds a message and refreshes metadata.
func (c *Conversation) Append(msg Message) {
	c.Messages = append(c.Messages, msg)
	c.RefreshMetadata()
}

// RefreshMetadata recomputes the derived fields: title from the first user
// message, preview from the latest user message, counts, and update time.
func (c *Conversation) RefreshMetadata() {
	c.MessageCount = len(c.Messages)
	c.UpdatedAt = time.Now().UnixMilli()

	c.Title = DefaultTitle
	for _, msg := range c.Messages {
		if msg.IsUser() {
			c.Title = DeriveTitle(msg.Text())
			break
		}
	}

	c.LastMessage = ""
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsUser() {
			c.LastMessage = previewText(c.Messages[i].Text())
			break
		}
	}
}

// LastAssistantIndex returns the index of the most recent assistant message
// via an explicit reverse scan, or -1 when there is none.
func (c *Conversation) LastAssistantIndex() int {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].IsAssistant() {
			return i
		}
	}
	return -1
}

// HasUserMessage reports whether any user turn exists.
func (c *Conversation) HasUserMessage() bool {
	for _, msg := range c.Messages {
		if msg.IsUser() {
			return true
		}
	}
	return false
}

// DeriveTitle builds a conversation title from message text, accumulating
// whole words until their combined length passes the title budget.
func DeriveTitle(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return DefaultTitle
	}

	var kept []string
	var length int
	for _, word := range words {
		runes := len([]rune(word))
		if length+runes > titleBudget {
			if len(kept) == 0 {
				// Single oversized word: hard cut.
				return string([]rune(word)[:titleBudget]) + "..."
			}
			return strings.Join(kept, " ") + "..."
		}
		kept = append(kept, word)
		length += runes
	}
	return strings.Join(kept, " ")
}

func previewText(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= 80 {
		return text
	}
	return string(runes[:80]) + "..."
}
