package storage

import "github.com/patchwell/sidechat/pkg/chat"

// Metadata is the listing view of one conversation.
type Metadata struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	MessageCount int    `json:"message_count"`
	LastMessage  string `json:"last_message,omitempty"`
}

// ChatStore persists conversation metadata and message arrays. Saves are
// best effort: callers log failures and keep in-memory state authoritative
// for the session lifetime.
type ChatStore interface {
	ListConversations() ([]Metadata, error)

	CreateConversation(title string) (Metadata, error)

	LoadMessages(id string) ([]chat.Message, error)

	// SaveMessages persists a conversation's messages and refreshes its
	// metadata, returning the updated listing.
	SaveMessages(id string, messages []chat.Message) ([]Metadata, error)

	DeleteConversations(ids []string) error

	// CurrentID returns the selected conversation, if any.
	CurrentID() (string, bool)

	// SetCurrentID selects a conversation; an empty id clears the pointer.
	SetCurrentID(id string) error
}
