package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Status describes where a message (or the conversation's active turn) is in
// its lifecycle. User messages carry no status; assistant messages move
// submitted -> streaming -> ready|error.
type Status string

const (
	StatusReady     Status = "ready"
	StatusSubmitted Status = "submitted"
	StatusStreaming Status = "streaming"
	StatusError     Status = "error"
)

// Message is one conversation entry. Assistant messages are created empty
// with StatusSubmitted and mutated in place while streaming; user messages
// are immutable once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Parts     Parts     `json:"parts"`
	Status    Status    `json:"status,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Attachment is caller-supplied file input for a user message.
type Attachment struct {
	URL       string
	MediaType string
	Filename  string
}

// AttachmentPlaceholder anchors a user turn whose attachments produced no
// usable parts for the selected model.
const AttachmentPlaceholder = "Sent with attachments"

// NewUserMessage builds a user message from trimmed text plus one file part
// per attachment. The second return is false when neither text nor
// attachments produced a part.
func NewUserMessage(text string, files []Attachment) (Message, bool) {
	parts := Parts{}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		parts = append(parts, TextPart{Text: trimmed})
	}
	for _, f := range files {
		if f.URL == "" {
			continue
		}
		parts = append(parts, FilePart{URL: f.URL, MediaType: f.MediaType, Filename: f.Filename})
	}
	if len(parts) == 0 {
		if len(files) == 0 {
			return Message{}, false
		}
		parts = append(parts, TextPart{Text: AttachmentPlaceholder})
	}

	return Message{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Parts:     parts,
		Timestamp: time.Now(),
	}, true
}

// NewAssistantPlaceholder builds the empty assistant message appended before
// any network activity so the UI reflects the send immediately.
func NewAssistantPlaceholder() Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Parts:     Parts{},
		Status:    StatusSubmitted,
		Timestamp: time.Now(),
	}
}

func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

func (m Message) IsAssistant() bool {
	return m.Role == RoleAssistant
}

// Text concatenates the plain text of every text part.
func (m Message) Text() string {
	var b strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			b.WriteString(tp.Text)
		}
	}
	return b.String()
}

// HasToolErrors reports whether any tool part failed. Such messages stay
// visible in the UI but are excluded from model history.
func (m Message) HasToolErrors() bool {
	for _, p := range m.Parts {
		if tc, ok := p.(*ToolCallPart); ok && tc.State == ToolStateOutputError {
			return true
		}
	}
	return false
}
