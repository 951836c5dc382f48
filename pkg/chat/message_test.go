package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUserMessage(t *testing.T) {
	t.Run("should build a text part from trimmed input", func(t *testing.T) {
		msg, ok := NewUserMessage("  hello there  ", nil)
		require.True(t, ok)
		assert.Equal(t, RoleUser, msg.Role)
		assert.NotEmpty(t, msg.ID)
		require.Len(t, msg.Parts, 1)
		assert.Equal(t, "hello there", msg.Parts[0].(TextPart).Text)
	})

	t.Run("should reject input with neither text nor files", func(t *testing.T) {
		_, ok := NewUserMessage("   ", nil)
		assert.False(t, ok)
	})

	t.Run("should append one file part per attachment", func(t *testing.T) {
		msg, ok := NewUserMessage("look at this", []Attachment{
			{URL: "blob:1", MediaType: "image/png", Filename: "a.png"},
			{URL: "blob:2", MediaType: "application/pdf", Filename: "b.pdf"},
		})
		require.True(t, ok)
		require.Len(t, msg.Parts, 3)
		assert.Equal(t, "blob:1", msg.Parts[1].(FilePart).URL)
		assert.Equal(t, "blob:2", msg.Parts[2].(FilePart).URL)
	})

	t.Run("should anchor attachment-only sends with placeholder text", func(t *testing.T) {
		msg, ok := NewUserMessage("", []Attachment{{URL: ""}})
		require.True(t, ok)
		require.Len(t, msg.Parts, 1)
		assert.Equal(t, AttachmentPlaceholder, msg.Parts[0].(TextPart).Text)
	})
}

func TestNewAssistantPlaceholder(t *testing.T) {
	msg := NewAssistantPlaceholder()
	assert.Equal(t, RoleAssistant, msg.Role)
	assert.Equal(t, StatusSubmitted, msg.Status)
	assert.Empty(t, msg.Parts)
	assert.NotEmpty(t, msg.ID)
}

func TestMessageText(t *testing.T) {
	msg := Message{
		Role: RoleAssistant,
		Parts: Parts{
			ReasoningPart{Text: "thinking"},
			TextPart{Text: "first"},
			&ToolCallPart{ToolName: "web_fetch"},
			TextPart{Text: " second"},
		},
	}
	assert.Equal(t, "first second", msg.Text())
}

func TestHasToolErrors(t *testing.T) {
	t.Run("should report a failed tool part", func(t *testing.T) {
		msg := Message{Parts: Parts{
			TextPart{Text: "ok"},
			&ToolCallPart{ToolName: "web_fetch", State: ToolStateOutputError, ErrorText: "timeout"},
		}}
		assert.True(t, msg.HasToolErrors())
	})

	t.Run("should ignore successful tool parts", func(t *testing.T) {
		msg := Message{Parts: Parts{
			&ToolCallPart{ToolName: "web_fetch", State: ToolStateOutputAvailable},
		}}
		assert.False(t, msg.HasToolErrors())
	})
}
