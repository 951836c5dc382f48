package session

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/provider"
)

var (
	visionModel = provider.Model{ID: "llava:latest", Provider: provider.TypeOllama, Vision: true}
	textModel   = provider.Model{ID: "llama3.2:latest", Provider: provider.TypeOllama}
)

func TestSanitizeHistory(t *testing.T) {
	t.Run("should flatten reasoning into plain text", func(t *testing.T) {
		messages := []chat.Message{{
			Role: chat.RoleAssistant,
			Parts: chat.Parts{
				chat.ReasoningPart{Text: "thinking it through"},
				chat.TextPart{Text: "the answer"},
			},
		}}

		out := SanitizeHistory(messages, textModel)
		require.Len(t, out, 1)
		require.Len(t, out[0].Parts, 2)
		assert.Equal(t, "thinking it through", out[0].Parts[0].(chat.TextPart).Text)
		assert.Equal(t, "the answer", out[0].Parts[1].(chat.TextPart).Text)
	})

	t.Run("should flatten tool parts into one bounded line", func(t *testing.T) {
		messages := []chat.Message{{
			Role: chat.RoleAssistant,
			Parts: chat.Parts{
				&chat.ToolCallPart{
					ToolName: "web_fetch",
					State:    chat.ToolStateOutputAvailable,
					Input:    json.RawMessage(`{"input":"https://example.com"}`),
					Output:   json.RawMessage(`"page text"`),
				},
			},
		}}

		out := SanitizeHistory(messages, textModel)
		require.Len(t, out, 1)
		text := out[0].Parts[0].(chat.TextPart).Text
		assert.Contains(t, text, "web_fetch input:")
		assert.Contains(t, text, "web_fetch output:")
	})

	t.Run("should truncate oversized tool summaries", func(t *testing.T) {
		big := strings.Repeat("x", 2000)
		messages := []chat.Message{{
			Role: chat.RoleAssistant,
			Parts: chat.Parts{
				&chat.ToolCallPart{
					ToolName: "web_fetch",
					State:    chat.ToolStateOutputAvailable,
					Output:   json.RawMessage(`"` + big + `"`),
				},
			},
		}}

		out := SanitizeHistory(messages, textModel)
		text := out[0].Parts[0].(chat.TextPart).Text
		assert.LessOrEqual(t, len([]rune(text)), toolSummaryLimit+3)
		assert.True(t, strings.HasSuffix(text, "..."))
	})

	t.Run("should exclude errored messages entirely", func(t *testing.T) {
		messages := []chat.Message{
			{Role: chat.RoleUser, Parts: chat.Parts{chat.TextPart{Text: "hi"}}},
			{Role: chat.RoleAssistant, Status: chat.StatusError, Parts: chat.Parts{chat.TextPart{Text: "broken"}}},
			{Role: chat.RoleAssistant, Parts: chat.Parts{
				&chat.ToolCallPart{ToolName: "web_fetch", State: chat.ToolStateOutputError, ErrorText: "failed"},
			}},
		}

		out := SanitizeHistory(messages, textModel)
		require.Len(t, out, 1)
		assert.Equal(t, "hi", out[0].Text())
	})

	t.Run("should drop image attachments for non-vision models", func(t *testing.T) {
		messages := []chat.Message{{
			Role: chat.RoleUser,
			Parts: chat.Parts{
				chat.FilePart{URL: "blob:1", MediaType: "image/png"},
			},
		}}

		out := SanitizeHistory(messages, textModel)
		require.Len(t, out, 1)
		require.Len(t, out[0].Parts, 1)
		assert.Equal(t, chat.AttachmentPlaceholder, out[0].Parts[0].(chat.TextPart).Text)
	})

	t.Run("should keep image attachments for vision models", func(t *testing.T) {
		messages := []chat.Message{{
			Role: chat.RoleUser,
			Parts: chat.Parts{
				chat.FilePart{URL: "blob:1", MediaType: "image/png"},
				chat.ImagePart{Data: "data:image/png;base64,AAAA"},
			},
		}}

		out := SanitizeHistory(messages, visionModel)
		require.Len(t, out, 1)
		assert.Len(t, out[0].Parts, 2)
	})

	t.Run("should drop empty assistant messages but keep empty user turns", func(t *testing.T) {
		messages := []chat.Message{
			{Role: chat.RoleUser, Parts: chat.Parts{chat.UnknownPart{Raw: json.RawMessage(`{}`)}}},
			{Role: chat.RoleAssistant, Parts: chat.Parts{}},
		}

		out := SanitizeHistory(messages, textModel)
		require.Len(t, out, 1)
		assert.True(t, out[0].IsUser())
		assert.Equal(t, chat.AttachmentPlaceholder, out[0].Text())
	})
}

func TestStatusTransitions(t *testing.T) {
	legal := []struct{ from, to chat.Status }{
		{chat.StatusReady, chat.StatusSubmitted},
		{chat.StatusReady, chat.StatusReady},
		{chat.StatusSubmitted, chat.StatusStreaming},
		{chat.StatusSubmitted, chat.StatusReady},
		{chat.StatusSubmitted, chat.StatusError},
		{chat.StatusStreaming, chat.StatusReady},
		{chat.StatusStreaming, chat.StatusError},
		{chat.StatusError, chat.StatusReady},
		{chat.StatusError, chat.StatusSubmitted},
	}
	for _, tt := range legal {
		assert.True(t, canTransition(tt.from, tt.to), "%s -> %s should be legal", tt.from, tt.to)
	}

	illegal := []struct{ from, to chat.Status }{
		{chat.StatusReady, chat.StatusStreaming},
		{chat.StatusReady, chat.StatusError},
		{chat.StatusStreaming, chat.StatusSubmitted},
		{chat.StatusStreaming, chat.StatusStreaming},
		{chat.StatusSubmitted, chat.StatusSubmitted},
		{chat.StatusError, chat.StatusStreaming},
		{chat.StatusError, chat.StatusError},
	}
	for _, tt := range illegal {
		assert.False(t, canTransition(tt.from, tt.to), "%s -> %s should be rejected", tt.from, tt.to)
	}
}
