package session

import (
	"fmt"
	"strings"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/provider"
)

// toolSummaryLimit bounds the flattened tool history resent as context, so
// old tool output cannot blow the prompt budget.
const toolSummaryLimit = 900

// SanitizeHistory prepares messages for the model serving the selected
// model's capabilities:
//   - image content is dropped for non-vision models, substituting a
//     placeholder text part when a user message would otherwise be empty
//   - reasoning parts are flattened to plain text
//   - tool parts are flattened to one bounded descriptive line
//   - failed messages (error status or errored tool parts) are excluded
//     entirely; they must not be replayed as conversational context
func SanitizeHistory(messages []chat.Message, model provider.Model) []chat.Message {
	out := make([]chat.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Status == chat.StatusError || msg.HasToolErrors() {
			continue
		}

		parts := make(chat.Parts, 0, len(msg.Parts))
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case chat.TextPart:
				parts = append(parts, p)
			case chat.ReasoningPart:
				if p.Text != "" {
					parts = append(parts, chat.TextPart{Text: p.Text})
				}
			case *chat.ToolCallPart:
				if summary := flattenToolPart(p); summary != "" {
					parts = append(parts, chat.TextPart{Text: summary})
				}
			case chat.ImagePart:
				if model.Vision {
					parts = append(parts, p)
				}
			case chat.FilePart:
				if strings.HasPrefix(p.MediaType, "image/") && !model.Vision {
					continue
				}
				parts = append(parts, p)
			case chat.UnknownPart:
				// Not replayable.
			}
		}

		if len(parts) == 0 {
			if !msg.IsUser() {
				continue
			}
			// The user turn stays present to anchor turn-taking.
			parts = append(parts, chat.TextPart{Text: chat.AttachmentPlaceholder})
		}

		sanitized := msg
		sanitized.Parts = parts
		out = append(out, sanitized)
	}
	return out
}

func flattenToolPart(tc *chat.ToolCallPart) string {
	var segments []string
	if len(tc.Input) > 0 {
		segments = append(segments, fmt.Sprintf("%s input: %s", tc.ToolName, tc.Input))
	}
	if len(tc.Output) > 0 {
		segments = append(segments, fmt.Sprintf("%s output: %s", tc.ToolName, tc.Output))
	}
	if len(segments) == 0 {
		return ""
	}

	summary := strings.Join(segments, " | ")
	runes := []rune(summary)
	if len(runes) > toolSummaryLimit {
		summary = string(runes[:toolSummaryLimit]) + "..."
	}
	return summary
}
