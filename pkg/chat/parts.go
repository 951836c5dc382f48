package chat

import (
	"encoding/json"
	"fmt"
)

// Part is one unit of message content. Concrete part types implement the
// unexported isPart marker, keeping the set closed so consumers can switch
// exhaustively over it.
type Part interface{ isPart() }

// TextPart holds accumulated plain text for one text run.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// ReasoningPart holds model reasoning content. The ID is only meaningful
// while a stream is accumulating; it is stripped before storage.
type ReasoningPart struct {
	ID   string `json:"-"`
	Text string `json:"text"`
}

func (ReasoningPart) isPart() {}

// ToolState tracks the lifecycle of a tool invocation. State only ever
// advances from input to output or error, never backward.
type ToolState string

const (
	ToolStateInputAvailable  ToolState = "input_available"
	ToolStateOutputAvailable ToolState = "output_available"
	ToolStateOutputError     ToolState = "output_error"
)

// ToolCallPart records one tool invocation, mutated in place as its state
// advances.
type ToolCallPart struct {
	ToolName   string          `json:"tool_name"`
	ToolCallID string          `json:"tool_call_id"`
	State      ToolState       `json:"state"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
	ErrorText  string          `json:"error_text,omitempty"`
}

func (ToolCallPart) isPart() {}

// FilePart references an attachment by URL.
type FilePart struct {
	URL       string `json:"url"`
	MediaType string `json:"media_type,omitempty"`
	Filename  string `json:"filename,omitempty"`
}

func (FilePart) isPart() {}

// ImagePart holds raw or data-URL encoded image data.
type ImagePart struct {
	Data string `json:"data"`
}

func (ImagePart) isPart() {}

// UnknownPart preserves content this version does not understand.
type UnknownPart struct {
	Raw json.RawMessage `json:"raw"`
}

func (UnknownPart) isPart() {}

// Parts is an ordered part list with stable JSON encoding. Each element is
// wrapped in an envelope carrying a kind discriminant.
type Parts []Part

const (
	kindText      = "text"
	kindReasoning = "reasoning"
	kindToolCall  = "tool_call"
	kindFile      = "file"
	kindImage     = "image"
	kindUnknown   = "unknown"
)

type partEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// MarshalJSON encodes each part with its kind discriminant.
func (ps Parts) MarshalJSON() ([]byte, error) {
	envelopes := make([]partEnvelope, 0, len(ps))
	for _, p := range ps {
		kind, err := kindOf(p)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s part: %w", kind, err)
		}
		envelopes = append(envelopes, partEnvelope{Kind: kind, Data: data})
	}
	return json.Marshal(envelopes)
}

// UnmarshalJSON decodes envelopes back into concrete parts. Parts with an
// unrecognized kind are kept as UnknownPart rather than dropped.
func (ps *Parts) UnmarshalJSON(data []byte) error {
	var envelopes []partEnvelope
	if err := json.Unmarshal(data, &envelopes); err != nil {
		return fmt.Errorf("failed to unmarshal parts: %w", err)
	}

	result := make(Parts, 0, len(envelopes))
	for _, env := range envelopes {
		part, err := decodePart(env)
		if err != nil {
			return err
		}
		result = append(result, part)
	}
	*ps = result
	return nil
}

func kindOf(p Part) (string, error) {
	switch p.(type) {
	case TextPart:
		return kindText, nil
	case ReasoningPart:
		return kindReasoning, nil
	case *ToolCallPart:
		return kindToolCall, nil
	case FilePart:
		return kindFile, nil
	case ImagePart:
		return kindImage, nil
	case UnknownPart:
		return kindUnknown, nil
	default:
		return "", fmt.Errorf("unsupported part type %T", p)
	}
}

func decodePart(env partEnvelope) (Part, error) {
	switch env.Kind {
	case kindText:
		var p TextPart
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal text part: %w", err)
		}
		return p, nil
	case kindReasoning:
		var p ReasoningPart
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reasoning part: %w", err)
		}
		return p, nil
	case kindToolCall:
		var p ToolCallPart
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tool call part: %w", err)
		}
		return &p, nil
	case kindFile:
		var p FilePart
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal file part: %w", err)
		}
		return p, nil
	case kindImage:
		var p ImagePart
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal image part: %w", err)
		}
		return p, nil
	default:
		return UnknownPart{Raw: env.Data}, nil
	}
}

// PartText returns the plain text carried by a part, if any.
func PartText(p Part) string {
	switch p := p.(type) {
	case TextPart:
		return p.Text
	case ReasoningPart:
		return p.Text
	default:
		return ""
	}
}
