package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/logger"
	"github.com/patchwell/sidechat/pkg/stream"
)

// LangChainGateway implements Gateway on top of LangChain Go, routing to the
// provider client selected by the model's provider tag.
type LangChainGateway struct {
	ollamaURL string
}

// NewLangChainGateway creates a gateway. ollamaURL is the local Ollama
// server address used for TypeOllama models.
func NewLangChainGateway(ollamaURL string) *LangChainGateway {
	return &LangChainGateway{ollamaURL: ollamaURL}
}

// Stream starts a generation and returns the event channel for the turn.
// The channel is closed when generation finishes, fails, or the context is
// cancelled.
func (g *LangChainGateway) Stream(ctx context.Context, req StreamRequest) (<-chan stream.Event, error) {
	model, err := g.buildLLM(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s client: %w", req.Model.Provider, err)
	}

	messages, err := toLangChainMessages(req)
	if err != nil {
		return nil, err
	}

	events := make(chan stream.Event, 64)
	go g.run(ctx, model, req, messages, events)
	return events, nil
}

func (g *LangChainGateway) run(ctx context.Context, model llms.Model, req StreamRequest, messages []llms.MessageContent, events chan<- stream.Event) {
	defer close(events)

	send := func(ev stream.Event) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	if !send(stream.Start{}) {
		return
	}

	splitter := newThinkSplitter(send)
	var streamedAny bool

	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			streamedAny = true
			if !splitter.Feed(string(chunk)) {
				return ctx.Err()
			}
			return nil
		}),
	}
	if len(req.Tools) > 0 {
		opts = append(opts, llms.WithTools(toLangChainTools(req.Tools)))
	}

	resp, err := model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		send(stream.Error{Err: err})
		return
	}
	if !splitter.Flush() {
		return
	}

	if len(resp.Choices) == 0 {
		send(stream.Error{Err: fmt.Errorf("provider returned no choices")})
		return
	}
	choice := resp.Choices[0]

	// Some providers deliver the full completion without invoking the
	// streaming callback at all.
	if !streamedAny && choice.Content != "" {
		sp := newThinkSplitter(send)
		if !sp.Feed(choice.Content) || !sp.Flush() {
			return
		}
	}

	if !g.runToolCalls(ctx, req, choice.ToolCalls, send) {
		return
	}

	send(stream.Finish{})
}

// runToolCalls announces each tool call from the response and executes the
// matching registered tool, feeding results back as events.
func (g *LangChainGateway) runToolCalls(ctx context.Context, req StreamRequest, calls []llms.ToolCall, send func(stream.Event) bool) bool {
	for i, call := range calls {
		if call.FunctionCall == nil {
			continue
		}

		id := call.ID
		if id == "" {
			id = fmt.Sprintf("call-%d", i)
		}

		input := json.RawMessage(call.FunctionCall.Arguments)
		if !json.Valid(input) {
			quoted, _ := json.Marshal(call.FunctionCall.Arguments)
			input = quoted
		}

		if !send(stream.ToolCall{ToolCallID: id, ToolName: call.FunctionCall.Name, Input: input}) {
			return false
		}

		tool := findTool(req.Tools, call.FunctionCall.Name)
		if tool == nil {
			logger.Warn("model requested unregistered tool %s", call.FunctionCall.Name)
			if !send(stream.ToolResult{ToolCallID: id, Err: fmt.Sprintf("tool %s is not available", call.FunctionCall.Name)}) {
				return false
			}
			continue
		}

		output, err := tool.Call(ctx, toolInput(call.FunctionCall.Arguments))
		if err != nil {
			if !send(stream.ToolResult{ToolCallID: id, Err: err.Error()}) {
				return false
			}
			continue
		}

		encoded, _ := json.Marshal(output)
		if !send(stream.ToolResult{ToolCallID: id, Output: encoded}) {
			return false
		}
	}
	return true
}

func (g *LangChainGateway) buildLLM(ctx context.Context, req StreamRequest) (llms.Model, error) {
	switch req.Model.Provider {
	case TypeOllama:
		return ollama.New(
			ollama.WithServerURL(g.ollamaURL),
			ollama.WithModel(req.Model.ID),
		)
	case TypeOpenAI:
		return openai.New(
			openai.WithToken(req.Credential),
			openai.WithModel(req.Model.ID),
		)
	case TypeAnthropic:
		return anthropic.New(
			anthropic.WithToken(req.Credential),
			anthropic.WithModel(req.Model.ID),
		)
	case TypeGoogle:
		return googleai.New(ctx,
			googleai.WithAPIKey(req.Credential),
			googleai.WithDefaultModel(req.Model.ID),
		)
	default:
		return nil, fmt.Errorf("unknown provider type %q", req.Model.Provider)
	}
}

func toLangChainMessages(req StreamRequest) ([]llms.MessageContent, error) {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}

	for _, msg := range req.Messages {
		role := llms.ChatMessageTypeHuman
		if msg.IsAssistant() {
			role = llms.ChatMessageTypeAI
		}

		mc := llms.MessageContent{Role: role}
		for _, part := range msg.Parts {
			switch p := part.(type) {
			case chat.TextPart:
				mc.Parts = append(mc.Parts, llms.TextPart(p.Text))
			case chat.ImagePart:
				mc.Parts = append(mc.Parts, llms.ImageURLPart(p.Data))
			case chat.FilePart:
				if strings.HasPrefix(p.MediaType, "image/") {
					mc.Parts = append(mc.Parts, llms.ImageURLPart(p.URL))
				} else {
					mc.Parts = append(mc.Parts, llms.TextPart(fmt.Sprintf("[attachment: %s]", attachmentLabel(p))))
				}
			case chat.ReasoningPart, *chat.ToolCallPart, chat.UnknownPart:
				// History is sanitized before it reaches the gateway;
				// anything left of these kinds is dropped here.
			}
		}
		if len(mc.Parts) == 0 {
			continue
		}
		messages = append(messages, mc)
	}

	return messages, nil
}

func toLangChainTools(tools []Tool) []llms.Tool {
	defs := make([]llms.Tool, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"input": map[string]any{
							"type":        "string",
							"description": "Tool input",
						},
					},
					"required": []string{"input"},
				},
			},
		})
	}
	return defs
}

func findTool(tools []Tool, name string) Tool {
	for _, t := range tools {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

// toolInput unwraps the single-field JSON argument object the tool schema
// declares, falling back to the raw argument string.
func toolInput(arguments string) string {
	var wrapper struct {
		Input string `json:"input"`
	}
	if err := json.Unmarshal([]byte(arguments), &wrapper); err == nil && wrapper.Input != "" {
		return wrapper.Input
	}
	return arguments
}

func attachmentLabel(p chat.FilePart) string {
	if p.Filename != "" {
		return p.Filename
	}
	return p.URL
}
