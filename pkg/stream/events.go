package stream

import "encoding/json"

// Event is one typed element of a provider's generation stream. Concrete
// event types implement the unexported isEvent marker so reducers can switch
// exhaustively, with a single ignored arm for anything new upstream.
type Event interface{ isEvent() }

// Start signals the beginning of a generation.
type Start struct{}

func (Start) isEvent() {}

// Finish signals graceful completion of a generation.
type Finish struct{}

func (Finish) isEvent() {}

// StepStart and StepFinish bracket one provider step. They carry no content.
type StepStart struct{}

func (StepStart) isEvent() {}

type StepFinish struct{}

func (StepFinish) isEvent() {}

// TextStart opens a text span. Bookkeeping only.
type TextStart struct {
	ID string
}

func (TextStart) isEvent() {}

// TextDelta appends text to the running text accumulator.
type TextDelta struct {
	ID   string
	Text string
}

func (TextDelta) isEvent() {}

// TextEnd closes a text span. Bookkeeping only.
type TextEnd struct {
	ID string
}

func (TextEnd) isEvent() {}

// ReasoningStart opens a reasoning accumulator for an id.
type ReasoningStart struct {
	ID string
}

func (ReasoningStart) isEvent() {}

// ReasoningDelta appends to a reasoning accumulator, creating it if the
// start event was skipped upstream.
type ReasoningDelta struct {
	ID   string
	Text string
}

func (ReasoningDelta) isEvent() {}

// ReasoningEnd closes a reasoning accumulator. Content is retained.
type ReasoningEnd struct {
	ID string
}

func (ReasoningEnd) isEvent() {}

// ToolCall announces a tool invocation with its input.
type ToolCall struct {
	ToolCallID string
	ToolName   string
	Input      json.RawMessage
}

func (ToolCall) isEvent() {}

// ToolResult delivers the output for a prior ToolCall. Err, when set, marks
// the invocation failed.
type ToolResult struct {
	ToolCallID string
	Output     json.RawMessage
	Err        string
}

func (ToolResult) isEvent() {}

// Error is a terminal in-band failure. No further events are consumed after
// one is observed.
type Error struct {
	Err error
}

func (Error) isEvent() {}

// Unknown preserves an event kind this version does not understand.
type Unknown struct {
	Kind string
	Raw  json.RawMessage
}

func (Unknown) isEvent() {}
