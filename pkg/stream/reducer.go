package stream

import (
	"strings"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/llmerror"
	"github.com/patchwell/sidechat/pkg/logger"
)

// EmitFunc receives the full ordered snapshot after every content-affecting
// event.
type EmitFunc func(parts chat.Parts)

// Result is the outcome of reducing one assistant turn.
type Result struct {
	Parts chat.Parts
	Err   *llmerror.Error
}

// Failed reports whether the turn ended with an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Reducer folds the heterogeneous event stream of one assistant turn into an
// ordered part snapshot: reasoning parts in first-seen order (ids stripped),
// then tool-call parts in first-seen order, then the accumulated text part
// if non-empty. The snapshot is rebuilt from accumulated state on every
// emit, so each intermediate render is correct on its own.
type Reducer struct {
	text           strings.Builder
	reasoningOrder []string
	reasoning      map[string]*strings.Builder
	reasoningOpen  map[string]bool
	toolOrder      []string
	tools          map[string]*chat.ToolCallPart
	openTextSpans  map[string]bool
}

// NewReducer creates a reducer for a single assistant turn.
func NewReducer() *Reducer {
	return &Reducer{
		reasoning:     make(map[string]*strings.Builder),
		reasoningOpen: make(map[string]bool),
		tools:         make(map[string]*chat.ToolCallPart),
		openTextSpans: make(map[string]bool),
	}
}

// Apply folds one event into the accumulated state. It returns true when the
// event affected content and a fresh snapshot should be emitted.
func (r *Reducer) Apply(ev Event) bool {
	switch ev := ev.(type) {
	case TextDelta:
		r.text.WriteString(ev.Text)
		return true

	case TextStart:
		r.openTextSpans[ev.ID] = true
		return false

	case TextEnd:
		delete(r.openTextSpans, ev.ID)
		return false

	case ReasoningStart:
		r.openReasoning(ev.ID)
		return false

	case ReasoningDelta:
		r.openReasoning(ev.ID).WriteString(ev.Text)
		return true

	case ReasoningEnd:
		r.reasoningOpen[ev.ID] = false
		return false

	case ToolCall:
		if _, exists := r.tools[ev.ToolCallID]; exists {
			logger.Warn("duplicate tool call %s for %s dropped", ev.ToolCallID, ev.ToolName)
			return false
		}
		r.tools[ev.ToolCallID] = &chat.ToolCallPart{
			ToolName:   ev.ToolName,
			ToolCallID: ev.ToolCallID,
			State:      chat.ToolStateInputAvailable,
			Input:      ev.Input,
		}
		r.toolOrder = append(r.toolOrder, ev.ToolCallID)
		return true

	case ToolResult:
		part, exists := r.tools[ev.ToolCallID]
		if !exists {
			logger.Warn("tool result for unknown call %s dropped", ev.ToolCallID)
			return false
		}
		if part.State != chat.ToolStateInputAvailable {
			logger.Warn("tool call %s already finished, result dropped", ev.ToolCallID)
			return false
		}
		if ev.Err != "" {
			part.State = chat.ToolStateOutputError
			part.ErrorText = ev.Err
		} else {
			part.State = chat.ToolStateOutputAvailable
			part.Output = ev.Output
		}
		return true

	case Start, Finish, StepStart, StepFinish:
		return false

	case Error:
		// Terminal; handled by Reduce before Apply is reached.
		return false

	default:
		logger.Debug("ignoring unrecognized stream event %T", ev)
		return false
	}
}

func (r *Reducer) openReasoning(id string) *strings.Builder {
	if b, exists := r.reasoning[id]; exists {
		r.reasoningOpen[id] = true
		return b
	}
	b := &strings.Builder{}
	r.reasoning[id] = b
	r.reasoningOrder = append(r.reasoningOrder, id)
	r.reasoningOpen[id] = true
	return b
}

// Snapshot rebuilds the full ordered part list from accumulated state. Tool
// parts are copied so a caller-held snapshot cannot be mutated by later
// events.
func (r *Reducer) Snapshot() chat.Parts {
	parts := make(chat.Parts, 0, len(r.reasoningOrder)+len(r.toolOrder)+1)
	for _, id := range r.reasoningOrder {
		parts = append(parts, chat.ReasoningPart{Text: r.reasoning[id].String()})
	}
	for _, id := range r.toolOrder {
		tc := *r.tools[id]
		parts = append(parts, &tc)
	}
	if r.text.Len() > 0 {
		parts = append(parts, chat.TextPart{Text: r.text.String()})
	}
	return parts
}

// HasContent reports whether any output has accumulated so far.
func (r *Reducer) HasContent() bool {
	return r.text.Len() > 0 || len(r.reasoningOrder) > 0 || len(r.toolOrder) > 0
}

// Reduce consumes events until the channel closes or an in-band Error event
// arrives, emitting a snapshot after every content-affecting event. Events
// are processed strictly one at a time: emit for event N completes before
// event N+1 is read, which tool-result matching depends on.
func Reduce(events <-chan Event, emit EmitFunc) Result {
	r := NewReducer()

	for ev := range events {
		if errEv, ok := ev.(Error); ok {
			return Result{
				Parts: r.Snapshot(),
				Err:   llmerror.Classify(errEv.Err),
			}
		}
		if r.Apply(ev) && emit != nil {
			emit(r.Snapshot())
		}
	}

	return Result{Parts: r.Snapshot()}
}
