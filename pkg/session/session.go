package session

import (
	"context"
	"errors"
	"sync"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/llmerror"
	"github.com/patchwell/sidechat/pkg/logger"
	"github.com/patchwell/sidechat/pkg/provider"
	"github.com/patchwell/sidechat/pkg/storage"
	"github.com/patchwell/sidechat/pkg/stream"
)

// Input is one user submission.
type Input struct {
	Text  string
	Files []chat.Attachment
}

// Options wires a Session's collaborators. Gateway is required; Store may
// be nil for purely in-memory sessions.
type Options struct {
	Gateway      provider.Gateway
	Store        storage.ChatStore
	Model        provider.Model
	Credentials  provider.Credentials
	Tools        []provider.Tool
	SystemPrompt string
	OllamaURL    string

	// OnChange fires after every observable state change.
	OnChange func()
	// OnError receives the classified error of a failed turn.
	OnError func(*llmerror.Error)
}

// Session is the per-conversation state machine. It owns one conversation's
// message list and status, drives the stream reducer for in-flight turns,
// and persists after each meaningful transition. A session refuses a new
// send while a generation is active; different sessions are fully
// independent.
type Session struct {
	mu           sync.Mutex
	conv         *chat.Conversation
	gateway      provider.Gateway
	store        storage.ChatStore
	model        provider.Model
	credentials  provider.Credentials
	tools        []provider.Tool
	systemPrompt string
	ollamaURL    string
	onChange     func()
	onError      func(*llmerror.Error)

	cancel   context.CancelFunc
	stopping bool
	detached bool
	lastErr  *llmerror.Error
}

// turn snapshots everything a generation needs at send time. Settings
// changed mid-stream never affect an in-flight turn.
type turn struct {
	model        provider.Model
	credential   string
	tools        []provider.Tool
	systemPrompt string
	assistantID  string
}

// New binds a session to a conversation.
func New(conv *chat.Conversation, opts Options) *Session {
	if conv.Status == "" {
		conv.Status = chat.StatusReady
	}
	return &Session{
		conv:         conv,
		gateway:      opts.Gateway,
		store:        opts.Store,
		model:        opts.Model,
		credentials:  opts.Credentials,
		tools:        opts.Tools,
		systemPrompt: opts.SystemPrompt,
		ollamaURL:    opts.OllamaURL,
		onChange:     opts.OnChange,
		onError:      opts.OnError,
	}
}

// ID returns the bound conversation id.
func (s *Session) ID() string {
	return s.conv.ID
}

// Status returns the conversation's current status.
func (s *Session) Status() chat.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conv.Status
}

// LastError returns the classified error of the last failed turn, if any.
func (s *Session) LastError() *llmerror.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Conversation returns a copy of the bound conversation. The message slice
// is copied; assistant parts are replaced wholesale during streaming, so a
// returned copy stays stable.
func (s *Session) Conversation() chat.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv := *s.conv
	conv.Messages = make([]chat.Message, len(s.conv.Messages))
	copy(conv.Messages, s.conv.Messages)
	return conv
}

// SetModel selects the model for subsequent sends.
func (s *Session) SetModel(m provider.Model) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = m
}

// SetCredentials replaces the provider credentials for subsequent sends.
func (s *Session) SetCredentials(c provider.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credentials = c
}

// SetTools replaces the enabled tool set for subsequent sends.
func (s *Session) SetTools(tools []provider.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools = tools
}

// SetSystemPrompt replaces the system prompt for subsequent sends.
func (s *Session) SetSystemPrompt(prompt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
}

// SendMessage submits a user turn and drives it to completion. The call is
// a no-op when a generation is already active, when the model's credential
// cannot be resolved, or when the input carries neither text nor
// attachments. The user message and an empty assistant placeholder are
// appended before any network activity.
func (s *Session) SendMessage(ctx context.Context, input Input) error {
	s.mu.Lock()
	if s.conv.Status == chat.StatusSubmitted || s.conv.Status == chat.StatusStreaming {
		s.mu.Unlock()
		return nil
	}

	model := s.model
	credential, ok := provider.ResolveCredential(model, s.credentials)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	userMsg, ok := chat.NewUserMessage(input.Text, input.Files)
	if !ok {
		s.mu.Unlock()
		return nil
	}

	firstSend := len(s.conv.Messages) == 0
	if s.conv.Status == chat.StatusError {
		s.lastErr = nil
	}
	if err := s.transitionLocked(chat.StatusSubmitted); err != nil {
		s.mu.Unlock()
		return err
	}

	s.conv.Append(userMsg)
	placeholder := chat.NewAssistantPlaceholder()
	s.conv.Append(placeholder)

	t := turn{
		model:        model,
		credential:   credential,
		tools:        append([]provider.Tool(nil), s.tools...),
		systemPrompt: s.systemPrompt,
		assistantID:  placeholder.ID,
	}
	s.mu.Unlock()

	s.persist()
	s.notify()

	if firstSend {
		if err := provider.Preflight(ctx, t.model, s.ollamaURL); err != nil {
			return s.failTurn(t.assistantID, llmerror.Connectivity(err))
		}
	}

	return s.generate(ctx, t)
}

// Reload removes the most recent assistant message, whatever its status,
// and re-invokes generation from the remaining history without synthesizing
// a new user message. No-op while busy, or when no prior user message
// exists.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	if s.conv.Status == chat.StatusSubmitted || s.conv.Status == chat.StatusStreaming {
		s.mu.Unlock()
		return nil
	}

	model := s.model
	credential, ok := provider.ResolveCredential(model, s.credentials)
	if !ok {
		s.mu.Unlock()
		return nil
	}

	idx := s.conv.LastAssistantIndex()
	remaining := s.conv.Messages
	if idx >= 0 {
		remaining = append(append([]chat.Message{}, s.conv.Messages[:idx]...), s.conv.Messages[idx+1:]...)
	}
	if !hasUserMessage(remaining) {
		s.mu.Unlock()
		return nil
	}

	if s.conv.Status == chat.StatusError {
		s.lastErr = nil
	}
	if err := s.transitionLocked(chat.StatusSubmitted); err != nil {
		s.mu.Unlock()
		return err
	}

	s.conv.Messages = remaining
	placeholder := chat.NewAssistantPlaceholder()
	s.conv.Append(placeholder)

	t := turn{
		model:        model,
		credential:   credential,
		tools:        append([]provider.Tool(nil), s.tools...),
		systemPrompt: s.systemPrompt,
		assistantID:  placeholder.ID,
	}
	s.mu.Unlock()

	s.persist()
	s.notify()

	return s.generate(ctx, t)
}

// Stop cancels the in-flight generation, if any. The streamed partial
// content is kept and the message finalized as ready; cancellation is a
// truncated success, never an error. Safe to call repeatedly or after the
// stream already finished.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.stopping = true
		cancel := s.cancel
		s.mu.Unlock()
		cancel()
		return
	}

	changed := s.conv.Status != chat.StatusReady
	if changed {
		s.conv.Status = chat.StatusReady
		s.lastErr = nil
	}
	s.mu.Unlock()

	if changed {
		s.persist()
		s.notify()
	}
}

// Detach permanently disables persistence for this session. The store calls
// it when the conversation is deleted, so a turn finishing after the delete
// cannot write the conversation back into storage.
func (s *Session) Detach() {
	s.mu.Lock()
	s.detached = true
	s.mu.Unlock()
}

// ClearError moves the session from error back to ready without discarding
// messages. Explicit user action only.
func (s *Session) ClearError() {
	s.mu.Lock()
	if s.conv.Status != chat.StatusError {
		s.mu.Unlock()
		return
	}
	_ = s.transitionLocked(chat.StatusReady)
	s.lastErr = nil
	s.mu.Unlock()

	s.persist()
	s.notify()
}

// ResetState discards all messages and returns the session to ready. No-op
// while a generation is active.
func (s *Session) ResetState() {
	s.mu.Lock()
	if s.conv.Status == chat.StatusSubmitted || s.conv.Status == chat.StatusStreaming {
		s.mu.Unlock()
		return
	}
	s.conv.Messages = s.conv.Messages[:0]
	s.conv.Status = chat.StatusReady
	s.conv.RefreshMetadata()
	s.lastErr = nil
	s.mu.Unlock()

	s.persist()
	s.notify()
}

func (s *Session) generate(ctx context.Context, t turn) error {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	s.stopping = false
	history := SanitizeHistory(s.historyWithoutLocked(t.assistantID), t.model)
	s.mu.Unlock()

	events, err := s.gateway.Stream(genCtx, provider.StreamRequest{
		Model:        t.model,
		Credential:   t.credential,
		Messages:     history,
		Tools:        t.tools,
		SystemPrompt: t.systemPrompt,
	})
	if err != nil {
		s.clearCancel()
		return s.failTurn(t.assistantID, llmerror.Classify(err))
	}

	s.mu.Lock()
	if err := s.transitionLocked(chat.StatusStreaming); err != nil {
		// Stop won the race between submit and stream start; drain the
		// cancelled stream and finalize below.
		s.stopping = true
		cancel()
	}
	s.setMessageStatusLocked(t.assistantID, chat.StatusStreaming)
	s.mu.Unlock()
	s.notify()

	result := stream.Reduce(events, func(parts chat.Parts) {
		s.mu.Lock()
		s.setPartsLocked(t.assistantID, parts)
		s.mu.Unlock()
		s.notify()
	})

	s.mu.Lock()
	stopped := s.stopping
	s.cancel = nil
	s.stopping = false
	s.mu.Unlock()

	if result.Failed() && !stopped {
		s.mu.Lock()
		s.setPartsLocked(t.assistantID, result.Parts)
		s.mu.Unlock()
		result.Err.Partial = len(result.Parts) > 0
		return s.failTurn(t.assistantID, result.Err)
	}

	if !stopped && len(result.Parts) == 0 {
		return s.failTurn(t.assistantID, llmerror.Stream(errors.New("stream produced no output"), false))
	}

	s.mu.Lock()
	s.setPartsLocked(t.assistantID, result.Parts)
	s.setMessageStatusLocked(t.assistantID, chat.StatusReady)
	if err := s.transitionLocked(chat.StatusReady); err != nil {
		logger.Warn("conversation %s: %v", s.conv.ID, err)
		s.conv.Status = chat.StatusReady
	}
	s.conv.RefreshMetadata()
	s.mu.Unlock()

	s.persist()
	s.notify()
	return nil
}

func (s *Session) failTurn(assistantID string, cerr *llmerror.Error) error {
	s.mu.Lock()
	s.setMessageStatusLocked(assistantID, chat.StatusError)
	if err := s.transitionLocked(chat.StatusError); err != nil {
		logger.Warn("conversation %s: %v", s.conv.ID, err)
		s.conv.Status = chat.StatusError
	}
	s.lastErr = cerr
	s.mu.Unlock()

	s.persist()
	s.notify()
	if s.onError != nil {
		s.onError(cerr)
	}
	return cerr
}

func (s *Session) clearCancel() {
	s.mu.Lock()
	s.cancel = nil
	s.stopping = false
	s.mu.Unlock()
}

func (s *Session) historyWithoutLocked(assistantID string) []chat.Message {
	history := make([]chat.Message, 0, len(s.conv.Messages))
	for _, msg := range s.conv.Messages {
		if msg.ID == assistantID {
			continue
		}
		history = append(history, msg)
	}
	return history
}

func (s *Session) setPartsLocked(id string, parts chat.Parts) {
	for i := range s.conv.Messages {
		if s.conv.Messages[i].ID == id {
			s.conv.Messages[i].Parts = parts
			return
		}
	}
}

func (s *Session) setMessageStatusLocked(id string, status chat.Status) {
	for i := range s.conv.Messages {
		if s.conv.Messages[i].ID == id {
			s.conv.Messages[i].Status = status
			return
		}
	}
}

// persist saves the conversation best-effort. Failures are logged, never
// surfaced as chat errors; in-memory state stays authoritative.
func (s *Session) persist() {
	if s.store == nil {
		return
	}

	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	id := s.conv.ID
	messages := make([]chat.Message, len(s.conv.Messages))
	copy(messages, s.conv.Messages)
	s.mu.Unlock()

	if _, err := s.store.SaveMessages(id, messages); err != nil {
		logger.Warn("failed to persist conversation %s: %v", id, err)
	}
}

func (s *Session) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func hasUserMessage(messages []chat.Message) bool {
	for _, msg := range messages {
		if msg.IsUser() {
			return true
		}
	}
	return false
}
