package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/llmerror"
	"github.com/patchwell/sidechat/pkg/logger"
	"github.com/patchwell/sidechat/pkg/provider"
	"github.com/patchwell/sidechat/pkg/session"
	"github.com/patchwell/sidechat/pkg/storage"
)

// Options wires the store's collaborators and the defaults handed to every
// session it creates.
type Options struct {
	Gateway      provider.Gateway
	ChatStore    storage.ChatStore
	Model        provider.Model
	Credentials  provider.Credentials
	Tools        []provider.Tool
	SystemPrompt string
	OllamaURL    string

	// OnChange fires after any conversation changes observable state.
	OnChange func(conversationID string)
	// OnError receives classified turn failures per conversation.
	OnError func(conversationID string, err *llmerror.Error)
}

// Store is the keyed collection of conversation sessions plus the current
// conversation pointer. It exclusively owns the id-to-conversation map;
// per-conversation writes are serialized by each session's own lock, so
// different conversations stream concurrently without shared mutable state.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	current  string
	opts     Options
}

// New creates an empty store. Call Hydrate to load persisted conversations.
func New(opts Options) *Store {
	return &Store{
		sessions: make(map[string]*session.Session),
		opts:     opts,
	}
}

// Hydrate loads the conversation list and restores the current pointer from
// the persistence layer.
func (s *Store) Hydrate() error {
	if s.opts.ChatStore == nil {
		return nil
	}

	metas, err := s.opts.ChatStore.ListConversations()
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.opts.ChatStore.CurrentID(); ok {
		for _, meta := range metas {
			if meta.ID == id {
				s.current = id
				break
			}
		}
	}
	return nil
}

// Conversations returns all known conversation metadata, most recently
// updated first.
func (s *Store) Conversations() ([]storage.Metadata, error) {
	if s.opts.ChatStore == nil {
		return nil, nil
	}
	return s.opts.ChatStore.ListConversations()
}

// CurrentID returns the selected conversation id, or empty.
func (s *Store) CurrentID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Current returns the session for the selected conversation.
func (s *Store) Current() (*session.Session, bool) {
	s.mu.RLock()
	id := s.current
	s.mu.RUnlock()
	if id == "" {
		return nil, false
	}

	sess, err := s.Switch(id)
	if err != nil {
		logger.Error("failed to open current conversation %s: %v", id, err)
		return nil, false
	}
	return sess, true
}

// NewConversation creates an empty conversation, selects it, and returns
// its session.
func (s *Store) NewConversation() (*session.Session, error) {
	conv := chat.NewConversation()

	if s.opts.ChatStore != nil {
		meta, err := s.opts.ChatStore.CreateConversation(conv.Title)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		conv.ID = meta.ID
		conv.CreatedAt = meta.CreatedAt
		conv.UpdatedAt = meta.UpdatedAt
	}

	sess := s.newSession(conv)

	s.mu.Lock()
	s.sessions[conv.ID] = sess
	s.current = conv.ID
	s.mu.Unlock()

	s.setCurrentPersisted(conv.ID)
	return sess, nil
}

// Switch selects a conversation, loading its messages if this is the first
// time it is opened.
func (s *Store) Switch(id string) (*session.Session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		changed := s.current != id
		s.current = id
		s.mu.Unlock()
		if changed {
			s.setCurrentPersisted(id)
		}
		return sess, nil
	}
	s.mu.Unlock()

	conv, err := s.loadConversation(id)
	if err != nil {
		return nil, err
	}
	sess := s.newSession(conv)

	s.mu.Lock()
	if existing, ok := s.sessions[id]; ok {
		sess = existing
	} else {
		s.sessions[id] = sess
	}
	changed := s.current != id
	s.current = id
	s.mu.Unlock()

	if changed {
		s.setCurrentPersisted(id)
	}
	return sess, nil
}

// Delete removes conversations. When the current conversation is removed,
// the most recently updated remaining one is selected, or the pointer is
// cleared.
func (s *Store) Delete(ids ...string) error {
	s.mu.Lock()
	doomed := make([]*session.Session, 0, len(ids))
	currentDeleted := false
	for _, id := range ids {
		if sess, ok := s.sessions[id]; ok {
			doomed = append(doomed, sess)
			delete(s.sessions, id)
		}
		if s.current == id {
			currentDeleted = true
			s.current = ""
		}
	}
	s.mu.Unlock()

	// Stop runs outside the store lock: a session with no in-flight
	// generation settles synchronously through its change callback, and
	// subscribers read store state from there. Detach first so a turn that
	// finishes after the delete cannot write the conversation back.
	for _, sess := range doomed {
		sess.Detach()
		sess.Stop()
	}

	if s.opts.ChatStore != nil {
		if err := s.opts.ChatStore.DeleteConversations(ids); err != nil {
			return fmt.Errorf("failed to delete conversations: %w", err)
		}
	}

	if currentDeleted {
		next := ""
		if metas, err := s.Conversations(); err == nil && len(metas) > 0 {
			// Listing is already sorted most recently updated first.
			next = metas[0].ID
		}
		s.mu.Lock()
		s.current = next
		s.mu.Unlock()
		s.setCurrentPersisted(next)
	}
	return nil
}

// SendMessage routes a user submission to the named conversation, or to the
// current one when conversationID is empty, creating a conversation first
// when none is selected.
func (s *Store) SendMessage(ctx context.Context, conversationID string, input session.Input) error {
	var sess *session.Session
	var err error

	switch {
	case conversationID != "":
		sess, err = s.Switch(conversationID)
	case s.CurrentID() != "":
		sess, err = s.Switch(s.CurrentID())
	default:
		sess, err = s.NewConversation()
	}
	if err != nil {
		return err
	}

	return sess.SendMessage(ctx, input)
}

func (s *Store) newSession(conv *chat.Conversation) *session.Session {
	id := conv.ID
	return session.New(conv, session.Options{
		Gateway:      s.opts.Gateway,
		Store:        s.opts.ChatStore,
		Model:        s.opts.Model,
		Credentials:  s.opts.Credentials,
		Tools:        s.opts.Tools,
		SystemPrompt: s.opts.SystemPrompt,
		OllamaURL:    s.opts.OllamaURL,
		OnChange: func() {
			if s.opts.OnChange != nil {
				s.opts.OnChange(id)
			}
		},
		OnError: func(cerr *llmerror.Error) {
			if s.opts.OnError != nil {
				s.opts.OnError(id, cerr)
			}
		},
	})
}

func (s *Store) loadConversation(id string) (*chat.Conversation, error) {
	conv := chat.NewConversation()
	conv.ID = id
	if s.opts.ChatStore == nil {
		return conv, nil
	}

	metas, err := s.opts.ChatStore.ListConversations()
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	found := false
	for _, meta := range metas {
		if meta.ID == id {
			conv.Title = meta.Title
			conv.CreatedAt = meta.CreatedAt
			conv.UpdatedAt = meta.UpdatedAt
			conv.LastMessage = meta.LastMessage
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("conversation %s not found", id)
	}

	messages, err := s.opts.ChatStore.LoadMessages(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation %s: %w", id, err)
	}
	conv.Messages = messages
	conv.MessageCount = len(messages)
	return conv, nil
}

func (s *Store) setCurrentPersisted(id string) {
	if s.opts.ChatStore == nil {
		return
	}
	if err := s.opts.ChatStore.SetCurrentID(id); err != nil {
		logger.Warn("failed to persist current conversation pointer: %v", err)
	}
}
