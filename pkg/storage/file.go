package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/patchwell/sidechat/pkg/chat"
)

const indexFile = "index.json"

type index struct {
	Conversations []Metadata `json:"conversations"`
	CurrentID     string     `json:"current_id,omitempty"`
}

// FileStore implements ChatStore with one JSON file per conversation plus an
// index file, all under a single directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
	idx index
}

// NewFileStore opens (or creates) a store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	fs := &FileStore{dir: dir}
	if err := fs.loadIndex(); err != nil {
		return nil, err
	}
	return fs, nil
}

// ListConversations returns all known conversations, most recently updated
// first.
func (fs *FileStore) ListConversations() ([]Metadata, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.snapshotLocked(), nil
}

// CreateConversation registers a new empty conversation.
func (fs *FileStore) CreateConversation(title string) (Metadata, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if title == "" {
		title = chat.DefaultTitle
	}
	now := time.Now().UnixMilli()
	meta := Metadata{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	fs.idx.Conversations = append(fs.idx.Conversations, meta)

	if err := fs.saveIndexLocked(); err != nil {
		return Metadata{}, err
	}
	return meta, nil
}

// LoadMessages reads a conversation's message array. A conversation that
// was never saved yields an empty slice.
func (fs *FileStore) LoadMessages(id string) ([]chat.Message, error) {
	data, err := os.ReadFile(fs.messagePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return []chat.Message{}, nil
		}
		return nil, fmt.Errorf("failed to read conversation %s: %w", id, err)
	}

	var messages []chat.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation %s: %w", id, err)
	}
	return messages, nil
}

// SaveMessages writes the message array and refreshes the conversation's
// metadata from it.
func (fs *FileStore) SaveMessages(id string, messages []chat.Message) ([]Metadata, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode conversation %s: %w", id, err)
	}
	if err := os.WriteFile(fs.messagePath(id), data, 0644); err != nil {
		return nil, fmt.Errorf("failed to write conversation %s: %w", id, err)
	}

	found := false
	for i := range fs.idx.Conversations {
		if fs.idx.Conversations[i].ID == id {
			refreshMetadata(&fs.idx.Conversations[i], messages)
			found = true
			break
		}
	}
	if !found {
		meta := Metadata{ID: id, CreatedAt: time.Now().UnixMilli()}
		refreshMetadata(&meta, messages)
		fs.idx.Conversations = append(fs.idx.Conversations, meta)
	}

	if err := fs.saveIndexLocked(); err != nil {
		return nil, err
	}
	return fs.snapshotLocked(), nil
}

// DeleteConversations removes conversations and their message files. The
// current pointer is cleared if it pointed at a removed conversation.
func (fs *FileStore) DeleteConversations(ids []string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	kept := fs.idx.Conversations[:0]
	for _, meta := range fs.idx.Conversations {
		if doomed[meta.ID] {
			os.Remove(fs.messagePath(meta.ID))
			continue
		}
		kept = append(kept, meta)
	}
	fs.idx.Conversations = kept

	if doomed[fs.idx.CurrentID] {
		fs.idx.CurrentID = ""
	}
	return fs.saveIndexLocked()
}

// CurrentID returns the selected conversation id.
func (fs *FileStore) CurrentID() (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.idx.CurrentID, fs.idx.CurrentID != ""
}

// SetCurrentID selects a conversation.
func (fs *FileStore) SetCurrentID(id string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.idx.CurrentID = id
	return fs.saveIndexLocked()
}

func (fs *FileStore) messagePath(id string) string {
	return filepath.Join(fs.dir, id+".json")
}

func (fs *FileStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(fs.dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read index: %w", err)
	}
	if err := json.Unmarshal(data, &fs.idx); err != nil {
		return fmt.Errorf("failed to decode index: %w", err)
	}
	return nil
}

func (fs *FileStore) saveIndexLocked() error {
	data, err := json.MarshalIndent(fs.idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}
	if err := os.WriteFile(filepath.Join(fs.dir, indexFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

func (fs *FileStore) snapshotLocked() []Metadata {
	out := make([]Metadata, len(fs.idx.Conversations))
	copy(out, fs.idx.Conversations)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt > out[j].UpdatedAt
	})
	return out
}

func refreshMetadata(meta *Metadata, messages []chat.Message) {
	meta.MessageCount = len(messages)
	meta.UpdatedAt = time.Now().UnixMilli()

	meta.Title = chat.DefaultTitle
	for _, msg := range messages {
		if msg.IsUser() {
			meta.Title = chat.DeriveTitle(msg.Text())
			break
		}
	}

	meta.LastMessage = ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].IsUser() {
			meta.LastMessage = messages[i].Text()
			break
		}
	}
}
