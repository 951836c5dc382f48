package tools

import (
	"context"
	"fmt"
	"strings"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder turns text into an embedding vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Document is one indexable piece of documentation context.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// DocContextTool retrieves relevant documentation passages from a local
// vector collection.
type DocContextTool struct {
	db         *chromem.DB
	collection *chromem.Collection
	topK       int
}

// DocContextConfig configures the vector collection backing the tool.
type DocContextConfig struct {
	// CollectionName defaults to "docs".
	CollectionName string
	// PersistDirectory keeps the collection on disk; empty means in-memory.
	PersistDirectory string
	// Embedder produces embeddings for both documents and queries.
	Embedder Embedder
	// TopK bounds how many passages a query returns; defaults to 4.
	TopK int
}

// NewDocContextTool opens (or creates) the vector collection.
func NewDocContextTool(cfg DocContextConfig) (*DocContextTool, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if cfg.CollectionName == "" {
		cfg.CollectionName = "docs"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}

	var db *chromem.DB
	var err error
	if cfg.PersistDirectory != "" {
		db, err = chromem.NewPersistentDB(cfg.PersistDirectory, false)
		if err != nil {
			return nil, fmt.Errorf("failed to open vector database: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	embeddingFunc := func(ctx context.Context, text string) ([]float32, error) {
		return cfg.Embedder.EmbedText(ctx, text)
	}
	collection, err := db.GetOrCreateCollection(cfg.CollectionName, nil, embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %s: %w", cfg.CollectionName, err)
	}

	return &DocContextTool{db: db, collection: collection, topK: cfg.TopK}, nil
}

// Index adds documents to the collection.
func (t *DocContextTool) Index(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:       doc.ID,
			Content:  doc.Content,
			Metadata: doc.Metadata,
		}
	}
	if err := t.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("failed to index documents: %w", err)
	}
	return nil
}

// Name returns the tool name.
func (t *DocContextTool) Name() string {
	return "doc_context"
}

// Description returns the tool description.
func (t *DocContextTool) Description() string {
	return "Retrieve relevant documentation passages for a question. Input: question string"
}

// Call runs a similarity query and concatenates the best passages.
func (t *DocContextTool) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("query cannot be empty")
	}

	k := t.topK
	if count := t.collection.Count(); count < k {
		k = count
	}
	if k == 0 {
		return "No documentation has been indexed.", nil
	}

	results, err := t.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return "", fmt.Errorf("documentation query failed: %w", err)
	}

	var b strings.Builder
	for i, res := range results {
		if i > 0 {
			b.WriteString("\n\n---\n\n")
		}
		b.WriteString(res.Content)
	}
	return b.String(), nil
}
