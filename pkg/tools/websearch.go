package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// WebSearchTool answers a free-text query with DuckDuckGo results.
type WebSearchTool struct {
	inner *duckduckgo.Tool
}

// NewWebSearchTool creates a web search tool returning up to maxResults
// hits per query.
func NewWebSearchTool(maxResults int) (*WebSearchTool, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	inner, err := duckduckgo.New(maxResults, "sidechat/1.0")
	if err != nil {
		return nil, fmt.Errorf("failed to create search client: %w", err)
	}
	return &WebSearchTool{inner: inner}, nil
}

// Name returns the tool name.
func (t *WebSearchTool) Name() string {
	return "web_search"
}

// Description returns the tool description.
func (t *WebSearchTool) Description() string {
	return "Search the web. Input: search query string"
}

// Call executes the search.
func (t *WebSearchTool) Call(ctx context.Context, input string) (string, error) {
	query := strings.TrimSpace(input)
	if query == "" {
		return "", fmt.Errorf("search query cannot be empty")
	}
	return t.inner.Call(ctx, query)
}
