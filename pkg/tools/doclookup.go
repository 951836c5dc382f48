package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DocLookupTool fetches the documentation page for a topic from a
// configured documentation site, reusing the web fetch pipeline for
// retrieval and extraction.
type DocLookupTool struct {
	baseURL string
	fetcher *WebFetchTool
}

// NewDocLookupTool creates a doc lookup tool rooted at baseURL.
func NewDocLookupTool(baseURL string, timeout time.Duration) *DocLookupTool {
	return &DocLookupTool{
		baseURL: strings.TrimRight(baseURL, "/"),
		fetcher: NewWebFetchTool(timeout, 0),
	}
}

// Name returns the tool name.
func (t *DocLookupTool) Name() string {
	return "doc_lookup"
}

// Description returns the tool description.
func (t *DocLookupTool) Description() string {
	return "Look up documentation for a topic or symbol. Input: topic path or name"
}

// Call fetches the documentation page for the given topic.
func (t *DocLookupTool) Call(ctx context.Context, input string) (string, error) {
	topic := strings.TrimSpace(input)
	if topic == "" {
		return "", fmt.Errorf("documentation topic cannot be empty")
	}
	if t.baseURL == "" {
		return "", fmt.Errorf("no documentation base URL configured")
	}

	target := t.baseURL + "/" + url.PathEscape(strings.Trim(topic, "/"))
	content, err := t.fetcher.Call(ctx, target)
	if err != nil {
		return "", fmt.Errorf("documentation lookup for %q failed: %w", topic, err)
	}
	return content, nil
}
