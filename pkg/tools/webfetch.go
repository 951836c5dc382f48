package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const defaultMaxBodySize = 10 * 1024 * 1024

// WebFetchTool fetches a URL and returns readable page content. HTML is run
// through readability extraction; everything else is returned as-is up to
// the size limit.
type WebFetchTool struct {
	client      *http.Client
	maxBodySize int64
}

// NewWebFetchTool creates a web fetch tool with the given timeout and body
// size bound; zero values select defaults.
func NewWebFetchTool(timeout time.Duration, maxBodySize int64) *WebFetchTool {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if maxBodySize == 0 {
		maxBodySize = defaultMaxBodySize
	}
	return &WebFetchTool{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		maxBodySize: maxBodySize,
	}
}

// Name returns the tool name.
func (t *WebFetchTool) Name() string {
	return "web_fetch"
}

// Description returns the tool description.
func (t *WebFetchTool) Description() string {
	return "Fetch content from a URL. Input: URL string"
}

// Call executes the fetch.
func (t *WebFetchTool) Call(ctx context.Context, input string) (string, error) {
	urlStr := strings.TrimSpace(input)
	if urlStr == "" {
		return "", fmt.Errorf("URL cannot be empty")
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme == "" {
		u.Scheme = "https"
		urlStr = u.String()
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("unsupported URL scheme: %s (only http/https allowed)", u.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "sidechat/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("HTTP %d: %s\n%s", resp.StatusCode, resp.Status, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") {
		if extracted, err := extractArticle(body, u); err == nil && extracted != "" {
			return extracted, nil
		}
	}

	result := string(body)
	if result == "" {
		return fmt.Sprintf("[Empty response from %s]", urlStr), nil
	}
	if int64(len(body)) >= t.maxBodySize {
		result += fmt.Sprintf("\n\n[Content truncated at %d MB]", t.maxBodySize/(1024*1024))
	}
	return result, nil
}

func extractArticle(body []byte, u *url.URL) (string, error) {
	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return "", fmt.Errorf("readability extraction failed: %w", err)
	}

	var b strings.Builder
	if article.Title != "" {
		b.WriteString(article.Title)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimSpace(article.TextContent))
	return b.String(), nil
}
