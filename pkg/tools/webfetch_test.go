package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebFetchTool(t *testing.T) {
	t.Run("should return plain responses as-is", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "plain body")
		}))
		defer server.Close()

		tool := NewWebFetchTool(5*time.Second, 0)
		out, err := tool.Call(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "plain body", out)
	})

	t.Run("should extract readable text from html", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><head><title>Test Page</title></head><body>
				<article><h1>Heading</h1>
				<p>This is the first paragraph of meaningful article content that should survive extraction.</p>
				<p>And a second paragraph with enough text to count as the main body of the page.</p>
				</article></body></html>`)
		}))
		defer server.Close()

		tool := NewWebFetchTool(5*time.Second, 0)
		out, err := tool.Call(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "first paragraph of meaningful article content")
		assert.NotContains(t, out, "<p>")
	})

	t.Run("should send the client user agent", func(t *testing.T) {
		var gotAgent string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAgent = r.Header.Get("User-Agent")
			fmt.Fprint(w, "ok")
		}))
		defer server.Close()

		tool := NewWebFetchTool(5*time.Second, 0)
		_, err := tool.Call(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Equal(t, "sidechat/1.0", gotAgent)
	})

	t.Run("should surface http errors with body context", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "page gone", http.StatusNotFound)
		}))
		defer server.Close()

		tool := NewWebFetchTool(5*time.Second, 0)
		_, err := tool.Call(context.Background(), server.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
		assert.Contains(t, err.Error(), "page gone")
	})

	t.Run("should reject empty and non-http urls", func(t *testing.T) {
		tool := NewWebFetchTool(5*time.Second, 0)

		_, err := tool.Call(context.Background(), "  ")
		assert.Error(t, err)

		_, err = tool.Call(context.Background(), "ftp://example.com/file")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported URL scheme")
	})

	t.Run("should bound the body size and mark truncation", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, strings.Repeat("x", 4096))
		}))
		defer server.Close()

		tool := NewWebFetchTool(5*time.Second, 1024)
		out, err := tool.Call(context.Background(), server.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "[Content truncated")
		assert.True(t, strings.HasPrefix(out, strings.Repeat("x", 1024)))
	})
}

func TestDocLookupTool(t *testing.T) {
	t.Run("should fetch the topic path under the base url", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, "doc content")
		}))
		defer server.Close()

		tool := NewDocLookupTool(server.URL+"/", 5*time.Second)
		out, err := tool.Call(context.Background(), "net/http")
		require.NoError(t, err)
		assert.Equal(t, "doc content", out)
		assert.Equal(t, "/net%2Fhttp", gotPath)
	})

	t.Run("should reject empty topics", func(t *testing.T) {
		tool := NewDocLookupTool("https://pkg.go.dev", 5*time.Second)
		_, err := tool.Call(context.Background(), "   ")
		assert.Error(t, err)
	})

	t.Run("should require a base url", func(t *testing.T) {
		tool := NewDocLookupTool("", 5*time.Second)
		_, err := tool.Call(context.Background(), "fmt")
		assert.Error(t, err)
	})
}
