// Package devagent implements the alternate "dev" pipeline: the same chat
// surface proxied against a remote development-agent server with project and
// session selection, using plain request/response instead of streaming.
package devagent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/patchwell/sidechat/pkg/llmerror"
)

// Project is one workspace known to the remote agent.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Path string `json:"path,omitempty"`
}

// Session is one agent conversation inside a project.
type Session struct {
	ID        string `json:"id"`
	ProjectID string `json:"project_id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// Reply is the complete assistant response to one dev-mode message.
type Reply struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

// Client talks to a dev-agent server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the given server.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ListProjects returns the projects available on the server.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.get(ctx, "/projects", &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// ListSessions returns the sessions of a project.
func (c *Client) ListSessions(ctx context.Context, projectID string) ([]Session, error) {
	var sessions []Session
	if err := c.get(ctx, "/projects/"+projectID+"/sessions", &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateSession starts a new session in a project.
func (c *Client) CreateSession(ctx context.Context, projectID, title string) (Session, error) {
	var created Session
	body := map[string]string{"project_id": projectID, "title": title}
	if err := c.post(ctx, "/sessions", body, &created); err != nil {
		return Session{}, err
	}
	return created, nil
}

// SendMessage submits one user message and waits for the full reply.
func (c *Client) SendMessage(ctx context.Context, sessionID, text string) (Reply, error) {
	var reply Reply
	body := map[string]string{"text": text}
	if err := c.post(ctx, "/sessions/"+sessionID+"/messages", body, &reply); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dev agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &llmerror.StatusError{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("dev agent %s: %s", req.URL.Path, strings.TrimSpace(string(body))),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode dev agent response: %w", err)
	}
	return nil
}
