package provider

import (
	"context"

	"github.com/patchwell/sidechat/pkg/chat"
	"github.com/patchwell/sidechat/pkg/stream"
)

// Tool is the subset of tool behavior a gateway needs: enough to describe
// the tool to the model and to run it when the model calls it.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, input string) (string, error)
}

// StreamRequest is one generation request. All fields are snapshotted by the
// caller at send time; changing settings mid-stream has no effect on an
// in-flight turn.
type StreamRequest struct {
	Model        Model
	Credential   string
	Messages     []chat.Message
	Tools        []Tool
	SystemPrompt string
}

// Gateway starts streamed generations. The returned channel delivers the
// ordered event sequence for one assistant turn and is closed when the turn
// ends; failures surface as a stream.Error event or an error from Stream
// itself, never as silent truncation.
type Gateway interface {
	Stream(ctx context.Context, req StreamRequest) (<-chan stream.Event, error)
}
