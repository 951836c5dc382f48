package session

import (
	"fmt"

	"github.com/patchwell/sidechat/pkg/chat"
)

// transitions is the complete set of legal status moves. Everything not
// listed is rejected, so illegal moves fail in one place instead of being
// scattered across call sites.
var transitions = map[chat.Status]map[chat.Status]bool{
	chat.StatusReady: {
		chat.StatusReady:     true,
		chat.StatusSubmitted: true,
	},
	chat.StatusSubmitted: {
		chat.StatusStreaming: true,
		chat.StatusReady:     true,
		chat.StatusError:     true,
	},
	chat.StatusStreaming: {
		chat.StatusReady: true,
		chat.StatusError: true,
	},
	chat.StatusError: {
		chat.StatusReady:     true,
		chat.StatusSubmitted: true,
	},
}

func canTransition(from, to chat.Status) bool {
	return transitions[from][to]
}

func (s *Session) transitionLocked(to chat.Status) error {
	from := s.conv.Status
	if !canTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	s.conv.Status = to
	return nil
}
