package provider

import (
	"fmt"
	"strings"

	"github.com/patchwell/sidechat/pkg/stream"
)

var (
	thinkOpenTags  = []string{"<think>", "<thinking>"}
	thinkCloseTags = []string{"</think>", "</thinking>"}
	maxThinkTagLen = len("</thinking>")
)

// thinkSplitter converts a raw streamed text delta sequence into reasoning
// and text events by tracking <think> spans across chunk boundaries. A
// possible partial tag at the end of the buffer is held back until the next
// chunk arrives or the stream ends.
type thinkSplitter struct {
	emit    func(stream.Event) bool
	buf     string
	inThink bool
	spanSeq int
	spanID  string
}

func newThinkSplitter(emit func(stream.Event) bool) *thinkSplitter {
	return &thinkSplitter{emit: emit}
}

// Feed processes one raw chunk. Returns false when emitting was aborted.
func (s *thinkSplitter) Feed(chunk string) bool {
	s.buf += chunk
	return s.drain(false)
}

// Flush emits everything still buffered and closes an open reasoning span.
func (s *thinkSplitter) Flush() bool {
	if !s.drain(true) {
		return false
	}
	if s.inThink {
		s.inThink = false
		return s.emit(stream.ReasoningEnd{ID: s.spanID})
	}
	return true
}

func (s *thinkSplitter) drain(final bool) bool {
	for {
		tags := thinkOpenTags
		if s.inThink {
			tags = thinkCloseTags
		}

		idx, tagLen := findFirstTag(s.buf, tags)
		if idx >= 0 {
			if !s.emitContent(s.buf[:idx]) {
				return false
			}
			s.buf = s.buf[idx+tagLen:]
			if s.inThink {
				s.inThink = false
				if !s.emit(stream.ReasoningEnd{ID: s.spanID}) {
					return false
				}
			} else {
				s.inThink = true
				s.spanSeq++
				s.spanID = fmt.Sprintf("reasoning-%d", s.spanSeq)
				if !s.emit(stream.ReasoningStart{ID: s.spanID}) {
					return false
				}
			}
			continue
		}

		cut := len(s.buf)
		if !final {
			// Hold back a tail that could be the start of a split tag.
			if i := strings.LastIndexByte(s.buf, '<'); i >= 0 && len(s.buf)-i < maxThinkTagLen {
				cut = i
			}
		}
		if !s.emitContent(s.buf[:cut]) {
			return false
		}
		s.buf = s.buf[cut:]
		return true
	}
}

func (s *thinkSplitter) emitContent(text string) bool {
	if text == "" {
		return true
	}
	if s.inThink {
		return s.emit(stream.ReasoningDelta{ID: s.spanID, Text: text})
	}
	return s.emit(stream.TextDelta{Text: text})
}

func findFirstTag(s string, tags []string) (idx, tagLen int) {
	idx = -1
	for _, tag := range tags {
		if i := strings.Index(s, tag); i >= 0 && (idx < 0 || i < idx) {
			idx = i
			tagLen = len(tag)
		}
	}
	return idx, tagLen
}
