package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/poiesic/lore/core"
)

// ConversationHeader carries the conversation id of a streamed turn.
const ConversationHeader = "X-Conversation-Id"

type sseFrame struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
}

type sseSourcesFrame struct {
	Content string               `json:"content"`
	Sources []core.SourceSummary `json:"sources"`
	Done    bool                 `json:"done"`
}

type sseErrorFrame struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Done    bool   `json:"done"`
}

// sseSink writes stream events as server-sent events. Headers are sent with
// the first event, so a turn that fails before streaming can still be
// answered with a plain JSON error.
type sseSink struct {
	w              http.ResponseWriter
	rc             *http.ResponseController
	conversationID string
	started        bool
}

func newSSESink(w http.ResponseWriter, conversationID string) *sseSink {
	return &sseSink{w: w, rc: http.NewResponseController(w), conversationID: conversationID}
}

func (s *sseSink) Send(event core.StreamEvent) error {
	if !s.started {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set(ConversationHeader, s.conversationID)
		s.w.WriteHeader(http.StatusOK)
		s.started = true
	}

	var payload any
	switch event.Type {
	case core.EventError:
		payload = sseErrorFrame{Error: event.Code, Message: event.Message, Done: true}
	case core.EventDone:
		payload = sseFrame{Done: true}
	case core.EventSources:
		sources := event.Sources
		if sources == nil {
			sources = []core.SourceSummary{}
		}
		payload = sseSourcesFrame{Sources: sources}
	default:
		payload = sseFrame{Content: event.Content}
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	return s.rc.Flush()
}
