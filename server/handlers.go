package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/poiesic/lore/core"
)

type chatBody struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Stream         bool   `json:"stream"`
}

type ingestBody struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type ingestResponse struct {
	Message string `json:"message"`
	core.IngestResult
}

type batchBody struct {
	URLs []string `json:"urls"`
}

type batchResponse struct {
	Message string `json:"message"`
	Total   int    `json:"total"`
	Status  string `json:"status"`
}

type healthResponse struct {
	Status string `json:"status"`
	Cache  string `json:"cache"`
}

// decode reads a JSON body into v. Malformed bodies are validation errors.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: request body is empty", core.ErrValidation)
		}
		return fmt.Errorf("%w: malformed request body: %w", core.ErrValidation, err)
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.writeError(w, r, core.ErrServiceNotInitialized)
		return
	}
	var body chatBody
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	req := core.ChatRequest{Message: body.Message, ConversationID: body.ConversationID}

	if !body.Stream {
		resp, err := s.chat.Chat(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	// An id-less stream stays anonymous downstream; the header id is fresh.
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	sink := newSSESink(w, conversationID)
	if err := s.chat.ChatStream(r.Context(), req, sink); err != nil {
		if !sink.started {
			s.writeError(w, r, err)
			return
		}
		s.logger.Debug("stream ended with error", "conversation", conversationID, "err", err)
	}
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.writeError(w, r, core.ErrServiceNotInitialized)
		return
	}
	s.chat.ClearHistory(r.PathValue("conversationId"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.ingester == nil {
		s.writeError(w, r, core.ErrServiceNotInitialized)
		return
	}
	var body ingestBody
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.ingester.Ingest(r.Context(), body.URL, body.Title)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Message: "Article ingested successfully", IngestResult: *res})
}

func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, r, core.ErrServiceNotInitialized)
		return
	}
	var body batchBody
	if err := s.decode(w, r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.scheduler.SubmitBatch(r.Context(), body.URLs); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batchResponse{
		Message: "Batch ingestion started",
		Total:   len(body.URLs),
		Status:  "started",
	})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if s.scheduler == nil {
		s.writeError(w, r, core.ErrServiceNotInitialized)
		return
	}
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "initializing", Cache: s.cacheMode})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Cache: s.cacheMode})
}
