package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/ingestion"
)

// CodeBatchInProgress is reported when a batch is submitted while one runs.
const CodeBatchInProgress = "batch_in_progress"

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// statusFor maps an error onto its HTTP status and stable code.
func statusFor(err error) (int, string) {
	if errors.Is(err, ingestion.ErrBatchInProgress) {
		return http.StatusConflict, CodeBatchInProgress
	}
	code := core.ErrorCode(err)
	switch code {
	case core.CodeValidation:
		return http.StatusBadRequest, code
	case core.CodeNotFound:
		return http.StatusNotFound, code
	case core.CodeServiceUnavailable:
		return http.StatusServiceUnavailable, code
	case core.CodeUpstreamTimeout:
		return http.StatusGatewayTimeout, code
	case core.CodeUpstream:
		return http.StatusBadGateway, code
	default:
		return http.StatusInternalServerError, core.CodeInternal
	}
}

func messageFor(code string, err error) string {
	switch code {
	case CodeBatchInProgress:
		return "A batch ingestion is already in progress."
	case core.CodeValidation:
		// validation messages describe the caller's input
		return err.Error()
	default:
		return core.ErrorMessage(code)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	} else {
		s.logger.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "code", code, "err", err)
	}
	writeJSON(w, status, errorBody{Error: code, Message: messageFor(code, err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
