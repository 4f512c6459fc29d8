// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/stream"
)

// Chatter answers chat turns.
type Chatter interface {
	Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResponse, error)
	ChatStream(ctx context.Context, req core.ChatRequest, sink stream.Sink) error
	ClearHistory(conversationID string)
}

// ArticleIngester ingests a single article.
type ArticleIngester interface {
	Ingest(ctx context.Context, url, title string) (*core.IngestResult, error)
}

// BatchScheduler runs background ingestion batches.
type BatchScheduler interface {
	SubmitBatch(ctx context.Context, urls []string) error
	Status() core.BatchStatus
}

// Server is the HTTP front of the service. Collaborators that are nil make
// their routes answer 503 service_unavailable.
type Server struct {
	chat      Chatter
	ingester  ArticleIngester
	scheduler BatchScheduler
	cacheMode string
	maxBody   int64
	logger    *slog.Logger
	mux       *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger.With("component", "server")
		}
	}
}

// WithCacheMode sets the cache mode reported by the health route.
func WithCacheMode(mode string) Option {
	return func(s *Server) {
		s.cacheMode = mode
	}
}

// WithMaxBodyBytes bounds request bodies. Default is 1 MiB.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// New builds a server over its collaborators.
func New(chat Chatter, ingester ArticleIngester, scheduler BatchScheduler, opts ...Option) *Server {
	s := &Server{
		chat:      chat,
		ingester:  ingester,
		scheduler: scheduler,
		cacheMode: "unknown",
		maxBody:   1 << 20,
		logger:    slog.Default().With("component", "server"),
		mux:       http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("DELETE /api/chat/{conversationId}/history", s.handleClearHistory)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /api/ingest/batch", s.handleIngestBatch)
	s.mux.HandleFunc("GET /api/ingest/status", s.handleIngestStatus)
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	return s
}

// Handler returns the routes wrapped in logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	return WithCORS(s.logRequests(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		// no WriteTimeout: streamed answers can run for minutes
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying flusher.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
