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

// Package lore wires the conversational retrieval service together.
//
// A Service owns every long-lived component: the AI provider, the chunk
// index, the response cache, conversation memory, the chat orchestrator and
// the ingestion scheduler. Close releases them in reverse order.
package lore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/ai/openai"
	"github.com/poiesic/lore/cache"
	"github.com/poiesic/lore/config"
	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/ingestion"
	"github.com/poiesic/lore/memory"
	"github.com/poiesic/lore/pipeline"
	"github.com/poiesic/lore/prompt"
	"github.com/poiesic/lore/retrieval"
	"github.com/poiesic/lore/server"
	"github.com/poiesic/lore/storage/badger"
)

// Service owns the long-lived components of one lore instance. Build it with
// NewService and release it with Close.
type Service struct {
	cfg          *config.Config
	provider     ai.AIProvider
	index        *badger.Index
	cache        *cache.Cache
	memory       *memory.Store
	gateway      *retrieval.Gateway
	snapshot     *retrieval.SnapshotInventory
	orchestrator *pipeline.Orchestrator
	ingester     *ingestion.Ingester
	scheduler    *ingestion.Scheduler
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	provider      ai.AIProvider
	fetcher       ingestion.Fetcher
	httpClient    *http.Client
	progress      io.Writer
	inMemoryIndex bool
	logger        *slog.Logger
}

// WithProvider supplies the AI provider instead of building one from config.
func WithProvider(p ai.AIProvider) ServiceOption {
	return func(o *serviceOptions) {
		o.provider = p
	}
}

// WithFetcher replaces the HTTP article fetcher.
func WithFetcher(f ingestion.Fetcher) ServiceOption {
	return func(o *serviceOptions) {
		o.fetcher = f
	}
}

// WithHTTPClient sets the client used for article fetches and the live inventory.
func WithHTTPClient(c *http.Client) ServiceOption {
	return func(o *serviceOptions) {
		o.httpClient = c
	}
}

// WithBatchProgress reports batch progress to w.
func WithBatchProgress(w io.Writer) ServiceOption {
	return func(o *serviceOptions) {
		o.progress = w
	}
}

// WithInMemoryIndex keeps the chunk index in memory.
func WithInMemoryIndex() ServiceOption {
	return func(o *serviceOptions) {
		o.inMemoryIndex = true
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(o *serviceOptions) {
		o.logger = logger
	}
}

// NewService builds every component from cfg.
func NewService(ctx context.Context, cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	options := &serviceOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	s := &Service{cfg: cfg, memory: memory.NewStore(), logger: logger.With("component", "service")}

	provider := options.provider
	if provider == nil {
		p, err := openai.NewProvider(cfg.AIConfig(), openai.WithProviderLogger(logger))
		if err != nil {
			return nil, err
		}
		provider = p
	}
	s.provider = provider

	backend, err := badger.OpenBackend(cfg.IndexDir(), options.inMemoryIndex)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.index, err = badger.NewIndex(backend, provider.Embedder(), badger.WithIndexLogger(logger))
	if err != nil {
		backend.Close()
		s.Close()
		return nil, err
	}

	cacheOpts := []cache.Option{cache.WithTTL(cfg.Cache.TTL), cache.WithLogger(logger)}
	if cfg.Cache.Disabled {
		s.cache, err = cache.New(cache.NewMemoryBackend(), cache.ModeMemory, cacheOpts...)
	} else {
		s.cache, err = cache.Open(ctx, func(context.Context) (cache.Backend, error) {
			store, err := badger.OpenCacheStore(cfg.CacheDir())
			if err != nil {
				return nil, err
			}
			return store, nil
		}, cfg.Cache.ConnectTimeout, cacheOpts...)
	}
	if err != nil {
		s.Close()
		return nil, err
	}

	s.gateway = retrieval.NewGateway(s.index,
		retrieval.WithTopK(cfg.Retrieval.TopK),
		retrieval.WithLogger(logger))

	var sources []retrieval.Inventory
	if cfg.Inventory.URL != "" {
		sources = append(sources, retrieval.NewHTTPInventory(cfg.Inventory.URL, options.httpClient))
	}
	sources = append(sources, retrieval.NewIndexInventory(s.index))
	if path := cfg.SnapshotPath(); path != "" {
		s.snapshot = retrieval.NewSnapshotInventory(path)
		sources = append(sources, s.snapshot)
	}

	s.orchestrator, err = pipeline.NewOrchestrator(s.gateway, provider.Generator(),
		pipeline.WithCache(s.cache),
		pipeline.WithMemory(s.memory),
		pipeline.WithInventory(retrieval.NewChain(logger, sources...)),
		pipeline.WithAssembler(prompt.NewAssembler(s.index, prompt.WithLogger(logger))),
		pipeline.WithTopK(cfg.Retrieval.TopK),
		pipeline.WithLogger(logger))
	if err != nil {
		s.Close()
		return nil, err
	}

	fetcher := options.fetcher
	if fetcher == nil {
		fetcher = ingestion.NewHTTPFetcher(
			ingestion.WithHTTPClient(options.httpClient),
			ingestion.WithUserAgent(cfg.Ingestion.UserAgent),
			ingestion.WithMinContentLength(cfg.Ingestion.MinContentLength),
			ingestion.WithRetry(cfg.Ingestion.FetchAttempts, ingestion.DefaultRetryDelay),
			ingestion.WithFetcherLogger(logger))
	}
	s.ingester, err = ingestion.NewIngester(fetcher, s.index,
		ingestion.WithDedupCache(s.cache),
		ingestion.WithChunking(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap),
		ingestion.WithJobTimeout(cfg.Ingestion.JobTimeout),
		ingestion.WithIngesterLogger(logger))
	if err != nil {
		s.Close()
		return nil, err
	}

	schedOpts := []ingestion.SchedulerOption{
		ingestion.WithConcurrency(cfg.Ingestion.Concurrency),
		ingestion.WithOnComplete(s.saveSnapshot),
		ingestion.WithSchedulerLogger(logger),
	}
	if options.progress != nil {
		schedOpts = append(schedOpts, ingestion.WithProgress(options.progress))
	}
	s.scheduler, err = ingestion.NewScheduler(s.ingester, schedOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.logger.Info("service ready", "cache", s.cache.Mode(), "index", cfg.IndexDir(), "model", provider.Generator().Model())
	return s, nil
}

// saveSnapshot rewrites the static inventory after a batch.
func (s *Service) saveSnapshot(status core.BatchStatus) {
	if s.snapshot == nil {
		return
	}
	docs, err := s.index.Documents(context.Background())
	if err != nil {
		s.logger.Warn("inventory snapshot skipped", "err", err)
		return
	}
	if err := s.snapshot.Save(docs); err != nil {
		s.logger.Warn("inventory snapshot failed", "err", err)
		return
	}
	s.logger.Debug("inventory snapshot saved", "documents", len(docs), "processed", status.Processed)
}

// Orchestrator answers chat turns.
func (s *Service) Orchestrator() *pipeline.Orchestrator {
	return s.orchestrator
}

// Ingester ingests single articles.
func (s *Service) Ingester() *ingestion.Ingester {
	return s.ingester
}

// Scheduler runs ingestion batches.
func (s *Service) Scheduler() *ingestion.Scheduler {
	return s.scheduler
}

// Cache is the response cache.
func (s *Service) Cache() *cache.Cache {
	return s.cache
}

// Index is the chunk index.
func (s *Service) Index() *badger.Index {
	return s.index
}

// NewServer builds the HTTP surface over this service.
func (s *Service) NewServer(opts ...server.Option) *server.Server {
	opts = append([]server.Option{
		server.WithLogger(s.logger),
		server.WithCacheMode(string(s.cache.Mode())),
	}, opts...)
	return server.New(s.orchestrator, s.ingester, s.scheduler, opts...)
}

// Close releases every component. The scheduler is stopped first so no job
// writes to a closed index.
func (s *Service) Close() error {
	var errs []error
	if s.scheduler != nil {
		s.scheduler.Release()
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("error closing cache", "err", err)
			errs = append(errs, err)
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Error("error closing index", "err", err)
			errs = append(errs, err)
		}
	}
	if s.provider != nil {
		if err := s.provider.Close(); err != nil {
			s.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
