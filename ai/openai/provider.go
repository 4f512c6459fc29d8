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

package openai

import (
	"log/slog"
	"net/http"

	"github.com/poiesic/lore/ai"
)

// Provider implements ai.AIProvider over one OpenAI-compatible endpoint pair.
// The embedder and generator share a single HTTP client.
type Provider struct {
	config    *ai.Config
	client    *http.Client
	embedder  *Embedder
	generator *Generator
	logger    *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient sets the client shared by the embedder and the generator.
// Request deadlines come from contexts, so the client should carry no Timeout.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithProviderLogger sets the logger handed to the embedder and generator.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProvider validates config and builds the embedder and generator.
//
// Returns ai.AIProvider so callers do not couple to this implementation.
func NewProvider(config *ai.Config, opts ...ProviderOption) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	p := &Provider{
		config: config,
		client: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	var err error
	if p.embedder, err = newEmbedder(config, p.client, p.logger); err != nil {
		return nil, err
	}
	if p.generator, err = newGenerator(config, p.client, p.logger); err != nil {
		return nil, err
	}
	p.logger = p.logger.With("component", "openai-provider")
	p.logger.Debug("provider ready",
		"chat_host", config.ChatHost, "chat_model", config.ChatModel,
		"embedding_host", config.EmbeddingHost, "embedding_model", config.EmbeddingModel)
	return p, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Generator() ai.Generator {
	return p.generator
}

// Close drops idle connections held by the shared client.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	p.client.CloseIdleConnections()
	return nil
}
