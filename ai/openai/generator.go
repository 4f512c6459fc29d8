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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator implements ai.Generator using OpenAI-compatible chat APIs.
type Generator struct {
	client      llms.Model
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	logger      *slog.Logger
}

// newGenerator is an internal constructor that returns the concrete type.
func newGenerator(config *ai.Config, doer *http.Client, logger *slog.Logger) (*Generator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	opts := []openai.Option{
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ChatModel),
	}
	if doer != nil {
		opts = append(opts, openai.WithHTTPClient(doer))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, err
	}

	g := newGeneratorWithModel(client, config)
	g.logger = logger.With("component", "openai-generator", "model", config.ChatModel)
	return g, nil
}

func newGeneratorWithModel(client llms.Model, config *ai.Config) *Generator {
	return &Generator{
		client:      client,
		model:       config.ChatModel,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		timeout:     config.RequestTimeout,
		logger:      slog.Default().With("component", "openai-generator"),
	}
}

// NewGenerator creates a new generator using the provided configuration.
//
// Returns ai.Generator interface to enforce abstraction.
func NewGenerator(config *ai.Config) (ai.Generator, error) {
	return newGenerator(config, nil, slog.Default())
}

// Model returns the configured chat model identifier.
func (g *Generator) Model() string {
	return g.model
}

func (g *Generator) callOptions() []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(g.temperature)}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}
	return opts
}

// Generate returns a whole answer, bounded by the configured request timeout.
func (g *Generator) Generate(ctx context.Context, messages []ai.Message) (*ai.Generation, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages to generate from", core.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	response, err := g.client.GenerateContent(ctx, toMessageContent(messages), g.callOptions()...)
	if err != nil {
		g.logger.Error("generation failed", "err", err, "elapsed", time.Since(start))
		return nil, classifyError(ctx, err)
	}
	if len(response.Choices) < 1 {
		return nil, fmt.Errorf("%w: model returned no choices", core.ErrUpstream)
	}

	choice := response.Choices[0]
	g.logger.Debug("generation complete", "length", len(choice.Content), "elapsed", time.Since(start))

	return &ai.Generation{
		Text:       choice.Content,
		Model:      g.model,
		TokensUsed: tokensUsed(choice.GenerationInfo),
	}, nil
}

// GenerateStream starts a streamed generation. Fragments are delivered on a
// buffered channel in the order the model emits them. The whole stream is
// bounded by the configured request timeout; expiry ends it with an error
// fragment wrapping core.ErrUpstreamTimeout.
func (g *Generator) GenerateStream(ctx context.Context, messages []ai.Message) (<-chan ai.Fragment, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("%w: no messages to generate from", core.ErrValidation)
	}

	out := make(chan ai.Fragment, ai.StreamBuffer)
	content := toMessageContent(messages)

	go func() {
		defer close(out)

		reqCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()

		forward := func(ctx context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			select {
			case out <- ai.Fragment{Content: string(chunk)}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		start := time.Now()
		opts := append(g.callOptions(), llms.WithStreamingFunc(forward))
		_, err := g.client.GenerateContent(reqCtx, content, opts...)
		if err == nil {
			return
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			g.logger.Debug("stream cancelled by consumer")
			return
		}

		g.logger.Error("stream failed", "err", err, "elapsed", time.Since(start))
		select {
		case out <- ai.Fragment{Err: classifyError(reqCtx, err)}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

func toMessageContent(messages []ai.Message) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		switch m.Role {
		case ai.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case ai.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(scrubControl(m.Content))},
		})
	}
	return content
}
