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

package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/cache"
	"github.com/poiesic/lore/classify"
	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/memory"
	"github.com/poiesic/lore/prompt"
	"github.com/poiesic/lore/retrieval"
	"github.com/poiesic/lore/stream"
)

// Apology is the answer given to an inventory question when no inventory
// source is reachable. It is neither cached nor remembered.
const Apology = "I'm sorry, I can't reach the article inventory right now. Please try again in a moment."

// Retriever finds context passages for a query.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]core.RetrievedChunk, error)
}

// Orchestrator executes chat turns. It is safe for concurrent use; the only
// shared state is the conversation memory and the response cache.
type Orchestrator struct {
	retriever  Retriever
	generator  ai.Generator
	classifier *classify.Classifier
	assembler  *prompt.Assembler
	memory     *memory.Store
	cache      *cache.Cache
	inventory  retrieval.Inventory
	topK       int
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithCache enables response caching. Without a cache every turn is generated.
func WithCache(c *cache.Cache) Option {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithInventory sets the source consulted for article listing questions.
func WithInventory(inv retrieval.Inventory) Option {
	return func(o *Orchestrator) {
		o.inventory = inv
	}
}

// WithMemory shares a conversation store.
func WithMemory(m *memory.Store) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.memory = m
		}
	}
}

// WithClassifier replaces the default rule table.
func WithClassifier(c *classify.Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

// WithAssembler replaces the prompt assembler.
func WithAssembler(a *prompt.Assembler) Option {
	return func(o *Orchestrator) {
		if a != nil {
			o.assembler = a
		}
	}
}

// WithTopK sets how many passages are retrieved per turn. Zero defers to the retriever.
func WithTopK(k int) Option {
	return func(o *Orchestrator) {
		if k >= 0 {
			o.topK = k
		}
	}
}

// WithLogger sets a custom logger for the orchestrator.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger.With("component", "pipeline")
		}
	}
}

// NewOrchestrator builds an orchestrator over a retriever and a generator.
func NewOrchestrator(retriever Retriever, generator ai.Generator, opts ...Option) (*Orchestrator, error) {
	if retriever == nil {
		return nil, ErrRetrieverRequired
	}
	if generator == nil {
		return nil, ErrGeneratorRequired
	}
	o := &Orchestrator{
		retriever:  retriever,
		generator:  generator,
		classifier: classify.New(),
		assembler:  prompt.NewAssembler(nil),
		memory:     memory.NewStore(),
		logger:     slog.Default().With("component", "pipeline"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// turn carries the state of one request through the pipeline.
type turn struct {
	id             string
	conversationID string
	message        string
	cacheKey       string
	started        time.Time
	kind           core.QuestionType
	history        []core.ConversationTurn
	sources        []core.SourceSummary
	prompt         string
	apology        bool
	anonymous      bool
}

func (o *Orchestrator) begin(req core.ChatRequest) (*turn, error) {
	if err := core.ValidateChatRequest(&req); err != nil {
		return nil, err
	}
	t := &turn{
		id:             uuid.NewString(),
		conversationID: req.ConversationID,
		message:        strings.TrimSpace(req.Message),
		started:        o.now(),
	}
	// A turn without a conversation id shares the anonymous cache context and
	// keeps no memory; the fresh id only labels the response.
	t.cacheKey = cache.ChatKey(t.message, t.conversationID)
	if t.conversationID == "" {
		t.anonymous = true
		t.conversationID = uuid.NewString()
	}
	return t, nil
}

// prepare classifies the turn and assembles its prompt. An unreachable
// inventory marks the turn as an apology instead of failing it.
func (o *Orchestrator) prepare(ctx context.Context, t *turn) error {
	t.kind = o.classifier.Classify(t.message)
	if !t.anonymous {
		t.history = o.memory.History(t.conversationID)
	}
	o.logger.Debug("classified question", "kind", t.kind.Kind, "confidence", t.kind.Confidence)

	var contextText string
	switch {
	case t.kind.Kind == core.KindArticlesList:
		docs, err := o.listArticles(ctx)
		if err != nil {
			o.logger.Warn("inventory unavailable, apologising", "conversation", t.conversationID, "err", err)
			t.apology = true
			return nil
		}
		contextText = prompt.FormatInventory(docs)
	case prompt.IsIntroduction(t.message):
		// the assembler substitutes a capability summary
	default:
		chunks, err := o.retriever.Search(ctx, t.message, o.topK)
		if err != nil {
			return err
		}
		contextText = prompt.FormatContext(chunks)
		t.sources = make([]core.SourceSummary, 0, len(chunks))
		for _, c := range chunks {
			t.sources = append(t.sources, c.Summarize())
		}
	}
	t.prompt = o.assembler.Assemble(ctx, t.message, t.kind, contextText, t.history)
	return nil
}

func (o *Orchestrator) listArticles(ctx context.Context) ([]core.DocumentInfo, error) {
	if o.inventory == nil {
		return nil, retrieval.ErrNoInventory
	}
	return o.inventory.Documents(ctx)
}

// Chat answers one turn.
//
// A cache hit returns the stored response with Cached set and does not touch
// memory. On any failure the error is returned and neither memory nor the
// cache is written.
func (o *Orchestrator) Chat(ctx context.Context, req core.ChatRequest) (*core.ChatResponse, error) {
	t, err := o.begin(req)
	if err != nil {
		return nil, err
	}

	if o.cache != nil {
		if hit, ok := cache.GetValue[core.ChatResponse](ctx, o.cache, core.ChatResponseMUS, t.cacheKey); ok {
			o.logger.Debug("cache hit", "key", t.cacheKey)
			hit.Cached = true
			hit.ConversationID = t.conversationID
			return &hit, nil
		}
	}

	if err := o.prepare(ctx, t); err != nil {
		return nil, err
	}
	if t.apology {
		return o.response(t, Apology, o.generator.Model(), 0), nil
	}

	gen, err := o.generator.Generate(ctx, prompt.Messages(t.prompt))
	if err != nil {
		o.logger.Warn("generation failed", "conversation", t.conversationID, "err", err)
		return nil, err
	}
	model := gen.Model
	if model == "" {
		model = o.generator.Model()
	}

	resp := o.response(t, gen.Text, model, gen.TokensUsed)
	o.commit(ctx, t, resp)
	o.logger.Info("turn answered",
		"conversation", t.conversationID,
		"kind", t.kind.Kind,
		"sources", len(t.sources),
		"ms", resp.ProcessingTimeMs)
	return resp, nil
}

// ChatStream answers one turn as a stream of events delivered to sink: a
// sources event, content events, then one done or error event.
//
// Validation failures are returned before anything is sent. Later failures
// are also delivered to sink as an error event. Memory and the cache are
// updated only when the stream reaches done; a cancelled ctx ends the stream
// without a terminal event.
func (o *Orchestrator) ChatStream(ctx context.Context, req core.ChatRequest, sink stream.Sink) error {
	t, err := o.begin(req)
	if err != nil {
		return err
	}

	if err := o.prepare(ctx, t); err != nil {
		return o.fail(ctx, sink, err)
	}
	if err := sink.Send(stream.SourcesEvent(t.sources)); err != nil {
		return err
	}
	if t.apology {
		if err := sink.Send(stream.ContentEvent(Apology)); err != nil {
			return err
		}
		return sink.Send(stream.DoneEvent())
	}

	producerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	upstream, err := o.generator.GenerateStream(producerCtx, prompt.Messages(t.prompt))
	if err != nil {
		return o.fail(ctx, sink, err)
	}

	res := stream.Relay(ctx, upstream, sink)
	if !res.Completed {
		o.logger.Debug("stream ended early", "conversation", t.conversationID, "err", res.Err)
		return res.Err
	}

	resp := o.response(t, res.Text, o.generator.Model(), 0)
	o.commit(ctx, t, resp)
	o.logger.Info("stream answered", "conversation", t.conversationID, "kind", t.kind.Kind, "ms", resp.ProcessingTimeMs)
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, sink stream.Sink, err error) error {
	if ctx.Err() == nil {
		_ = sink.Send(stream.ErrorEvent(err))
	}
	return err
}

func (o *Orchestrator) response(t *turn, text, model string, tokens int) *core.ChatResponse {
	sources := t.sources
	if sources == nil {
		sources = []core.SourceSummary{}
	}
	return &core.ChatResponse{
		ID:               t.id,
		Message:          text,
		ConversationID:   t.conversationID,
		TokensUsed:       tokens,
		ProcessingTimeMs: o.now().Sub(t.started).Milliseconds(),
		Model:            model,
		CreatedAt:        o.now().UTC(),
		Sources:          sources,
	}
}

// commit records a successful turn in memory, then in the cache.
// Anonymous turns skip memory.
func (o *Orchestrator) commit(ctx context.Context, t *turn, resp *core.ChatResponse) {
	if !t.anonymous {
		o.memory.Append(t.conversationID,
			core.ConversationTurn{Role: core.RoleUser, Content: t.message},
			core.ConversationTurn{Role: core.RoleAssistant, Content: resp.Message},
		)
	}
	if o.cache != nil {
		cache.SetValue[core.ChatResponse](ctx, o.cache, core.ChatResponseMUS, t.cacheKey, *resp, 0)
	}
}

// History returns a copy of a conversation's turns.
func (o *Orchestrator) History(conversationID string) []core.ConversationTurn {
	return o.memory.History(conversationID)
}

// ClearHistory forgets a conversation.
func (o *Orchestrator) ClearHistory(conversationID string) {
	o.memory.Clear(conversationID)
	o.logger.Debug("history cleared", "conversation", conversationID)
}
