package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/ai/mock"
	"github.com/poiesic/lore/cache"
	"github.com/poiesic/lore/core"
	"github.com/poiesic/lore/memory"
	"github.com/poiesic/lore/stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	mu     sync.Mutex
	chunks []core.RetrievedChunk
	err    error
	calls  int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, k int) ([]core.RetrievedChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.chunks, f.err
}

func (f *fakeRetriever) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeInventory struct {
	docs  []core.DocumentInfo
	err   error
	calls int
}

func (f *fakeInventory) Documents(ctx context.Context) ([]core.DocumentInfo, error) {
	f.calls++
	return f.docs, f.err
}

type fixture struct {
	orch      *Orchestrator
	retriever *fakeRetriever
	generator *mock.MockGenerator
	memory    *memory.Store
	backend   *cache.MemoryBackend
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		retriever: &fakeRetriever{chunks: []core.RetrievedChunk{{
			Title:     "Bitcoin explained",
			URL:       "https://news.example/btc",
			Content:   "Bitcoin is a decentralised digital currency.",
			Relevance: 0.91,
		}}},
		generator: mock.NewMockGenerator("Bitcoin is a digital currency."),
		memory:    memory.NewStore(),
		backend:   cache.NewMemoryBackend(),
	}
	c, err := cache.New(f.backend, cache.ModeMemory)
	require.NoError(t, err)

	opts = append([]Option{WithCache(c), WithMemory(f.memory)}, opts...)
	f.orch, err = NewOrchestrator(f.retriever, f.generator, opts...)
	require.NoError(t, err)
	return f
}

func TestNewOrchestrator_RequiresCollaborators(t *testing.T) {
	_, err := NewOrchestrator(nil, mock.NewMockGenerator("x"))
	assert.ErrorIs(t, err, ErrRetrieverRequired)

	_, err = NewOrchestrator(&fakeRetriever{}, nil)
	assert.ErrorIs(t, err, ErrGeneratorRequired)
}

func TestChat_SecondIdenticalTurnIsCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"})
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "c1", first.ConversationID)
	assert.Equal(t, "mock-model", first.Model)
	require.Len(t, first.Sources, 1)
	assert.Equal(t, "Bitcoin explained", first.Sources[0].Title)

	second, err := f.orch.Chat(ctx, core.ChatRequest{Message: "  what is bitcoin ", ConversationID: "c1"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, first.ID, second.ID)

	assert.Equal(t, 1, f.generator.CallCount())
	assert.Equal(t, 1, f.retriever.callCount())
	assert.Len(t, f.orch.History("c1"), 2, "a cache hit does not touch memory")

	_, ok, err := f.backend.Get(ctx, cache.ChatKey("What is Bitcoin?", "c1"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestChat_ConversationScopesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"})
	require.NoError(t, err)
	other, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c2"})
	require.NoError(t, err)
	assert.False(t, other.Cached)
	assert.Equal(t, 2, f.generator.CallCount())
}

func TestChat_AssignsConversationID(t *testing.T) {
	f := newFixture(t)
	resp, err := f.orch.Chat(context.Background(), core.ChatRequest{Message: "What is Bitcoin?"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.ConversationID)
	assert.NotEmpty(t, resp.ID)
	assert.Empty(t, f.orch.History(resp.ConversationID))
	assert.Equal(t, 0, f.memory.Len())
}

func TestChat_AnonymousTurnsShareCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?"})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.orch.Chat(ctx, core.ChatRequest{Message: "what is bitcoin"})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.ConversationID, second.ConversationID)

	assert.Equal(t, 1, f.generator.CallCount())
	assert.Equal(t, 1, f.backend.Len())
	assert.Equal(t, 0, f.memory.Len())

	named, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"})
	require.NoError(t, err)
	assert.False(t, named.Cached)
	assert.Len(t, f.orch.History("c1"), 2)
}

func TestChatStream_AnonymousFillsSharedCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := &stream.Recorder{}
	require.NoError(t, f.orch.ChatStream(ctx, core.ChatRequest{Message: "What is Bitcoin?"}, rec))
	assert.Equal(t, 0, f.memory.Len())

	resp, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?"})
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, 1, f.generator.CallCount())
}

func TestChat_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Chat(context.Background(), core.ChatRequest{Message: "   "})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, 0, f.retriever.callCount())
}

func TestChat_FailureLeavesNoTrace(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
		want  error
	}{
		{
			name:  "retrieval",
			setup: func(f *fixture) { f.retriever.err = fmt.Errorf("%w: index down", core.ErrUpstream) },
			want:  core.ErrUpstream,
		},
		{
			name: "generation",
			setup: func(f *fixture) {
				f.generator.GenerateFunc = func(ctx context.Context, _ []ai.Message) (*ai.Generation, error) {
					return nil, core.ErrUpstreamTimeout
				}
			},
			want: core.ErrUpstreamTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)

			_, err := f.orch.Chat(context.Background(), core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"})
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.orch.History("c1"))
			assert.Equal(t, 0, f.backend.Len())
		})
	}
}

func TestChat_InventoryQuestion(t *testing.T) {
	inv := &fakeInventory{docs: []core.DocumentInfo{
		{Title: "Bitcoin explained", URL: "https://news.example/btc", Category: "crypto"},
		{Title: "Rates hold steady", URL: "https://news.example/rates"},
	}}
	f := newFixture(t, WithInventory(inv))

	resp, err := f.orch.Chat(context.Background(), core.ChatRequest{Message: "List all the articles", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, f.generator.Reply, resp.Message)
	assert.Equal(t, 0, f.retriever.callCount())
	assert.Empty(t, resp.Sources)

	msgs := f.generator.LastMessages()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1].Content, "Rates hold steady")
	assert.Contains(t, msgs[1].Content, "[crypto]")
}

func TestChat_InventoryUnavailableApologises(t *testing.T) {
	inv := &fakeInventory{err: errors.New("unreachable")}
	f := newFixture(t, WithInventory(inv))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		resp, err := f.orch.Chat(ctx, core.ChatRequest{Message: "List all the articles", ConversationID: "c1"})
		require.NoError(t, err)
		assert.Equal(t, Apology, resp.Message)
		assert.False(t, resp.Cached)
	}
	assert.Equal(t, 2, inv.calls)
	assert.Equal(t, 0, f.generator.CallCount())
	assert.Empty(t, f.orch.History("c1"))
	assert.Equal(t, 0, f.backend.Len())
}

func TestChat_IntroductionSkipsRetrieval(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.Chat(context.Background(), core.ChatRequest{Message: "Who are you?", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 0, f.retriever.callCount())
	assert.Contains(t, f.generator.LastMessages()[1].Content, "## About you")
}

func TestChat_HistoryReachesPrompt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"})
	require.NoError(t, err)
	_, err = f.orch.Chat(ctx, core.ChatRequest{Message: "And who created it?", ConversationID: "c1"})
	require.NoError(t, err)

	p := f.generator.LastMessages()[1].Content
	assert.Contains(t, p, "## Conversation so far")
	assert.Contains(t, p, "user: What is Bitcoin?")

	f.orch.ClearHistory("c1")
	assert.Empty(t, f.orch.History("c1"))
}

func TestChatStream_DoneUpdatesMemoryAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rec := &stream.Recorder{}

	err := f.orch.ChatStream(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"}, rec)
	require.NoError(t, err)

	events := rec.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, core.EventSources, events[0].Type)
	assert.Len(t, events[0].Sources, 1)
	assert.Equal(t, core.EventDone, events[len(events)-1].Type)
	assert.Equal(t, 1, rec.Terminals())
	assert.Equal(t, f.generator.Reply, rec.Content())

	history := f.orch.History("c1")
	require.Len(t, history, 2)
	assert.Equal(t, f.generator.Reply, history[1].Content)

	resp, err := f.orch.Chat(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"})
	require.NoError(t, err)
	assert.True(t, resp.Cached)
	assert.Equal(t, f.generator.Reply, resp.Message)
}

func TestChatStream_UpstreamErrorLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.generator.StreamErr = fmt.Errorf("%w: connection reset", core.ErrUpstream)
	rec := &stream.Recorder{}

	err := f.orch.ChatStream(context.Background(), core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"}, rec)
	assert.ErrorIs(t, err, core.ErrUpstream)

	events := rec.Events()
	last := events[len(events)-1]
	assert.Equal(t, core.EventError, last.Type)
	assert.Equal(t, core.CodeUpstream, last.Code)
	assert.Equal(t, 1, rec.Terminals())
	assert.Empty(t, f.orch.History("c1"))
	assert.Equal(t, 0, f.backend.Len())
}

func TestChatStream_RetrievalErrorIsDelivered(t *testing.T) {
	f := newFixture(t)
	f.retriever.err = core.ErrServiceNotInitialized
	rec := &stream.Recorder{}

	err := f.orch.ChatStream(context.Background(), core.ChatRequest{Message: "What is Bitcoin?"}, rec)
	assert.ErrorIs(t, err, core.ErrServiceNotInitialized)
	events := rec.Events()
	require.Len(t, events, 1)
	assert.Equal(t, core.CodeServiceUnavailable, events[0].Code)
}

func TestChatStream_CancelLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	f.generator.Reply = "one two three four five"
	f.generator.Gate = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec := &stream.Recorder{}

	done := make(chan error, 1)
	go func() {
		done <- f.orch.ChatStream(ctx, core.ChatRequest{Message: "What is Bitcoin?", ConversationID: "c1"}, rec)
	}()

	f.generator.Gate <- struct{}{}
	require.Eventually(t, func() bool { return len(rec.Events()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	assert.Equal(t, 0, rec.Terminals())
	assert.Len(t, rec.Events(), 2)
	assert.Empty(t, f.orch.History("c1"))
	assert.Equal(t, 0, f.backend.Len())
}

func TestChatStream_Apology(t *testing.T) {
	f := newFixture(t, WithInventory(&fakeInventory{err: errors.New("down")}))
	rec := &stream.Recorder{}

	err := f.orch.ChatStream(context.Background(), core.ChatRequest{Message: "How many articles do you have?", ConversationID: "c1"}, rec)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.Content(), "I'm sorry"))
	assert.Equal(t, 1, rec.Terminals())
	assert.Empty(t, f.orch.History("c1"))
}

func TestChatStream_Validation(t *testing.T) {
	f := newFixture(t)
	rec := &stream.Recorder{}
	err := f.orch.ChatStream(context.Background(), core.ChatRequest{Message: strings.Repeat("x", core.MaxMessageLength+1)}, rec)
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Empty(t, rec.Events())
}
