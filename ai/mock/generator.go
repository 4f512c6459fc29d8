package mock

import (
	"context"
	"strings"
	"sync"

	"github.com/poiesic/lore/ai"
)

// MockGenerator is a test double for ai.Generator.
//
// By default Generate answers with Reply and GenerateStream emits Chunks
// followed by StreamErr, if set.
type MockGenerator struct {
	// GenerateFunc overrides Generate if set.
	GenerateFunc func(ctx context.Context, messages []ai.Message) (*ai.Generation, error)

	// Reply is the default whole answer.
	Reply string

	// Chunks are the default stream fragments. Empty means Reply split on spaces.
	Chunks []string

	// StreamErr, if set, is delivered after Chunks as the terminal fragment.
	StreamErr error

	// StartErr, if set, is returned by GenerateStream before any fragment.
	StartErr error

	// Gate, if set, is received from before each fragment is sent.
	Gate chan struct{}

	ModelName string

	mu           sync.Mutex
	callCount    int
	lastMessages []ai.Message
}

// NewMockGenerator creates a mock generator answering with reply.
func NewMockGenerator(reply string) *MockGenerator {
	return &MockGenerator{Reply: reply, ModelName: "mock-model"}
}

func (m *MockGenerator) record(messages []ai.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastMessages = append([]ai.Message(nil), messages...)
}

// Generate returns Reply, or the result of GenerateFunc.
func (m *MockGenerator) Generate(ctx context.Context, messages []ai.Message) (*ai.Generation, error) {
	m.record(messages)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, messages)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &ai.Generation{
		Text:       m.Reply,
		Model:      m.ModelName,
		TokensUsed: len(strings.Fields(m.Reply)),
	}, nil
}

// GenerateStream emits the configured fragments on a buffered channel.
func (m *MockGenerator) GenerateStream(ctx context.Context, messages []ai.Message) (<-chan ai.Fragment, error) {
	m.record(messages)
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	chunks := m.Chunks
	if len(chunks) == 0 {
		for i, w := range strings.Fields(m.Reply) {
			if i > 0 {
				w = " " + w
			}
			chunks = append(chunks, w)
		}
	}

	out := make(chan ai.Fragment, ai.StreamBuffer)
	go func() {
		defer close(out)
		for _, c := range chunks {
			if m.Gate != nil {
				select {
				case <-m.Gate:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- ai.Fragment{Content: c}:
			case <-ctx.Done():
				return
			}
		}
		if m.StreamErr != nil {
			select {
			case out <- ai.Fragment{Err: m.StreamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return out, nil
}

// Model returns ModelName.
func (m *MockGenerator) Model() string {
	return m.ModelName
}

// CallCount returns the number of Generate and GenerateStream calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// LastMessages returns a copy of the messages of the most recent call.
func (m *MockGenerator) LastMessages() []ai.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.Message(nil), m.lastMessages...)
}

// Reset clears the call count and recorded messages.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.lastMessages = nil
}
