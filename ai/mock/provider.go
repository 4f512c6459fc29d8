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

package mock

import (
	"sync/atomic"

	"github.com/poiesic/lore/ai"
)

var _ ai.AIProvider = (*MockProvider)(nil)

// MockProvider implements ai.AIProvider over a mock embedder and generator.
type MockProvider struct {
	embedder  *MockEmbedder
	generator *MockGenerator
	closes    atomic.Int32
}

// NewMockProvider answers every generation with "mock answer".
//
// Returns ai.AIProvider like the production constructors; type-assert to
// *MockProvider, or use NewMockProviderWithServices, to reach the doubles.
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithServices(NewMockEmbedder(), NewMockGenerator("mock answer"))
}

// NewMockProviderWithServices wraps caller-owned doubles.
func NewMockProviderWithServices(embedder *MockEmbedder, generator *MockGenerator) *MockProvider {
	return &MockProvider{embedder: embedder, generator: generator}
}

func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *MockProvider) Generator() ai.Generator {
	return p.generator
}

// GetMockEmbedder returns the concrete embedder for assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockGenerator returns the concrete generator for assertions.
func (p *MockProvider) GetMockGenerator() *MockGenerator {
	return p.generator
}

// Close counts calls and never fails.
func (p *MockProvider) Close() error {
	p.closes.Add(1)
	return nil
}

// CloseCount reports how many times Close was called.
func (p *MockProvider) CloseCount() int {
	return int(p.closes.Load())
}
