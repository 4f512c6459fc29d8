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

// Package ai provides abstractions for the AI services used by lore.
//
// Two services are modelled:
//
//   - Embedder: turns text into vectors for the similarity index
//   - Generator: composes answers, whole or as an ordered fragment stream
//
// AIProvider aggregates them for initialization and shutdown.
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: test doubles with call counters and injectable behaviour
//
// Public constructors in ai/openai return interface types. Mock constructors
// return concrete types so tests can inject behaviour and inspect calls.
//
// # Usage Example
//
//	provider, err := openai.NewProvider(ai.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	gen, err := provider.Generator().Generate(ctx, []ai.Message{
//	    {Role: ai.RoleUser, Content: "What is Bitcoin?"},
//	})
package ai
