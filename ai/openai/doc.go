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

// Package openai implements the ai interfaces against OpenAI-compatible
// endpoints (OpenAI, Ollama, LocalAI, vLLM) through langchaingo.
//
// The Generator answers whole or streams fragments on a bounded channel.
// The stream producer stops when its context is cancelled, and a failure
// arrives as the last fragment. Client errors wrap core.ErrUpstream, or
// core.ErrUpstreamTimeout when a deadline was hit.
//
//	provider, err := openai.NewProvider(ai.NewConfig(ai.WithHost("http://localhost:11434")))
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	frags, err := provider.Generator().GenerateStream(ctx, messages)
//	for f := range frags {
//	    if f.Err != nil {
//	        return f.Err
//	    }
//	    fmt.Print(f.Content)
//	}
package openai
