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

// Package storage provides the storage abstraction layer for lore.
//
// It defines the Index interface, the similarity-search collaborator that
// ingestion writes to and retrieval reads from, along with the binary
// serialization used for stored records.
//
// # Implementations
//
//   - storage/badger: BadgerDB-backed index with brute-force cosine ranking,
//     and a BadgerDB cache store with native entry TTLs
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/index", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	index, err := badger.NewIndex(backend, provider.Embedder())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer index.Close()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
