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

// Package memory holds per-conversation turn history.
package memory

import (
	"sync"
	"time"

	"github.com/poiesic/lore/core"
)

// History bounds. When an append would grow a history past MaxTurns, it is
// trimmed to the most recent TrimTo turns.
const (
	MaxTurns = 50
	TrimTo   = 40
)

// Store is a lock-guarded map of conversation id to turn history.
// It lives for the process lifetime; nothing is persisted.
type Store struct {
	mu        sync.RWMutex
	histories map[string][]core.ConversationTurn
	now       func() time.Time
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{
		histories: make(map[string][]core.ConversationTurn),
		now:       time.Now,
	}
}

// Append adds turns to a conversation in order. Zero timestamps are stamped
// with the current time.
func (s *Store) Append(conversationID string, turns ...core.ConversationTurn) {
	if len(turns) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	h := s.histories[conversationID]
	for _, t := range turns {
		if t.Timestamp.IsZero() {
			t.Timestamp = s.now().UTC()
		}
		if len(h)+1 > MaxTurns {
			h = append(h[:0:0], h[len(h)-TrimTo+1:]...)
		}
		h = append(h, t)
	}
	s.histories[conversationID] = h
}

// History returns a copy of a conversation's turns, oldest first.
func (s *Store) History(conversationID string) []core.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.histories[conversationID]
	if len(h) == 0 {
		return nil
	}
	return append([]core.ConversationTurn(nil), h...)
}

// Clear destroys a conversation's history.
func (s *Store) Clear(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, conversationID)
}

// Len returns the number of conversations with history.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.histories)
}
