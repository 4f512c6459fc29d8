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

package core

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for indexed entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// String renders the ID as 16 lowercase hex digits.
func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// QuestionKind tags the type of question a user asked.
type QuestionKind string

const (
	KindSummary      QuestionKind = "summary"
	KindKeywords     QuestionKind = "keywords"
	KindSentiment    QuestionKind = "sentiment"
	KindComparison   QuestionKind = "comparison"
	KindSearch       QuestionKind = "search"
	KindEntities     QuestionKind = "entities"
	KindGeneral      QuestionKind = "general"
	KindArticlesList QuestionKind = "articles_list"
)

// QuestionType is the classifier's verdict for a query.
// Confidence is in [0,1]; a general question with no matching rule has confidence 0.
type QuestionType struct {
	Kind       QuestionKind
	Confidence float64
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is a single message in a conversation history.
type ConversationTurn struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

// Document describes a source document handed to the index.
type Document struct {
	SourceID ID
	URL      string
	Title    string
	Category string
	Content  string
}

// ChunkRecord is the stored form of one indexed chunk.
type ChunkRecord struct {
	Id       ID
	SourceID ID
	Position int
	Content  string
	Vector   []float32 // embedding of Content, unit length
}

// RetrievedChunk is a passage returned by similarity search.
type RetrievedChunk struct {
	SourceID  ID
	Title     string
	URL       string
	Category  string
	Content   string
	Relevance float64 // 0..1, two decimal places
	Position  int     // chunk position within its document
}

// SourceSummary is the subset of a RetrievedChunk surfaced to clients.
type SourceSummary struct {
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	Category  string  `json:"category,omitempty"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance"`
}

// MaxExcerptLength bounds SourceSummary.Excerpt, in runes.
const MaxExcerptLength = 200

// Summarize converts a retrieved chunk into its client-facing summary,
// truncating content to MaxExcerptLength runes.
func (c RetrievedChunk) Summarize() SourceSummary {
	excerpt := []rune(c.Content)
	if len(excerpt) > MaxExcerptLength {
		excerpt = append(excerpt[:MaxExcerptLength], '…')
	}
	return SourceSummary{
		Title:     c.Title,
		URL:       c.URL,
		Category:  c.Category,
		Excerpt:   string(excerpt),
		Relevance: c.Relevance,
	}
}

// DocumentInfo is one row of the corpus inventory.
type DocumentInfo struct {
	SourceID   ID        `json:"-" yaml:"-"`
	Title      string    `json:"title" yaml:"title"`
	URL        string    `json:"url" yaml:"url"`
	Category   string    `json:"category,omitempty" yaml:"category,omitempty"`
	Chunks     int       `json:"chunks" yaml:"chunks"`
	IngestedAt time.Time `json:"ingestedAt" yaml:"ingestedAt"`
}

// CorpusStats summarizes what has been ingested.
type CorpusStats struct {
	Documents  int
	Chunks     int
	Categories map[string]int
	Sources    map[string]int // keyed by host
}

// EventType tags a StreamEvent.
type EventType int

const (
	EventContent EventType = iota + 1
	EventSources
	EventError
	EventDone
)

// StreamEvent is a single frame relayed to a streaming client.
// Exactly one EventDone or EventError terminates a stream.
type StreamEvent struct {
	Type    EventType
	Content string
	Sources []SourceSummary
	Code    string
	Message string
}

// Terminal reports whether the event ends its stream.
func (e StreamEvent) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// JobStatus is the lifecycle state of an ingestion job.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// IngestionJob tracks one URL of a batch.
type IngestionJob struct {
	URL    string
	Status JobStatus
	Error  string
}

// BatchStatus reports progress of the current or last batch.
type BatchStatus struct {
	Processed  int      `json:"processed"`
	Total      int      `json:"total"`
	InProgress bool     `json:"inProgress"`
	Errors     []string `json:"errors"`
}

// IngestResult describes a successfully ingested document.
type IngestResult struct {
	URL         string   `json:"url"`
	Title       string   `json:"title"`
	Chunks      int      `json:"chunks"`
	DocumentIDs []string `json:"documentIds"`
}

// ChatRequest is a single user turn.
type ChatRequest struct {
	Message        string
	ConversationID string
}

// ChatResponse is the answer to a non-streaming turn.
type ChatResponse struct {
	ID               string          `json:"id"`
	Message          string          `json:"message"`
	ConversationID   string          `json:"conversationId"`
	TokensUsed       int             `json:"tokensUsed"`
	ProcessingTimeMs int64           `json:"processingTimeMs"`
	Model            string          `json:"model"`
	CreatedAt        time.Time       `json:"createdAt"`
	Cached           bool            `json:"cached"`
	Sources          []SourceSummary `json:"sources"`
}
