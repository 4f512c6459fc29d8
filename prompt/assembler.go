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

// Package prompt turns a classified question, retrieved context and
// conversation history into a model-ready prompt.
package prompt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/core"
)

// SystemPrompt is sent ahead of every assembled prompt.
const SystemPrompt = "You are a careful research assistant. You answer from supplied article excerpts, quote your evidence, and say plainly when the excerpts do not cover a question."

// StatsProvider supplies corpus metadata for introductions.
type StatsProvider interface {
	Stats(ctx context.Context) (core.CorpusStats, error)
}

// Assembler builds prompts. It is safe for concurrent use.
type Assembler struct {
	stats  StatsProvider
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the assembler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger.With("component", "prompt")
	}
}

// NewAssembler creates an assembler. stats may be nil, in which case
// introductions carry no corpus description.
func NewAssembler(stats StatsProvider, opts ...Option) *Assembler {
	a := &Assembler{
		stats:  stats,
		logger: slog.Default().With("component", "prompt"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble renders the prompt for query. Introduction questions replace
// contextText with a capability summary. History is appended verbatim.
func (a *Assembler) Assemble(ctx context.Context, query string, qt core.QuestionType, contextText string, history []core.ConversationTurn) string {
	var b strings.Builder

	if IsIntroduction(query) {
		b.WriteString("## About you\n")
		b.WriteString(CapabilitySummary(a.corpusStats(ctx)))
		b.WriteString("\nIntroduce yourself briefly and suggest two or three questions the user could ask.\n")
	} else {
		t := templateFor(qt.Kind)
		fmt.Fprintf(&b, "## %s\n%s\n\n", t.heading, t.task)

		b.WriteString("## Context\n")
		if strings.TrimSpace(contextText) == "" {
			b.WriteString("(no relevant context was found)\n")
		} else {
			b.WriteString(strings.TrimRight(contextText, "\n"))
			b.WriteString("\n")
		}

		b.WriteString("\n## Instructions\n")
		for _, line := range groundingRules {
			fmt.Fprintf(&b, "- %s\n", line)
		}
		for _, line := range t.format {
			fmt.Fprintf(&b, "- %s\n", line)
		}
	}

	fmt.Fprintf(&b, "\n## Question\n%s\n", strings.TrimSpace(query))

	if len(history) > 0 {
		b.WriteString("\n## Conversation so far\n")
		for _, turn := range history {
			fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Content)
		}
	}
	return b.String()
}

// Messages wraps an assembled prompt for a Generator.
func Messages(prompt string) []ai.Message {
	return []ai.Message{
		{Role: ai.RoleSystem, Content: SystemPrompt},
		{Role: ai.RoleUser, Content: prompt},
	}
}

func (a *Assembler) corpusStats(ctx context.Context) *core.CorpusStats {
	if a.stats == nil {
		return nil
	}
	stats, err := a.stats.Stats(ctx)
	if err != nil {
		a.logger.Warn("corpus stats unavailable for introduction", "err", err)
		return nil
	}
	return &stats
}

// FormatContext renders retrieved chunks as numbered context blocks.
func FormatContext(chunks []core.RetrievedChunk) string {
	var b strings.Builder
	for i, c := range chunks {
		title := c.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, title)
		if c.URL != "" {
			fmt.Fprintf(&b, " (%s)", c.URL)
		}
		fmt.Fprintf(&b, " relevance %.2f\n%s\n\n", c.Relevance, strings.TrimSpace(c.Content))
	}
	return b.String()
}

// FormatInventory renders a document listing as context for inventory questions.
func FormatInventory(docs []core.DocumentInfo) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inventory of %d articles:\n", len(docs))
	for i, d := range docs {
		fmt.Fprintf(&b, "%d. %s", i+1, d.Title)
		if d.Category != "" {
			fmt.Fprintf(&b, " [%s]", d.Category)
		}
		if d.URL != "" {
			fmt.Fprintf(&b, " %s", d.URL)
		}
		b.WriteString("\n")
	}
	return b.String()
}
