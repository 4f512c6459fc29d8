package prompt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStats struct {
	stats core.CorpusStats
	err   error
	calls int
}

func (f *fakeStats) Stats(ctx context.Context) (core.CorpusStats, error) {
	f.calls++
	return f.stats, f.err
}

var corpus = core.CorpusStats{
	Documents:  3,
	Chunks:     12,
	Categories: map[string]int{"crypto": 2, "markets": 1},
	Sources:    map[string]int{"news.example": 3},
}

func TestAssemble_InjectsContextAndHistory(t *testing.T) {
	a := NewAssembler(nil)
	history := []core.ConversationTurn{
		{Role: core.RoleUser, Content: "What is Bitcoin?"},
		{Role: core.RoleAssistant, Content: "A cryptocurrency."},
	}

	p := a.Assemble(context.Background(), "Who created it?", core.QuestionType{Kind: core.KindGeneral}, "[1] Bitcoin\nSatoshi Nakamoto wrote the paper.", history)

	assert.Contains(t, p, "Satoshi Nakamoto wrote the paper.")
	assert.Contains(t, p, "## Question\nWho created it?")
	assert.Contains(t, p, "user: What is Bitcoin?\nassistant: A cryptocurrency.\n")
	assert.True(t, strings.Index(p, "## Question") < strings.Index(p, "## Conversation so far"), "history trails the prompt")
	for _, rule := range groundingRules {
		assert.Contains(t, p, rule)
	}
}

func TestAssemble_TemplatePerKind(t *testing.T) {
	a := NewAssembler(nil)
	kinds := []core.QuestionKind{
		core.KindSummary, core.KindKeywords, core.KindSentiment, core.KindComparison,
		core.KindSearch, core.KindEntities, core.KindArticlesList, core.KindGeneral,
	}

	seen := make(map[string]bool)
	for _, k := range kinds {
		t.Run(string(k), func(t *testing.T) {
			p := a.Assemble(context.Background(), "q", core.QuestionType{Kind: k, Confidence: 0.9}, "ctx", nil)
			heading := "## " + templates[k].heading
			assert.Contains(t, p, heading)
			assert.False(t, seen[heading])
			seen[heading] = true
			assert.Contains(t, p, "say so explicitly")
			assert.NotContains(t, p, "## Conversation so far")
		})
	}

	p := a.Assemble(context.Background(), "q", core.QuestionType{Kind: "unknown"}, "", nil)
	assert.Contains(t, p, "## Question\nAnswer the question below.")
	assert.Contains(t, p, "(no relevant context was found)")
}

func TestAssemble_Introduction(t *testing.T) {
	stats := &fakeStats{stats: corpus}
	a := NewAssembler(stats)

	p := a.Assemble(context.Background(), "Who are you?", core.QuestionType{Kind: core.KindEntities, Confidence: 0.8}, "SECRET CONTEXT", nil)

	assert.NotContains(t, p, "SECRET CONTEXT", "introductions suppress retrieved context")
	assert.Contains(t, p, "3 articles")
	assert.Contains(t, p, "crypto (2), markets (1)")
	assert.Contains(t, p, "news.example (3)")
	assert.Equal(t, 1, stats.calls)
}

func TestAssemble_IntroductionWithoutStats(t *testing.T) {
	a := NewAssembler(&fakeStats{err: errors.New("index offline")})
	p := a.Assemble(context.Background(), "what can you do", core.QuestionType{}, "", nil)
	assert.Contains(t, p, "No articles have been ingested yet.")
}

func TestIsIntroduction(t *testing.T) {
	for _, q := range []string{"Who are you?", "what can you do", "Hello!", "hey there", "Please introduce yourself"} {
		assert.True(t, IsIntroduction(q), q)
	}
	for _, q := range []string{"What is Bitcoin?", "Hello, what is the price of gold?", "Who is Satoshi?"} {
		assert.False(t, IsIntroduction(q), q)
	}
}

func TestCapabilitySummary_TruncatesLists(t *testing.T) {
	stats := &core.CorpusStats{Documents: 7, Chunks: 7, Categories: map[string]int{
		"a": 1, "b": 1, "c": 1, "d": 1, "e": 1, "f": 1, "g": 1,
	}}
	s := CapabilitySummary(stats)
	assert.Contains(t, s, "a (1), b (1), c (1), d (1), e (1), and 2 more")
	assert.NotContains(t, s, "Sources:")
}

func TestFormatContext(t *testing.T) {
	out := FormatContext([]core.RetrievedChunk{
		{Title: "Bitcoin", URL: "https://x.example/b", Content: " body one ", Relevance: 0.87},
		{Content: "body two", Relevance: 0.5},
	})
	assert.Contains(t, out, "[1] Bitcoin (https://x.example/b) relevance 0.87\nbody one\n")
	assert.Contains(t, out, "[2] Untitled relevance 0.50\nbody two\n")
	assert.Equal(t, "", FormatContext(nil))
}

func TestFormatInventory(t *testing.T) {
	out := FormatInventory([]core.DocumentInfo{
		{Title: "One", Category: "crypto", URL: "https://x.example/1"},
		{Title: "Two"},
	})
	assert.Contains(t, out, "Inventory of 2 articles:")
	assert.Contains(t, out, "1. One [crypto] https://x.example/1\n")
	assert.Contains(t, out, "2. Two\n")
}

func TestMessages(t *testing.T) {
	msgs := Messages("prompt body")
	require.Len(t, msgs, 2)
	assert.Equal(t, ai.RoleSystem, msgs[0].Role)
	assert.Equal(t, ai.Message{Role: ai.RoleUser, Content: "prompt body"}, msgs[1])
}
