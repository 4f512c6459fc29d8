package prompt

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/poiesic/lore/core"
)

var introPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwho are you\b`),
	regexp.MustCompile(`(?i)\bwhat are you\b`),
	regexp.MustCompile(`(?i)\bwhat can you do\b`),
	regexp.MustCompile(`(?i)\bhow can you help\b`),
	regexp.MustCompile(`(?i)\bintroduce yourself\b`),
	regexp.MustCompile(`(?i)\btell me about yourself\b`),
	regexp.MustCompile(`(?i)\bwhat do you know\b`),
	regexp.MustCompile(`(?i)^\s*(hi|hello|hey)( there)?\s*[!.?]*\s*$`),
}

// IsIntroduction reports whether query asks about the assistant itself.
func IsIntroduction(query string) bool {
	for _, p := range introPatterns {
		if p.MatchString(query) {
			return true
		}
	}
	return false
}

// maxListed bounds how many categories or sources a capability summary names.
const maxListed = 5

// CapabilitySummary describes what the assistant can answer, from corpus
// metadata. A nil stats omits the corpus description.
func CapabilitySummary(stats *core.CorpusStats) string {
	var b strings.Builder
	b.WriteString("You are a research assistant that answers questions about a collection of ingested articles.\n")
	b.WriteString("You can summarize articles, extract keywords and entities, analyze sentiment, compare coverage, and find articles on a topic.\n")

	if stats == nil || stats.Documents == 0 {
		b.WriteString("No articles have been ingested yet.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "The collection holds %d articles split into %d passages.\n", stats.Documents, stats.Chunks)
	if cats := topCounts(stats.Categories); cats != "" {
		fmt.Fprintf(&b, "Categories: %s.\n", cats)
	}
	if srcs := topCounts(stats.Sources); srcs != "" {
		fmt.Fprintf(&b, "Sources: %s.\n", srcs)
	}
	return b.String()
}

// topCounts renders the largest entries as "name (n)", ties broken by name.
func topCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	names := slices.Collect(maps.Keys(counts))
	slices.SortFunc(names, func(a, b string) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(a, b)
	})

	parts := make([]string, 0, maxListed)
	for i, n := range names {
		if i == maxListed {
			parts = append(parts, fmt.Sprintf("and %d more", len(names)-maxListed))
			break
		}
		parts = append(parts, fmt.Sprintf("%s (%d)", n, counts[n]))
	}
	return strings.Join(parts, ", ")
}
