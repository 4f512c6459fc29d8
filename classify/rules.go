package classify

import (
	"regexp"

	"github.com/poiesic/lore/core"
)

// Rule is one pattern group. A query matches the group if any pattern matches.
type Rule struct {
	Kind     core.QuestionKind
	Patterns []*regexp.Regexp
}

// NewRule compiles case-insensitive patterns for kind. It panics on an
// invalid pattern, so it is meant for package-level tables.
func NewRule(kind core.QuestionKind, patterns ...string) Rule {
	r := Rule{Kind: kind}
	for _, p := range patterns {
		r.Patterns = append(r.Patterns, regexp.MustCompile(`(?i)`+p))
	}
	return r
}

// DefaultRules is the evaluation order used by New. Earlier groups win ties.
var DefaultRules = []Rule{
	NewRule(core.KindSummary,
		`\bsummar(y|ies|ize|ise|izing|ising)\b`,
		`\b(tl;?dr|overview|recap|gist)\b`,
		`\bmain (points?|ideas?|takeaways?)\b`,
		`\bwhat (is|was) (the|this) (article|post|story) about\b`,
		`\bin (a few|short|brief)\b`,
	),
	NewRule(core.KindKeywords,
		`\bkey ?words?\b`,
		`\bkey (terms|topics|phrases|concepts)\b`,
		`\b(main|key|central) (themes?|topics?)\b`,
		`\b(tags|hashtags)\b`,
	),
	NewRule(core.KindSentiment,
		`\bsentiments?\b`,
		`\b(tone|mood|attitude)\b`,
		`\b(positive|negative|neutral|optimistic|pessimistic)\b`,
		`\bhow (does|do) .{1,60} feel\b`,
		`\b(opinion|bias(ed)?)\b`,
	),
	NewRule(core.KindComparison,
		`\bcompar(e|ed|es|ing|ison|isons)\b`,
		`\b(differences?|differ|different from)\b`,
		`\b(vs\.?|versus)\b`,
		`\b(similarit(y|ies)|similar to|in common)\b`,
		`\b(contrast|better than|worse than)\b`,
	),
	NewRule(core.KindSearch,
		`\b(find|search( for)?|look up|lookup)\b`,
		`\b(articles?|posts?|stories|news) (about|on|regarding|covering)\b`,
		`\bis there (an?|any) (article|post|story)\b`,
		`\bwhere (can i|do you) (read|find)\b`,
	),
	NewRule(core.KindEntities,
		`\bnamed entit(y|ies)\b`,
		`\b(entities|people|persons|companies|organi[sz]ations|places|locations)\b`,
		`\bwho (is|was|are|were) (mentioned|involved|quoted)\b`,
		`\bwhich (people|companies|countries|organi[sz]ations)\b`,
		`\bmentioned\b`,
	),
	NewRule(core.KindArticlesList,
		`\b(list|show)( me)?( all)?( the| your)? (articles|documents|sources|posts)\b`,
		`\bwhat (articles|documents|sources|posts) (do you have|are (there|available)|have you (read|ingested))\b`,
		`\bhow many (articles|documents|sources|posts)\b`,
		`\b(available|ingested|indexed) (articles|documents|sources)\b`,
	),
}
