package prompt

import "github.com/poiesic/lore/core"

// template is the structure of one question kind's prompt. Templates differ
// only in heading, task and answer format; context and history are injected
// identically by the assembler.
type template struct {
	heading string
	task    string
	format  []string
}

// groundingRules close every template.
var groundingRules = []string{
	"Answer using only the information in the context above.",
	"Support each claim with a direct quote from the context, in quotation marks.",
	"If the context does not contain the information, say so explicitly instead of guessing.",
}

var templates = map[core.QuestionKind]template{
	core.KindSummary: {
		heading: "Summary request",
		task:    "Summarize the relevant article content for the question below.",
		format: []string{
			"Start with a one-sentence overview.",
			"Follow with the three to five most important points as a bulleted list.",
		},
	},
	core.KindKeywords: {
		heading: "Keyword extraction",
		task:    "Identify the key terms and topics in the context that bear on the question below.",
		format: []string{
			"List five to ten keywords or short phrases, most important first.",
			"Give one quoted line of evidence for each.",
		},
	},
	core.KindSentiment: {
		heading: "Sentiment analysis",
		task:    "Assess the tone and sentiment of the context with respect to the question below.",
		format: []string{
			"State the overall sentiment as positive, negative, neutral or mixed.",
			"Explain the assessment with quoted phrases that carry the tone.",
		},
	},
	core.KindComparison: {
		heading: "Comparison",
		task:    "Compare the subjects named in the question below using the context.",
		format: []string{
			"Describe similarities first, then differences.",
			"Attribute every point to the article it comes from.",
		},
	},
	core.KindSearch: {
		heading: "Article search",
		task:    "Point the reader to the articles in the context that match the question below.",
		format: []string{
			"For each matching article give its title, its url and one sentence on why it matches.",
		},
	},
	core.KindEntities: {
		heading: "Entity extraction",
		task:    "Identify the people, organizations, places and products in the context relevant to the question below.",
		format: []string{
			"Group entities by type.",
			"Give a quoted mention for each entity.",
		},
	},
	core.KindArticlesList: {
		heading: "Article inventory",
		task:    "Describe the articles available, using the inventory in the context.",
		format: []string{
			"List the articles with title and category.",
			"Mention how many there are in total.",
		},
	},
	core.KindGeneral: {
		heading: "Question",
		task:    "Answer the question below.",
		format: []string{
			"Be concise and direct.",
		},
	},
}

func templateFor(kind core.QuestionKind) template {
	if t, ok := templates[kind]; ok {
		return t
	}
	return templates[core.KindGeneral]
}
