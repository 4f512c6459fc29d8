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

// Package classify tags free-text questions with a question kind.
package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/poiesic/lore/core"
)

// Confidence components.
const (
	baseConfidence    = 0.7
	maxCoverageBonus  = 0.2
	longQueryBonus    = 0.1
	longQueryMinWords = 6
)

// Classifier maps a query to the best matching rule group.
// It is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// New creates a classifier over rules, evaluated in order.
// With no rules it uses DefaultRules.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify never fails. Each matching pattern scores
//
//	min(1, 0.7 + min(matchLen/queryLen, 0.2) + 0.1 if the query has more than 5 words)
//
// and the highest score wins, ties going to the earlier group.
// No match yields {general, 0}.
func (c *Classifier) Classify(query string) core.QuestionType {
	query = strings.TrimSpace(query)
	best := core.QuestionType{Kind: core.KindGeneral, Confidence: 0}

	queryLen := utf8.RuneCountInString(query)
	if queryLen == 0 {
		return best
	}
	lengthBonus := 0.0
	if len(strings.Fields(query)) >= longQueryMinWords {
		lengthBonus = longQueryBonus
	}

	for _, rule := range c.rules {
		for _, p := range rule.Patterns {
			loc := p.FindStringIndex(query)
			if loc == nil {
				continue
			}
			matchLen := utf8.RuneCountInString(query[loc[0]:loc[1]])
			coverage := min(float64(matchLen)/float64(queryLen), maxCoverageBonus)
			confidence := min(1.0, baseConfidence+coverage+lengthBonus)
			if confidence > best.Confidence {
				best = core.QuestionType{Kind: rule.Kind, Confidence: confidence}
			}
		}
	}
	return best
}
