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
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Message length limits, in runes after trimming.
const (
	MinMessageLength = 1
	MaxMessageLength = 4000
)

// MaxBatchSize is the largest number of URLs accepted in one batch.
const MaxBatchSize = 100

// ValidateChatRequest validates a chat turn.
//
// Validation rules:
//   - Message must not be blank
//   - Message must not exceed MaxMessageLength runes
//
// NOT validated:
//   - ConversationID (an empty ID starts a new conversation)
func ValidateChatRequest(req *ChatRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", ErrValidation)
	}
	n := utf8.RuneCountInString(strings.TrimSpace(req.Message))
	if n < MinMessageLength {
		return fmt.Errorf("%w: message cannot be empty", ErrValidation)
	}
	if n > MaxMessageLength {
		return fmt.Errorf("%w: message exceeds %d characters", ErrValidation, MaxMessageLength)
	}
	return nil
}

// ValidateURL checks that raw is an absolute http(s) URL with a host.
func ValidateURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: invalid url %q: %w", ErrValidation, raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url %q must use http or https", ErrValidation, raw)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url %q has no host", ErrValidation, raw)
	}
	return nil
}

// ValidateBatch validates a list of URLs submitted for batch ingestion.
func ValidateBatch(urls []string) error {
	if len(urls) == 0 {
		return fmt.Errorf("%w: batch cannot be empty", ErrValidation)
	}
	if len(urls) > MaxBatchSize {
		return fmt.Errorf("%w: batch of %d exceeds limit of %d", ErrValidation, len(urls), MaxBatchSize)
	}
	for _, u := range urls {
		if err := ValidateURL(u); err != nil {
			return err
		}
	}
	return nil
}
