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
	"context"
	"errors"
)

// Error taxonomy shared by every component.
var (
	// ErrValidation indicates malformed input rejected before pipeline entry.
	ErrValidation = errors.New("validation failed")

	// ErrServiceNotInitialized indicates a required collaborator is not ready.
	// Callers may retry.
	ErrServiceNotInitialized = errors.New("service not initialized")

	// ErrNotFound indicates a source document could not be found upstream.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamTimeout indicates a collaborator call exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream timeout")

	// ErrUpstream indicates a generic collaborator failure, including rate limiting.
	ErrUpstream = errors.New("upstream error")

	// ErrCache indicates a cache failure. It is logged, never returned to callers.
	ErrCache = errors.New("cache error")
)

// Stable error codes surfaced to clients.
const (
	CodeValidation         = "validation_error"
	CodeServiceUnavailable = "service_unavailable"
	CodeNotFound           = "not_found"
	CodeUpstreamTimeout    = "upstream_timeout"
	CodeUpstream           = "upstream_error"
	CodeInternal           = "internal_error"
)

// ErrorCode maps an error onto its stable client-facing code.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrServiceNotInitialized):
		return CodeServiceUnavailable
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrUpstreamTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeUpstreamTimeout
	case errors.Is(err, ErrUpstream):
		return CodeUpstream
	default:
		return CodeInternal
	}
}

// ErrorMessage returns a human-readable message for a stable code.
func ErrorMessage(code string) string {
	switch code {
	case CodeValidation:
		return "The request was invalid."
	case CodeServiceUnavailable:
		return "The service is starting up. Please retry shortly."
	case CodeNotFound:
		return "The requested resource could not be found."
	case CodeUpstreamTimeout:
		return "The AI service took too long to respond. Please try again."
	case CodeUpstream:
		return "The AI service is temporarily unavailable. Please try again."
	default:
		return "An unexpected error occurred."
	}
}
