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

package stream

import (
	"context"
	"strings"

	"github.com/poiesic/lore/ai"
	"github.com/poiesic/lore/core"
)

// Sink receives stream events. A Send error stops the relay as if the
// client had gone away.
type Sink interface {
	Send(event core.StreamEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(event core.StreamEvent) error

// Send calls f(event).
func (f SinkFunc) Send(event core.StreamEvent) error {
	return f(event)
}

// Result is the outcome of a relay.
type Result struct {
	// Text is the concatenation of every content fragment delivered.
	Text string

	// Completed is true only when the upstream was exhausted and the done
	// event was accepted by the sink.
	Completed bool

	// Err is the upstream, sink or context error that ended the relay.
	Err error
}

// Relay forwards fragments from upstream to sink until the upstream closes,
// delivers an error, or ctx is cancelled.
//
// Once ctx is done nothing more is sent, including a terminal event.
func Relay(ctx context.Context, upstream <-chan ai.Fragment, sink Sink) Result {
	var text strings.Builder
	for {
		select {
		case <-ctx.Done():
			return Result{Text: text.String(), Err: ctx.Err()}
		case frag, ok := <-upstream:
			if err := ctx.Err(); err != nil {
				return Result{Text: text.String(), Err: err}
			}
			if !ok {
				if err := sink.Send(DoneEvent()); err != nil {
					return Result{Text: text.String(), Err: err}
				}
				return Result{Text: text.String(), Completed: true}
			}
			if frag.Err != nil {
				// Best effort; the stream is over either way.
				_ = sink.Send(ErrorEvent(frag.Err))
				return Result{Text: text.String(), Err: frag.Err}
			}
			if frag.Content == "" {
				continue
			}
			if err := sink.Send(ContentEvent(frag.Content)); err != nil {
				return Result{Text: text.String(), Err: err}
			}
			text.WriteString(frag.Content)
		}
	}
}

// ContentEvent builds a content event.
func ContentEvent(content string) core.StreamEvent {
	return core.StreamEvent{Type: core.EventContent, Content: content}
}

// SourcesEvent builds the sources event sent before any content.
func SourcesEvent(sources []core.SourceSummary) core.StreamEvent {
	if sources == nil {
		sources = []core.SourceSummary{}
	}
	return core.StreamEvent{Type: core.EventSources, Sources: sources}
}

// DoneEvent builds the terminal done event.
func DoneEvent() core.StreamEvent {
	return core.StreamEvent{Type: core.EventDone}
}

// ErrorEvent builds the terminal error event for err, carrying its stable code.
func ErrorEvent(err error) core.StreamEvent {
	code := core.ErrorCode(err)
	return core.StreamEvent{Type: core.EventError, Code: code, Message: core.ErrorMessage(code)}
}
