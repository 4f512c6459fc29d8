package stream

import (
	"sync"

	"github.com/poiesic/lore/core"
)

// Recorder is a Sink that keeps every event it receives.
// FailAfter, if positive, makes Send fail once that many events were accepted.
type Recorder struct {
	FailAfter int
	Err       error

	mu     sync.Mutex
	events []core.StreamEvent
}

// Send records event.
func (r *Recorder) Send(event core.StreamEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailAfter > 0 && len(r.events) >= r.FailAfter {
		return r.Err
	}
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []core.StreamEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.StreamEvent(nil), r.events...)
}

// Content concatenates the content of every recorded content event.
func (r *Recorder) Content() string {
	var s string
	for _, e := range r.Events() {
		if e.Type == core.EventContent {
			s += e.Content
		}
	}
	return s
}

// Terminals counts the recorded done and error events.
func (r *Recorder) Terminals() int {
	n := 0
	for _, e := range r.Events() {
		if e.Terminal() {
			n++
		}
	}
	return n
}
