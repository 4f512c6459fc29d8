// Package stream relays generator fragments to a client sink.
//
// Relay turns an ai.Fragment channel into an ordered sequence of
// core.StreamEvent values: content events in arrival order followed by exactly
// one terminal event, either done or error. A cancelled context ends the relay
// without a terminal event.
package stream
