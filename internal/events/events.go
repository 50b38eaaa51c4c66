// Package events delivers domain events to interested sinks.
//
// Emitting an event never fails from the caller's point of view: a sink that
// cannot deliver logs the problem and moves on.
package events

import (
	"sync"
	"time"
)

// Event names emitted by a completed rename.
const (
	ActionComplete = "action_complete"
	ScriptRenamed  = "script_renamed"
)

// Payload is the key/value body of an event.
type Payload map[string]any

// Bus receives named events.
type Bus interface {
	Trigger(name string, payload Payload)
}

// Event is a delivered event with its receive time.
type Event struct {
	Time    time.Time `json:"ts"`
	Name    string    `json:"event"`
	Payload Payload   `json:"payload,omitempty"`
}

// Func adapts a function to a Bus.
type Func func(name string, payload Payload)

// Trigger calls f.
func (f Func) Trigger(name string, payload Payload) { f(name, payload) }

// Nop discards every event.
var Nop Bus = Func(func(string, Payload) {})

// Multi fans an event out to every bus in order. Nil entries are skipped.
type Multi []Bus

// Trigger delivers to each bus.
func (m Multi) Trigger(name string, payload Payload) {
	for _, b := range m {
		if b != nil {
			b.Trigger(name, payload)
		}
	}
}

// Recorder keeps every event it receives. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Trigger records the event.
func (r *Recorder) Trigger(name string, payload Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Event{Time: time.Now().UTC(), Name: name, Payload: clone(payload)})
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

func clone(p Payload) Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
