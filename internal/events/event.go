// Package events defines the notifications the evolution engine emits and
// the sinks that consume them.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind names a notification type.
type Kind string

const (
	ArtifactCreated    Kind = "artifact_created"
	EvolutionTriggered Kind = "evolution_triggered"
	Interaction        Kind = "interaction"
)

// Event is a single notification. Fields that do not apply to a kind are zero.
type Event struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"kind"`
	Tick             uint64    `json:"tick"`
	ArtifactID       uint64    `json:"artifact_id"`
	Generation       uint64    `json:"generation"`
	ParentA          uint64    `json:"parent_a,omitempty"`
	ParentB          uint64    `json:"parent_b,omitempty"`
	Genome           string    `json:"genome,omitempty"`
	InteractionCount uint64    `json:"interaction_count,omitempty"`
	Mutated          bool      `json:"mutated,omitempty"`
	At               time.Time `json:"at"`
}

// New returns an event of kind with a fresh id and timestamp.
func New(kind Kind, tick uint64) Event {
	return Event{
		ID:   uuid.New().String(),
		Kind: kind,
		Tick: tick,
		At:   time.Now().UTC(),
	}
}

// Sink consumes events. HandleEvent must not block for long; the engine
// calls it synchronously after each operation commits.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// HandleEvent implements Sink.
func (f SinkFunc) HandleEvent(ev Event) { f(ev) }

// Fanout delivers every event to each sink in order.
type Fanout []Sink

// HandleEvent implements Sink.
func (f Fanout) HandleEvent(ev Event) {
	for _, s := range f {
		if s != nil {
			s.HandleEvent(ev)
		}
	}
}

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// HandleEvent implements Sink.
func (r *Recorder) HandleEvent(ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Kinds returns the kinds of recorded events in order.
func (r *Recorder) Kinds() []Kind {
	evs := r.Events()
	out := make([]Kind, len(evs))
	for i, ev := range evs {
		out[i] = ev.Kind
	}
	return out
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	n := 0
	for _, ev := range r.Events() {
		if ev.Kind == kind {
			n++
		}
	}
	return n
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
