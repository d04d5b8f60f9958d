package events

import (
	"slices"
	"time"
)

// DomainEvent is a fact recorded by an aggregate and shipped through the outbox.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder is embedded into cars and bookings. It is not safe for
// concurrent use; aggregates are mutated inside a single command.
type EventRecorder struct {
	pending []DomainEvent
}

// Record queues event. Nil events are ignored.
func (r *EventRecorder) Record(event DomainEvent) {
	if event != nil {
		r.pending = append(r.pending, event)
	}
}

func (r *EventRecorder) PendingEvents() []DomainEvent {
	return slices.Clone(r.pending)
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// Drain returns the queued events in recording order and empties the queue.
func (r *EventRecorder) Drain() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}
