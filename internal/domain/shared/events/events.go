// Package events is the buffer aggregates use to hand what happened to the
// outbox of the unit that changed them.
package events

import "time"

// DomainEvent is a fact recorded by an aggregate while it handled a command.
type DomainEvent interface {
	EventName() string
	AggregateID() string
	OccurredAt() time.Time
}

// EventRecorder keeps events in record order until they are drained. The
// zero value is ready to use; it is not safe for concurrent use, which is
// fine for an aggregate owned by a single unit.
type EventRecorder struct {
	pending []DomainEvent
}

func (r *EventRecorder) Record(event DomainEvent) {
	if event == nil {
		return
	}
	r.pending = append(r.pending, event)
}

// PendingEvents returns a copy of the buffer.
func (r *EventRecorder) PendingEvents() []DomainEvent {
	out := make([]DomainEvent, len(r.pending))
	copy(out, r.pending)
	return out
}

func (r *EventRecorder) ClearEvents() {
	r.pending = nil
}

// DrainEvents hands over the buffer and leaves the recorder empty, so an
// event reaches the outbox at most once per save.
func (r *EventRecorder) DrainEvents() []DomainEvent {
	out := r.pending
	r.pending = nil
	return out
}

// Names lists event names in order, for logs.
func Names(evs []DomainEvent) []string {
	out := make([]string, 0, len(evs))
	for _, ev := range evs {
		out = append(out, ev.EventName())
	}
	return out
}
