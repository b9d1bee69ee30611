package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"rentalhub/internal/domain/shared/events"
)

// Header keys carried with every notification-bearing event.
const (
	HeaderRecipient = "notify.recipient"
	HeaderBookingID = "notify.booking_id"
	HeaderText      = "notify.text"
)

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox stores event records alongside the state change that produced them.
// Add joins the unit of work found in ctx; Flush hands committed records on.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// Notification is implemented by events that should reach a user.
type Notification interface {
	NotificationRecipient() string
	NotificationText() string
}

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	headers := map[string]string{}
	if n, ok := ev.(Notification); ok && n.NotificationRecipient() != "" {
		headers[HeaderRecipient] = n.NotificationRecipient()
		headers[HeaderBookingID] = ev.AggregateID()
		headers[HeaderText] = n.NotificationText()
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt(),
		Aggregate:  ev.AggregateID(),
		Headers:    headers,
	}, nil
}

func RecordDomainEvents(ctx context.Context, box Outbox, encoder EventEncoder, evs []events.DomainEvent) error {
	if box == nil || len(evs) == 0 {
		return nil
	}
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if err := box.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Recorder is an aggregate that buffers domain events.
type Recorder interface {
	DrainEvents() []events.DomainEvent
}

// Drain moves the aggregate's pending events into the outbox.
func Drain(ctx context.Context, box Outbox, encoder EventEncoder, agg Recorder) error {
	return RecordDomainEvents(ctx, box, encoder, agg.DrainEvents())
}
