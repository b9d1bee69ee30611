package notifications

import (
	"context"
	"errors"
	"log/slog"

	"rentalhub/internal/app/outbox"
	"rentalhub/internal/app/policies"
)

var ErrNotifierMissing = errors.New("notifications: notifier not configured")

// Message is one user-facing notification extracted from an event.
type Message struct {
	EventID   string
	EventName string
	Recipient string
	BookingID string
	Text      string
}

// FromHeaders builds a Message from outbox/broker headers. ok is false when
// the event carries no notification.
func FromHeaders(eventID, eventName string, headers map[string]string) (Message, bool) {
	recipient := headers[outbox.HeaderRecipient]
	if recipient == "" {
		return Message{}, false
	}
	return Message{
		EventID:   eventID,
		EventName: eventName,
		Recipient: recipient,
		BookingID: headers[outbox.HeaderBookingID],
		Text:      headers[outbox.HeaderText],
	}, true
}

func FromRecord(rec outbox.EventRecord) (Message, bool) {
	return FromHeaders(rec.ID, rec.Name, rec.Headers)
}

// Inbox remembers delivered event ids so redelivered events notify once.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Dispatcher forwards messages to the messaging collaborator.
type Dispatcher struct {
	Notifier policies.Notifier
	Inbox    Inbox
	Logger   *slog.Logger
}

// Deliver sends msg once. The returned error lets broker consumers decide
// whether to redeliver; in-process callers only log it.
func (d *Dispatcher) Deliver(ctx context.Context, msg Message) error {
	if d.Notifier == nil {
		return ErrNotifierMissing
	}
	if d.Inbox != nil && msg.EventID != "" {
		seen, err := d.Inbox.Seen(ctx, msg.EventID)
		if err != nil {
			return err
		}
		if seen {
			d.debug("notification already delivered", msg)
			return nil
		}
	}
	if err := d.Notifier.Notify(ctx, msg.Recipient, msg.BookingID, msg.Text); err != nil {
		if d.Inbox != nil && msg.EventID != "" {
			if fErr := d.Inbox.Forget(ctx, msg.EventID); fErr != nil {
				err = errors.Join(err, fErr)
			}
		}
		if d.Logger != nil {
			d.Logger.Warn("notification delivery failed",
				"event", msg.EventName, "event_id", msg.EventID, "booking_id", msg.BookingID, "recipient", msg.Recipient, "error", err)
		}
		return err
	}
	d.debug("notification delivered", msg)
	return nil
}

// DeliverRecord is Deliver for a raw outbox record; records without a
// notification are skipped.
func (d *Dispatcher) DeliverRecord(ctx context.Context, rec outbox.EventRecord) error {
	msg, ok := FromRecord(rec)
	if !ok {
		return nil
	}
	return d.Deliver(ctx, msg)
}

func (d *Dispatcher) debug(text string, msg Message) {
	if d.Logger == nil {
		return
	}
	d.Logger.Debug(text, "event", msg.EventName, "event_id", msg.EventID, "booking_id", msg.BookingID, "recipient", msg.Recipient)
}
