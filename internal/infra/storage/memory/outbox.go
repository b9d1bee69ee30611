package memory

import (
	"context"
	"log/slog"
	"sync"

	"rentalhub/internal/app/outbox"
	"rentalhub/internal/app/uow"
)

// DeliverFunc receives committed outbox records.
type DeliverFunc func(ctx context.Context, rec outbox.EventRecord) error

// Outbox queues records until the owning unit commits; records of a rolled
// back unit never become visible. Flush hands queued records to deliver.
type Outbox struct {
	mu      sync.Mutex
	ready   []outbox.EventRecord
	deliver DeliverFunc
	logger  *slog.Logger
}

func NewOutbox(deliver DeliverFunc, logger *slog.Logger) *Outbox {
	return &Outbox{deliver: deliver, logger: logger}
}

func (o *Outbox) Add(ctx context.Context, rec outbox.EventRecord) error {
	if unit, ok := uow.FromContext(ctx); ok {
		if committer, ok := unit.(uow.AfterCommitter); ok {
			committer.AfterCommit(func(context.Context) { o.enqueue(rec) })
			return nil
		}
	}
	o.enqueue(rec)
	return nil
}

func (o *Outbox) enqueue(rec outbox.EventRecord) {
	o.mu.Lock()
	o.ready = append(o.ready, rec)
	o.mu.Unlock()
}

// Flush delivers everything committed so far. Delivery failures are logged
// and the record dropped; they never fail the caller.
func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.ready
	o.ready = nil
	o.mu.Unlock()

	if o.deliver == nil {
		return nil
	}
	for _, rec := range pending {
		if err := o.deliver(ctx, rec); err != nil && o.logger != nil {
			o.logger.Warn("outbox delivery failed", "event", rec.Name, "event_id", rec.ID, "aggregate", rec.Aggregate, "error", err)
		}
	}
	return nil
}

// Pending returns a snapshot of committed, undelivered records.
func (o *Outbox) Pending() []outbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]outbox.EventRecord, len(o.ready))
	copy(out, o.ready)
	return out
}

var _ outbox.Outbox = (*Outbox)(nil)
