package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Broker headers set on every relayed event.
const (
	HeaderEventID   = "ce_id"
	HeaderEventType = "ce_type"
	HeaderContent   = "content-type"
)

var ErrWorkerNotConfigured = errors.New("outbox: worker missing dependencies")

// Event is a claimed outbox record.
type Event struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
	Attempts   int
}

// Store is the durable side of the outbox the worker drains.
type Store interface {
	Claim(ctx context.Context, workerID string, limit int) ([]Event, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Worker relays committed outbox records to a Producer as CloudEvents.
type Worker struct {
	Store       Store
	Producer    Producer
	Interval    time.Duration
	BatchSize   int
	TopicPrefix string
	Source      string
	ID          string
	Backoff     []time.Duration
	Logger      *slog.Logger
	Now         func() time.Time
}

func (w *Worker) Run(ctx context.Context) error {
	if w.Store == nil || w.Producer == nil {
		return ErrWorkerNotConfigured
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	ticker := time.NewTicker(w.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil && ctx.Err() == nil {
				w.log().Warn("outbox relay pass failed", "worker", w.ID, "error", err)
			}
		}
	}
}

// ProcessOnce relays one batch and reports how many records were sent.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	batch, err := w.Store.Claim(ctx, w.ID, w.batchSize())
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, ev := range batch {
		payload, headers, err := w.formatPayload(ev)
		if err == nil {
			err = w.Producer.Publish(ctx, w.topicFor(ev.Name), ev.Aggregate, payload, headers)
		}
		if err != nil {
			w.log().Warn("outbox publish failed", "event", ev.Name, "event_id", ev.ID, "attempts", ev.Attempts+1, "error", err)
			if mErr := w.Store.MarkFailed(ctx, ev.ID, w.nextRetry(ev.Attempts), err.Error()); mErr != nil {
				return sent, mErr
			}
			continue
		}
		if err := w.Store.MarkSent(ctx, ev.ID); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (w *Worker) formatPayload(ev Event) ([]byte, map[string]string, error) {
	data := map[string]any{}
	if err := json.Unmarshal(ev.Payload, &data); err != nil {
		return nil, nil, err
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              ev.ID,
		"type":            ev.Name + ".v1",
		"source":          w.source(),
		"subject":         ev.Aggregate,
		"time":            ev.OccurredAt,
		"datacontenttype": "application/json",
		"data":            data,
	}
	if trace, ok := ev.Headers["traceparent"]; ok {
		evt["traceparent"] = trace
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		return nil, nil, err
	}
	headers := map[string]string{
		HeaderContent:   "application/cloudevents+json",
		HeaderEventID:   ev.ID,
		HeaderEventType: ev.Name,
	}
	for k, v := range ev.Headers {
		headers[k] = v
	}
	return payload, headers, nil
}

// topicFor maps "booking.accepted" to "<prefix>booking.events.v1".
func (w *Worker) topicFor(name string) string {
	return TopicFor(w.TopicPrefix, name)
}

func TopicFor(prefix, name string) string {
	base := name
	if idx := strings.IndexRune(name, '.'); idx > 0 {
		base = name[:idx]
	}
	return prefix + base + ".events.v1"
}

func (w *Worker) interval() time.Duration {
	if w.Interval <= 0 {
		return 500 * time.Millisecond
	}
	return w.Interval
}

func (w *Worker) batchSize() int {
	if w.BatchSize <= 0 {
		return 50
	}
	return w.BatchSize
}

func (w *Worker) nextRetry(attempts int) time.Time {
	now := time.Now()
	if w.Now != nil {
		now = w.Now()
	}
	if attempts < len(w.Backoff) {
		return now.Add(w.Backoff[attempts])
	}
	if len(w.Backoff) > 0 {
		return now.Add(w.Backoff[len(w.Backoff)-1])
	}
	return now.Add(5 * time.Second)
}

func (w *Worker) source() string {
	if w.Source != "" {
		return w.Source
	}
	return "app://rentalhub"
}

func (w *Worker) log() *slog.Logger {
	if w.Logger != nil {
		return w.Logger
	}
	return slog.Default()
}
