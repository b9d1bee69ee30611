package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	appoutbox "rentalhub/internal/app/outbox"
)

type fakeStore struct {
	mu     sync.Mutex
	queue  []Event
	sent   []string
	failed map[string]string
}

func (s *fakeStore) Claim(_ context.Context, _ string, limit int) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.queue) {
		limit = len(s.queue)
	}
	batch := s.queue[:limit]
	s.queue = s.queue[limit:]
	return batch, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, id)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id string, _ time.Time, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failed == nil {
		s.failed = map[string]string{}
	}
	s.failed[id] = msg
	return nil
}

type published struct {
	topic   string
	key     string
	payload []byte
	headers map[string]string
}

type fakeProducer struct {
	out  []published
	fail map[string]bool
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.fail[key] {
		return errors.New("broker down")
	}
	p.out = append(p.out, published{topic: topic, key: key, payload: payload, headers: headers})
	return nil
}

func TestWorkerRelaysAsCloudEvents(t *testing.T) {
	store := &fakeStore{queue: []Event{{
		ID:         "evt-1",
		Name:       "booking.accepted",
		Payload:    []byte(`{"booking_id":"B1"}`),
		OccurredAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Aggregate:  "B1",
		Headers:    map[string]string{appoutbox.HeaderRecipient: "renter-1"},
	}}}
	producer := &fakeProducer{}
	w := &Worker{Store: store, Producer: producer, TopicPrefix: "dev.", ID: "w1"}

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Equal(t, []string{"evt-1"}, store.sent)

	require.Len(t, producer.out, 1)
	msg := producer.out[0]
	require.Equal(t, "dev.booking.events.v1", msg.topic)
	require.Equal(t, "B1", msg.key)
	require.Equal(t, "evt-1", msg.headers[HeaderEventID])
	require.Equal(t, "booking.accepted", msg.headers[HeaderEventType])
	require.Equal(t, "renter-1", msg.headers[appoutbox.HeaderRecipient])

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(msg.payload, &envelope))
	require.Equal(t, "evt-1", envelope["id"])
	require.Equal(t, "booking.accepted.v1", envelope["type"])
	require.Equal(t, "app://rentalhub", envelope["source"])
}

func TestWorkerMarksFailuresAndContinues(t *testing.T) {
	store := &fakeStore{queue: []Event{
		{ID: "bad", Name: "booking.requested", Payload: []byte(`{}`), Aggregate: "B1"},
		{ID: "garbled", Name: "booking.requested", Payload: []byte(`not json`), Aggregate: "B2"},
		{ID: "good", Name: "booking.requested", Payload: []byte(`{}`), Aggregate: "B3"},
	}}
	producer := &fakeProducer{fail: map[string]bool{"B1": true}}
	w := &Worker{Store: store, Producer: producer, ID: "w1", Backoff: []time.Duration{time.Second}}

	sent, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)
	require.Equal(t, []string{"good"}, store.sent)
	require.Contains(t, store.failed, "bad")
	require.Contains(t, store.failed, "garbled")
}

func TestWorkerRequiresDependencies(t *testing.T) {
	require.ErrorIs(t, (&Worker{}).Run(context.Background()), ErrWorkerNotConfigured)
}

func TestTopicFor(t *testing.T) {
	require.Equal(t, "booking.events.v1", TopicFor("", "booking.payment_status_changed"))
	require.Equal(t, "x.plain.events.v1", TopicFor("x.", "plain"))
}
