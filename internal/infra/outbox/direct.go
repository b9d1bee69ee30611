package outbox

import (
	"context"

	"rentalhub/internal/app/notifications"
)

// DirectProducer hands relayed events straight to the notification
// dispatcher when no broker is configured.
type DirectProducer struct {
	Dispatcher *notifications.Dispatcher
}

func (p DirectProducer) Publish(ctx context.Context, topic, key string, payload []byte, headers map[string]string) error {
	msg, ok := notifications.FromHeaders(headers[HeaderEventID], headers[HeaderEventType], headers)
	if !ok {
		return nil
	}
	return p.Dispatcher.Deliver(ctx, msg)
}

var _ Producer = DirectProducer{}
