package kafka

import (
	"context"

	"github.com/IBM/sarama"

	"rentalhub/internal/app/notifications"
	"rentalhub/internal/infra/outbox"
)

// NotificationHandler feeds booking events from Kafka into the dispatcher.
type NotificationHandler struct {
	Dispatcher *notifications.Dispatcher
}

func (h NotificationHandler) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	headers := make(map[string]string, len(msg.Headers))
	for _, hdr := range msg.Headers {
		if hdr == nil {
			continue
		}
		headers[string(hdr.Key)] = string(hdr.Value)
	}
	m, ok := notifications.FromHeaders(headers[outbox.HeaderEventID], headers[outbox.HeaderEventType], headers)
	if !ok {
		return nil
	}
	return h.Dispatcher.Deliver(ctx, m)
}

var _ MessageHandler = NotificationHandler{}
