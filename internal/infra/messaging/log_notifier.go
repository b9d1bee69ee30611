package messaging

import (
	"context"
	"log/slog"

	"rentalhub/internal/app/policies"
)

// LogNotifier writes notifications to the log. Used when no messaging
// collaborator is configured.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(ctx context.Context, recipientID, bookingID, text string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification", "recipient", recipientID, "booking_id", bookingID, "text", text)
	return nil
}

var _ policies.Notifier = LogNotifier{}
