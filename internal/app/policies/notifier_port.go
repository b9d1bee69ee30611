package policies

import "context"

// Notifier delivers a human-readable message about a booking to one user.
type Notifier interface {
	Notify(ctx context.Context, recipientID, bookingID, text string) error
}
