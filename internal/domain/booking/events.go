package booking

import (
	"fmt"
	"time"

	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

const noticeDateLayout = "Jan 02"

// Notice is the part every booking event shares: who should hear about it
// and what they should read.
type Notice struct {
	BookingID BookingID          `json:"booking_id"`
	ListingID listings.ListingID `json:"listing_id"`
	Recipient string             `json:"recipient"`
	Text      string             `json:"text"`
	At        time.Time          `json:"at"`
}

func (n Notice) AggregateID() string           { return string(n.BookingID) }
func (n Notice) OccurredAt() time.Time         { return n.At }
func (n Notice) NotificationRecipient() string { return n.Recipient }
func (n Notice) NotificationText() string      { return n.Text }

type BookingRequested struct {
	Notice
	RenterID string              `json:"renter_id"`
	Range    daterange.DateRange `json:"range"`
	Total    money.Money         `json:"total"`
}

func (e BookingRequested) EventName() string { return "booking.requested" }

type BookingAccepted struct {
	Notice
}

func (e BookingAccepted) EventName() string { return "booking.accepted" }

type BookingRejected struct {
	Notice
}

func (e BookingRejected) EventName() string { return "booking.rejected" }

type BookingCancelled struct {
	Notice
}

func (e BookingCancelled) EventName() string { return "booking.cancelled" }

type BookingReturned struct {
	Notice
}

func (e BookingReturned) EventName() string { return "booking.returned" }

type BookingCompleted struct {
	Notice
	By string `json:"by"`
}

func (e BookingCompleted) EventName() string { return "booking.completed" }

type PaymentStatusChanged struct {
	Notice
	Previous PaymentStatus `json:"previous"`
	Current  PaymentStatus `json:"current"`
}

func (e PaymentStatusChanged) EventName() string { return "booking.payment_status_changed" }

func requestedText(b *Booking) string {
	return fmt.Sprintf("New booking request for \"%s\" from %s to %s",
		b.ListingTitle, b.Range.Start.Format(noticeDateLayout), b.Range.End.Format(noticeDateLayout))
}

func acceptedText(b *Booking) string {
	return fmt.Sprintf("Your booking for \"%s\" has been accepted!", b.ListingTitle)
}

func rejectedText(b *Booking) string {
	return fmt.Sprintf("Your booking for \"%s\" has been declined.", b.ListingTitle)
}

func cancelledText(b *Booking) string {
	return fmt.Sprintf("Booking request for \"%s\" was cancelled by the renter.", b.ListingTitle)
}

func returnedText(b *Booking) string {
	return fmt.Sprintf("Your rental of \"%s\" has been marked as returned.", b.ListingTitle)
}

func completedText(b *Booking) string {
	return fmt.Sprintf("Your rental of \"%s\" is now complete.", b.ListingTitle)
}

func paymentText(b *Booking) string {
	return fmt.Sprintf("Payment for \"%s\" was marked as %s.", b.ListingTitle, b.PaymentStatus)
}
