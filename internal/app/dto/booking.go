package dto

import (
	"time"

	domainbooking "rentalhub/internal/domain/booking"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

type MoneyDTO struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func MapMoney(m money.Money) MoneyDTO {
	return MoneyDTO{Amount: m.Amount, Currency: m.Currency}
}

type BookingListingSnapshot struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Booking is the external view of a booking.
type Booking struct {
	ID            string                 `json:"id"`
	Listing       BookingListingSnapshot `json:"listing"`
	RenterID      string                 `json:"renter_id"`
	OwnerID       string                 `json:"owner_id"`
	StartDate     string                 `json:"start_date"`
	EndDate       string                 `json:"end_date"`
	Days          int                    `json:"days"`
	PriceUnit     string                 `json:"price_unit"`
	Total         MoneyDTO               `json:"total_price"`
	Status        string                 `json:"status"`
	PaymentStatus string                 `json:"payment_status"`
	Bucket        string                 `json:"bucket,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	UpdatedAt     time.Time              `json:"updated_at"`
}

func MapBooking(b *domainbooking.Booking, now time.Time) Booking {
	return Booking{
		ID:            string(b.ID),
		Listing:       BookingListingSnapshot{ID: string(b.ListingID), Title: b.ListingTitle},
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		StartDate:     b.Range.Start.Format(daterange.Layout),
		EndDate:       b.Range.End.Format(daterange.Layout),
		Days:          b.Range.Days(),
		PriceUnit:     string(b.PriceUnit),
		Total:         MapMoney(b.TotalPrice),
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Bucket:        string(domainbooking.Classify(b, now)),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

type BucketCounts struct {
	Active  int `json:"active"`
	Pending int `json:"pending"`
	Past    int `json:"past"`
}

type BookingCollection struct {
	Role   string       `json:"role"`
	Bucket string       `json:"bucket,omitempty"`
	Counts BucketCounts `json:"counts"`
	Items  []Booking    `json:"items"`
}
