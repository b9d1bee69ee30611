package postgres

import (
	"time"

	domainbooking "rentalhub/internal/domain/booking"
	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID            string    `gorm:"primaryKey;size:64"`
	ListingID     string    `gorm:"size:64;not null;index:idx_bookings_listing_status"`
	ListingTitle  string    `gorm:"size:255"`
	RenterID      string    `gorm:"size:64;not null;index"`
	OwnerID       string    `gorm:"size:64;not null;index"`
	StartDate     time.Time `gorm:"type:date;not null"`
	EndDate       time.Time `gorm:"type:date;not null"`
	PriceUnit     string    `gorm:"size:10;not null"`
	TotalAmount   int64     `gorm:"not null"`
	Currency      string    `gorm:"size:3;not null"`
	Status        string    `gorm:"size:20;not null;index:idx_bookings_listing_status"`
	PaymentStatus string    `gorm:"size:20;not null"`
	Version       int64     `gorm:"not null;default:1"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (BookingModel) TableName() string { return "bookings" }

// ListingModel mirrors the catalog rows the engine reads.
type ListingModel struct {
	ID            string     `gorm:"primaryKey;size:64"`
	OwnerID       string     `gorm:"size:64;not null;index"`
	Title         string     `gorm:"size:255;not null"`
	PriceAmount   int64      `gorm:"not null"`
	Currency      string     `gorm:"size:3;not null"`
	PriceUnit     string     `gorm:"size:10;not null;default:'day'"`
	AvailableFrom *time.Time `gorm:"type:date"`
	AvailableTo   *time.Time `gorm:"type:date"`
	State         string     `gorm:"size:20;not null;default:'ACTIVE'"`
}

func (ListingModel) TableName() string { return "listings" }

// ListingLockModel is one row per listing taken FOR UPDATE by writers.
type ListingLockModel struct {
	ListingID string `gorm:"primaryKey;size:64"`
}

func (ListingLockModel) TableName() string { return "listing_locks" }

// OutboxModel holds events committed with their booking change.
type OutboxModel struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Name        string    `gorm:"size:100;not null"`
	Aggregate   string    `gorm:"size:64;not null"`
	Payload     []byte    `gorm:"type:jsonb;not null"`
	Headers     []byte    `gorm:"type:jsonb"`
	OccurredAt  time.Time `gorm:"not null"`
	State       string    `gorm:"size:10;not null;index:idx_outbox_due"`
	Attempts    int       `gorm:"not null;default:0"`
	NextAttempt time.Time `gorm:"not null;index:idx_outbox_due"`
	ClaimedBy   string    `gorm:"size:64"`
	ClaimedAt   *time.Time
	SentAt      *time.Time
	LastError   string `gorm:"size:1000"`
	CreatedAt   time.Time
}

func (OutboxModel) TableName() string { return "outbox_events" }

func toBookingModel(b *domainbooking.Booking) BookingModel {
	return BookingModel{
		ID:            string(b.ID),
		ListingID:     string(b.ListingID),
		ListingTitle:  b.ListingTitle,
		RenterID:      b.RenterID,
		OwnerID:       b.OwnerID,
		StartDate:     b.Range.Start,
		EndDate:       b.Range.End,
		PriceUnit:     string(b.PriceUnit),
		TotalAmount:   b.TotalPrice.Amount,
		Currency:      b.TotalPrice.Currency,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		Version:       b.Version,
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
	}
}

func toDomainBooking(m *BookingModel) *domainbooking.Booking {
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(m.ID),
		ListingID:     listings.ListingID(m.ListingID),
		ListingTitle:  m.ListingTitle,
		RenterID:      m.RenterID,
		OwnerID:       m.OwnerID,
		Range:         daterange.DateRange{Start: daterange.Day(m.StartDate), End: daterange.Day(m.EndDate)},
		PriceUnit:     listings.PriceUnit(m.PriceUnit),
		TotalPrice:    money.Money{Amount: m.TotalAmount, Currency: m.Currency},
		Status:        domainbooking.Status(m.Status),
		PaymentStatus: domainbooking.PaymentStatus(m.PaymentStatus),
		Version:       m.Version,
		CreatedAt:     m.CreatedAt.UTC(),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
}

func toListingModel(l *listings.Listing) ListingModel {
	return ListingModel{
		ID:            string(l.ID),
		OwnerID:       l.Owner,
		Title:         l.Title,
		PriceAmount:   l.Price.Amount,
		Currency:      l.Price.Currency,
		PriceUnit:     string(l.PriceUnit),
		AvailableFrom: l.AvailableFrom,
		AvailableTo:   l.AvailableTo,
		State:         string(l.State),
	}
}

func toDomainListing(m *ListingModel) *listings.Listing {
	unit, err := listings.ParsePriceUnit(m.PriceUnit)
	if err != nil {
		unit = listings.UnitDay
	}
	return &listings.Listing{
		ID:            listings.ListingID(m.ID),
		Owner:         m.OwnerID,
		Title:         m.Title,
		Price:         money.Money{Amount: m.PriceAmount, Currency: m.Currency},
		PriceUnit:     unit,
		AvailableFrom: dayPtr(m.AvailableFrom),
		AvailableTo:   dayPtr(m.AvailableTo),
		State:         listings.ListingState(m.State),
	}
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := daterange.Day(*t)
	return &d
}
