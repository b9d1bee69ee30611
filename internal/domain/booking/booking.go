package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/pricing"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/events"
	"rentalhub/internal/domain/shared/money"
)

var (
	ErrBookingNotFound = errors.New("booking: not found")
	ErrSelfBooking     = errors.New("booking: owner cannot book own listing")
	ErrConflict        = errors.New("booking: dates already taken by an accepted booking")
	ErrRenterRequired  = errors.New("booking: renter id required")
	ErrReservedActor   = errors.New("booking: actor id is reserved")
)

type BookingID string

type Booking struct {
	ID            BookingID
	ListingID     listings.ListingID
	ListingTitle  string
	RenterID      string
	OwnerID       string
	Range         daterange.DateRange
	PriceUnit     listings.PriceUnit
	TotalPrice    money.Money
	Status        Status
	PaymentStatus PaymentStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	Save(ctx context.Context, booking *Booking) error
	// ListByListing returns bookings of a listing, restricted to the given
	// statuses when any are passed.
	ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...Status) ([]*Booking, error)
	ListByRenter(ctx context.Context, renterID string) ([]*Booking, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	Listing   *listings.Listing
	RenterID  string
	Range     daterange.DateRange
	CreatedAt time.Time
}

// NewBooking builds a pending booking and prices it once at the listing's
// current rate. Availability must already have been checked by the caller.
func NewBooking(params CreateParams) (*Booking, error) {
	renter := strings.TrimSpace(params.RenterID)
	if renter == "" {
		return nil, ErrRenterRequired
	}
	if IsReservedActor(renter) {
		return nil, ErrReservedActor
	}
	l := params.Listing
	if l == nil {
		return nil, listings.ErrListingNotFound
	}
	if renter == l.Owner {
		return nil, ErrSelfBooking
	}
	quote, err := pricing.ForListing(l, params.Range)
	if err != nil {
		return nil, err
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:            params.ID,
		ListingID:     l.ID,
		ListingTitle:  l.Title,
		RenterID:      renter,
		OwnerID:       l.Owner,
		Range:         params.Range,
		PriceUnit:     quote.Unit,
		TotalPrice:    quote.Total,
		Status:        StatusPending,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	b.Record(BookingRequested{
		Notice:   b.notice(b.OwnerID, requestedText(b), now),
		RenterID: b.RenterID,
		Range:    b.Range,
		Total:    b.TotalPrice,
	})
	return b, nil
}

// RoleOf resolves the capacity in which actorID acts on this booking. Only
// the two parties resolve; the system role is never derived from an id.
func (b *Booking) RoleOf(actorID string) (Role, bool) {
	switch actorID {
	case "":
		return "", false
	case b.OwnerID:
		return RoleOwner, true
	case b.RenterID:
		return RoleRenter, true
	}
	return "", false
}

// IsParty reports whether actorID is the renter or the owner.
func (b *Booking) IsParty(actorID string) bool {
	return actorID != "" && (actorID == b.OwnerID || actorID == b.RenterID)
}

// CheckTransition validates a status change requested by a party without
// applying it.
func (b *Booking) CheckTransition(actorID string, target Status, now time.Time) error {
	role, ok := b.RoleOf(actorID)
	if !ok {
		return ErrForbidden
	}
	return b.checkAs(role, target, now)
}

// CheckSystemTransition validates a status change the engine drives itself.
func (b *Booking) CheckSystemTransition(target Status, now time.Time) error {
	return b.checkAs(RoleSystem, target, now)
}

func (b *Booking) checkAs(role Role, target Status, now time.Time) error {
	if err := CheckTransition(b.Status, target, role); err != nil {
		return err
	}
	if target == StatusCompleted && !b.Range.EndsBefore(now) {
		return &TransitionError{From: string(b.Status), To: string(target), Role: role, Reason: "rental period has not ended"}
	}
	return nil
}

// Transition applies a party's status change and records the matching event.
func (b *Booking) Transition(actorID string, target Status, now time.Time) error {
	if err := b.CheckTransition(actorID, target, now); err != nil {
		return err
	}
	b.apply(actorID, target, now)
	return nil
}

// TransitionAsSystem applies a status change on behalf of the engine.
func (b *Booking) TransitionAsSystem(target Status, now time.Time) error {
	if err := b.CheckSystemTransition(target, now); err != nil {
		return err
	}
	b.apply(SystemActor, target, now)
	return nil
}

func (b *Booking) apply(by string, target Status, now time.Time) {
	at := now.UTC()
	b.Status = target
	b.UpdatedAt = at
	switch target {
	case StatusAccepted:
		b.Record(BookingAccepted{Notice: b.notice(b.RenterID, acceptedText(b), at)})
	case StatusRejected:
		b.Record(BookingRejected{Notice: b.notice(b.RenterID, rejectedText(b), at)})
	case StatusCancelled:
		b.Record(BookingCancelled{Notice: b.notice(b.OwnerID, cancelledText(b), at)})
	case StatusReturned:
		b.Record(BookingReturned{Notice: b.notice(b.RenterID, returnedText(b), at)})
	case StatusCompleted:
		b.Record(BookingCompleted{Notice: b.notice(b.RenterID, completedText(b), at), By: by})
	}
}

// SetPaymentStatus changes the payment flag. Only the owner may do it and only
// after the booking was accepted. Setting the current value is a no-op and
// reports changed=false.
func (b *Booking) SetPaymentStatus(actorID string, target PaymentStatus, now time.Time) (bool, error) {
	role, ok := b.RoleOf(actorID)
	if !ok || role != RoleOwner {
		return false, ErrForbidden
	}
	if !target.IsValid() {
		return false, &TransitionError{From: "payment " + string(b.PaymentStatus), To: string(target), Role: role}
	}
	if b.PaymentStatus == target {
		return false, nil
	}
	if !b.Status.paymentOpen() {
		return false, &TransitionError{From: string(b.Status), To: "payment " + string(target), Role: role, Reason: "booking was never accepted"}
	}
	if err := checkPaymentTransition(b.PaymentStatus, target, role); err != nil {
		return false, err
	}
	at := now.UTC()
	previous := b.PaymentStatus
	b.PaymentStatus = target
	b.UpdatedAt = at
	b.Record(PaymentStatusChanged{
		Notice:   b.notice(b.RenterID, paymentText(b), at),
		Previous: previous,
		Current:  target,
	})
	return true, nil
}

func (s Status) paymentOpen() bool {
	switch s {
	case StatusAccepted, StatusReturned, StatusCompleted:
		return true
	}
	return false
}

// Clone returns a detached copy without pending events.
func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	cp.EventRecorder = events.EventRecorder{}
	return &cp
}

func (b *Booking) notice(recipient, text string, at time.Time) Notice {
	return Notice{
		BookingID: b.ID,
		ListingID: b.ListingID,
		Recipient: recipient,
		Text:      text,
		At:        at,
	}
}
