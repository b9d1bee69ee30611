package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rentalhub/internal/app/commands"
	"rentalhub/internal/app/dto"
	handlersupport "rentalhub/internal/app/handlers/support"
	"rentalhub/internal/app/middleware"
	"rentalhub/internal/app/outbox"
	"rentalhub/internal/app/uow"
	domainavailability "rentalhub/internal/domain/availability"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
	domainrange "rentalhub/internal/domain/shared/daterange"
)

const createBookingKey = "booking.create"

var ErrListingRequired = errors.New("booking: listing id required")

type CreateBookingCommand struct {
	BookingID       string
	ListingID       string
	RenterID        string
	StartDate       time.Time
	EndDate         time.Time
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

// IdempotencyKey is scoped to the renter so keys from different callers never collide.
func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.RenterID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) ActorID() string { return c.RenterID }

func (c CreateBookingCommand) Validate() error {
	if strings.TrimSpace(c.ListingID) == "" {
		return ErrListingRequired
	}
	if domainbooking.IsReservedActor(c.RenterID) {
		return domainbooking.ErrReservedActor
	}
	return nil
}

type CreateBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	dr, err := domainrange.New(cmd.StartDate, cmd.EndDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainavailability.ErrInvalidRange, err)
	}

	unit, ctx, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer unit.Finish(ctx)

	listingID := domainlistings.ListingID(strings.TrimSpace(cmd.ListingID))
	listing, err := unit.Listings().ByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cmd.RenterID) == listing.Owner {
		return nil, domainbooking.ErrSelfBooking
	}

	if err := unit.LockListing(ctx, listing.ID); err != nil {
		return nil, err
	}
	accepted, err := unit.Bookings().ListByListing(ctx, listing.ID, domainbooking.StatusAccepted)
	if err != nil {
		return nil, err
	}
	now := handlersupport.Clock(h.Now)
	if err := domainavailability.CheckRange(listing, dr, accepted, now); err != nil {
		return nil, err
	}

	id := cmd.BookingID
	if id == "" {
		id = uuid.NewString()
	}
	booking, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(id),
		Listing:   listing,
		RenterID:  cmd.RenterID,
		Range:     dr,
		CreatedAt: now,
	})
	if err != nil {
		return nil, err
	}

	if err := unit.Bookings().Save(ctx, booking); err != nil {
		return nil, err
	}
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, booking); err != nil {
		return nil, err
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking requested", "booking_id", booking.ID, "listing_id", booking.ListingID, "renter_id", booking.RenterID, "range", booking.Range.String(), "total", booking.TotalPrice.String())
	}
	result := dto.MapBooking(booking, now)
	return &result, nil
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
