package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentalhub/internal/app/dto"
	handlersupport "rentalhub/internal/app/handlers/support"
	"rentalhub/internal/app/queries"
	"rentalhub/internal/app/uow"
	domainavailability "rentalhub/internal/domain/availability"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/pricing"
	domainrange "rentalhub/internal/domain/shared/daterange"
)

const (
	getCalendarKey = "availability.calendar"
	quoteKey       = "availability.quote"
)

// GetCalendarQuery returns the listing's accepted and requested ranges for a
// date picker.
type GetCalendarQuery struct {
	ListingID string
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

type GetCalendarHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Calendar, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Calendar{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Calendar{}, err
	}
	bookings, err := unit.Bookings().ListByListing(execCtx, listing.ID, domainbooking.StatusAccepted, domainbooking.StatusPending)
	if err != nil {
		return dto.Calendar{}, err
	}

	out := dto.MapCalendar(domainavailability.NewCalendar(listing.ID, bookings))
	if listing.AvailableFrom != nil {
		out.AvailableFrom = listing.AvailableFrom.Format(domainrange.Layout)
	}
	if listing.AvailableTo != nil {
		out.AvailableTo = listing.AvailableTo.Format(domainrange.Layout)
	}
	return out, nil
}

// QuoteQuery previews price and availability for a prospective booking.
type QuoteQuery struct {
	ListingID string
	Start     time.Time
	End       time.Time
}

func (q QuoteQuery) Key() string { return quoteKey }

type QuoteHandler struct {
	UoWFactory uow.UoWFactory
	Now        func() time.Time
}

func (h *QuoteHandler) Handle(ctx context.Context, q QuoteQuery) (dto.Quote, error) {
	dr, err := domainrange.New(q.Start, q.End)
	if err != nil {
		return dto.Quote{}, fmt.Errorf("%w: %v", domainavailability.ErrInvalidRange, err)
	}
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return dto.Quote{}, err
	}
	if cleanup != nil {
		defer cleanup()
	}

	listing, err := unit.Listings().ByID(execCtx, domainlistings.ListingID(q.ListingID))
	if err != nil {
		return dto.Quote{}, err
	}
	quote, err := pricing.ForListing(listing, dr)
	if err != nil {
		return dto.Quote{}, err
	}
	accepted, err := unit.Bookings().ListByListing(execCtx, listing.ID, domainbooking.StatusAccepted)
	if err != nil {
		return dto.Quote{}, err
	}

	out := dto.MapQuote(string(listing.ID), dr, quote)
	switch err := domainavailability.CheckRange(listing, dr, accepted, handlersupport.Clock(h.Now)); {
	case err == nil:
		out.Available = true
	case errors.Is(err, domainavailability.ErrInvalidRange), errors.Is(err, domainavailability.ErrUnavailable):
		out.Reason = err.Error()
	default:
		return dto.Quote{}, err
	}
	return out, nil
}

var (
	_ queries.Handler[GetCalendarQuery, dto.Calendar] = (*GetCalendarHandler)(nil)
	_ queries.Handler[QuoteQuery, dto.Quote]          = (*QuoteHandler)(nil)
)
