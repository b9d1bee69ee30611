package booking

import (
	"context"
	"log/slog"
	"time"

	"rentalhub/internal/app/commands"
	"rentalhub/internal/app/dto"
	handlersupport "rentalhub/internal/app/handlers/support"
	"rentalhub/internal/app/queries"
	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
)

const getBookingKey = "booking.get"

type GetBookingQuery struct {
	BookingID string
	Actor     string
}

func (q GetBookingQuery) Key() string     { return getBookingKey }
func (q GetBookingQuery) ActorID() string { return q.Actor }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
	Completer  *Completer
	Now        func() time.Time
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (dto.Booking, error) {
	booking, err := h.load(ctx, domainbooking.BookingID(q.BookingID))
	if err != nil {
		return dto.Booking{}, err
	}
	if !booking.IsParty(q.Actor) {
		return dto.Booking{}, domainbooking.ErrForbidden
	}
	now := handlersupport.Clock(h.Now)
	if h.Completer != nil {
		booking = h.Completer.CompleteIfEnded(ctx, booking, now)
	}
	return dto.MapBooking(booking, now), nil
}

func (h *GetBookingHandler) load(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return unit.Bookings().ByID(execCtx, id)
}

// Completer moves accepted bookings whose end date passed to completed when
// they are read. Failures are logged and the read carries on with the
// stored state.
type Completer struct {
	Commands commands.Bus
	Logger   *slog.Logger
}

func (c *Completer) CompleteIfEnded(ctx context.Context, b *domainbooking.Booking, now time.Time) *domainbooking.Booking {
	if c == nil || c.Commands == nil || !domainbooking.NeedsCompletion(b, now) {
		return b
	}
	res, err := commands.Dispatch[TransitionBookingCommand, *dto.Booking](ctx, c.Commands, TransitionBookingCommand{
		BookingID: string(b.ID),
		Target:    domainbooking.StatusCompleted,
		System:    true,
	})
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("lazy completion failed", "booking_id", b.ID, "error", err)
		}
		return b
	}
	updated := b.Clone()
	updated.Status = domainbooking.Status(res.Status)
	updated.UpdatedAt = res.UpdatedAt
	return updated
}

var _ queries.Handler[GetBookingQuery, dto.Booking] = (*GetBookingHandler)(nil)
