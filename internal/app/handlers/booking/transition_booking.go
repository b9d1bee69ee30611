package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"rentalhub/internal/app/commands"
	"rentalhub/internal/app/dto"
	handlersupport "rentalhub/internal/app/handlers/support"
	"rentalhub/internal/app/outbox"
	"rentalhub/internal/app/uow"
	domainavailability "rentalhub/internal/domain/availability"
	domainbooking "rentalhub/internal/domain/booking"
	"rentalhub/internal/domain/shared/events"
)

const (
	transitionBookingKey = "booking.transition"
	setPaymentStatusKey  = "booking.payment_status"
)

var ErrBookingIDRequired = errors.New("booking: booking id required")

type TransitionBookingCommand struct {
	BookingID string
	Actor     string
	Target    domainbooking.Status
	// System marks transitions the engine drives itself. Only Completer sets it.
	System bool
}

func (c TransitionBookingCommand) Key() string { return transitionBookingKey }

func (c TransitionBookingCommand) ActorID() string {
	if c.System {
		return domainbooking.SystemActor
	}
	return c.Actor
}

func (c TransitionBookingCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	if !c.Target.IsValid() {
		return &domainbooking.TransitionError{To: string(c.Target)}
	}
	return nil
}

func (c TransitionBookingCommand) check(b *domainbooking.Booking, now time.Time) error {
	if c.System {
		return b.CheckSystemTransition(c.Target, now)
	}
	return b.CheckTransition(c.Actor, c.Target, now)
}

func (c TransitionBookingCommand) apply(b *domainbooking.Booking, now time.Time) error {
	if c.System {
		return b.TransitionAsSystem(c.Target, now)
	}
	return b.Transition(c.Actor, c.Target, now)
}

type TransitionBookingHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *TransitionBookingHandler) Handle(ctx context.Context, cmd TransitionBookingCommand) (*dto.Booking, error) {
	unit, ctx, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer unit.Finish(ctx)

	now := handlersupport.Clock(h.Now)
	booking, err := loadLocked(ctx, unit, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	if err := cmd.check(booking, now); err != nil {
		return nil, err
	}

	if cmd.Target == domainbooking.StatusAccepted {
		// Other pendings may overlap; only one of them can win the dates.
		accepted, err := unit.Bookings().ListByListing(ctx, booking.ListingID, domainbooking.StatusAccepted)
		if err != nil {
			return nil, err
		}
		cal := domainavailability.NewCalendar(booking.ListingID, accepted)
		if block, conflict := cal.FirstConflict(booking.Range, string(booking.ID)); conflict {
			if h.Logger != nil {
				h.Logger.Info("accept refused, dates taken", "booking_id", booking.ID, "conflicting_booking_id", block.Reference)
			}
			return nil, domainbooking.ErrConflict
		}
	}

	from := booking.Status
	if err := cmd.apply(booking, now); err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, booking); err != nil {
		return nil, err
	}
	emitted := events.Names(booking.PendingEvents())
	if err := outbox.Drain(ctx, h.Outbox, h.Encoder, booking); err != nil {
		return nil, err
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}

	if h.Logger != nil {
		h.Logger.Info("booking transitioned", "booking_id", booking.ID, "from", from, "to", booking.Status, "actor", cmd.ActorID(), "events", emitted)
	}
	result := dto.MapBooking(booking, now)
	return &result, nil
}

type SetPaymentStatusCommand struct {
	BookingID string
	Actor     string
	Status    domainbooking.PaymentStatus
}

func (c SetPaymentStatusCommand) Key() string     { return setPaymentStatusKey }
func (c SetPaymentStatusCommand) ActorID() string { return c.Actor }

func (c SetPaymentStatusCommand) Validate() error {
	if strings.TrimSpace(c.BookingID) == "" {
		return ErrBookingIDRequired
	}
	return nil
}

type SetPaymentStatusHandler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *SetPaymentStatusHandler) Handle(ctx context.Context, cmd SetPaymentStatusCommand) (*dto.Booking, error) {
	unit, ctx, err := handlersupport.BeginUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer unit.Finish(ctx)

	now := handlersupport.Clock(h.Now)
	booking, err := loadLocked(ctx, unit, domainbooking.BookingID(cmd.BookingID))
	if err != nil {
		return nil, err
	}
	changed, err := booking.SetPaymentStatus(cmd.Actor, cmd.Status, now)
	if err != nil {
		return nil, err
	}
	if changed {
		if err := unit.Bookings().Save(ctx, booking); err != nil {
			return nil, err
		}
		if err := outbox.Drain(ctx, h.Outbox, h.Encoder, booking); err != nil {
			return nil, err
		}
	}
	if err := unit.Commit(ctx); err != nil {
		return nil, err
	}

	if h.Logger != nil && changed {
		h.Logger.Info("payment status changed", "booking_id", booking.ID, "payment_status", booking.PaymentStatus, "actor", cmd.Actor)
	}
	result := dto.MapBooking(booking, now)
	return &result, nil
}

// loadLocked takes the listing guard for the booking and rereads it so the
// state checked afterwards is the one last committed under that guard.
func loadLocked(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	current, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := unit.LockListing(ctx, current.ListingID); err != nil {
		return nil, err
	}
	return unit.Bookings().ByID(ctx, id)
}

var _ commands.Handler[TransitionBookingCommand, *dto.Booking] = (*TransitionBookingHandler)(nil)
var _ commands.Handler[SetPaymentStatusCommand, *dto.Booking] = (*SetPaymentStatusHandler)(nil)
