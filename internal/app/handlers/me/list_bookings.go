package me

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"rentalhub/internal/app/dto"
	bookingapp "rentalhub/internal/app/handlers/booking"
	handlersupport "rentalhub/internal/app/handlers/support"
	"rentalhub/internal/app/queries"
	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
)

const listBookingsKey = "me.bookings.list"

var (
	ErrActorRequired = errors.New("me: actor id is required")
	ErrInvalidRole   = errors.New("me: role must be renter or owner")
	ErrInvalidBucket = errors.New("me: bucket must be active, pending or past")
)

// ListBookingsQuery lists the caller's bookings as renter ("My Rentals") or
// as owner ("Rental Requests"), newest first.
type ListBookingsQuery struct {
	Actor  string
	Role   domainbooking.Role
	Bucket string
}

func (q ListBookingsQuery) Key() string     { return listBookingsKey }
func (q ListBookingsQuery) ActorID() string { return q.Actor }

type ListBookingsHandler struct {
	UoWFactory uow.UoWFactory
	Completer  *bookingapp.Completer
	Now        func() time.Time
	Logger     *slog.Logger
}

func (h *ListBookingsHandler) Handle(ctx context.Context, q ListBookingsQuery) (dto.BookingCollection, error) {
	actor := strings.TrimSpace(q.Actor)
	if actor == "" {
		return dto.BookingCollection{}, ErrActorRequired
	}
	role := q.Role
	if role == "" {
		role = domainbooking.RoleRenter
	}
	if role != domainbooking.RoleRenter && role != domainbooking.RoleOwner {
		return dto.BookingCollection{}, ErrInvalidRole
	}
	var filter domainbooking.Bucket
	if q.Bucket != "" {
		b, ok := domainbooking.ParseBucket(strings.ToLower(q.Bucket))
		if !ok {
			return dto.BookingCollection{}, ErrInvalidBucket
		}
		filter = b
	}

	bookings, err := h.load(ctx, actor, role)
	if err != nil {
		return dto.BookingCollection{}, err
	}
	sort.SliceStable(bookings, func(i, j int) bool {
		if bookings[i].CreatedAt.Equal(bookings[j].CreatedAt) {
			return bookings[i].ID > bookings[j].ID
		}
		return bookings[i].CreatedAt.After(bookings[j].CreatedAt)
	})

	now := handlersupport.Clock(h.Now)
	out := dto.BookingCollection{Role: string(role), Bucket: string(filter), Items: make([]dto.Booking, 0, len(bookings))}
	for _, b := range bookings {
		if h.Completer != nil {
			b = h.Completer.CompleteIfEnded(ctx, b, now)
		}
		bucket := domainbooking.Classify(b, now)
		switch bucket {
		case domainbooking.BucketActive:
			out.Counts.Active++
		case domainbooking.BucketPending:
			out.Counts.Pending++
		case domainbooking.BucketPast:
			out.Counts.Past++
		}
		if filter != "" && bucket != filter {
			continue
		}
		out.Items = append(out.Items, dto.MapBooking(b, now))
	}

	if h.Logger != nil {
		h.Logger.Debug("bookings listed", "actor", actor, "role", role, "bucket", filter, "count", len(out.Items))
	}
	return out, nil
}

func (h *ListBookingsHandler) load(ctx context.Context, actor string, role domainbooking.Role) ([]*domainbooking.Booking, error) {
	unit, execCtx, cleanup, err := handlersupport.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	if cleanup != nil {
		defer cleanup()
	}
	if role == domainbooking.RoleOwner {
		return unit.Bookings().ListByOwner(execCtx, actor)
	}
	return unit.Bookings().ListByRenter(execCtx, actor)
}

var _ queries.Handler[ListBookingsQuery, dto.BookingCollection] = (*ListBookingsHandler)(nil)
