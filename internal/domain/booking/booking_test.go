package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

const (
	ownerID  = "owner-1"
	renterID = "renter-1"
)

var now = time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)

func testListing(t *testing.T) *listings.Listing {
	t.Helper()
	l, err := listings.NewListing(listings.CreateListingParams{
		ID:        "listing-1",
		Owner:     ownerID,
		Title:     "Cordless Drill",
		Price:     money.Must(1000, "USD"),
		PriceUnit: listings.UnitDay,
	})
	require.NoError(t, err)
	return l
}

func newPending(t *testing.T, start, end string) *Booking {
	t.Helper()
	dr, err := daterange.Parse(start, end)
	require.NoError(t, err)
	b, err := NewBooking(CreateParams{
		ID:        "b-1",
		Listing:   testListing(t),
		RenterID:  renterID,
		Range:     dr,
		CreatedAt: now,
	})
	require.NoError(t, err)
	return b
}

func TestNewBookingPricesAndRecordsRequest(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")

	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentPending, b.PaymentStatus)
	assert.Equal(t, int64(3000), b.TotalPrice.Amount)
	assert.Equal(t, ownerID, b.OwnerID)

	evs := b.PendingEvents()
	require.Len(t, evs, 1)
	req, ok := evs[0].(BookingRequested)
	require.True(t, ok)
	assert.Equal(t, ownerID, req.Recipient)
	assert.Equal(t, `New booking request for "Cordless Drill" from Jan 11 to Jan 13`, req.Text)
}

func TestNewBookingRejectsOwner(t *testing.T) {
	dr, _ := daterange.Parse("2024-01-11", "2024-01-12")
	_, err := NewBooking(CreateParams{ID: "b", Listing: testListing(t), RenterID: ownerID, Range: dr, CreatedAt: now})
	require.ErrorIs(t, err, ErrSelfBooking)
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		setup   []Status
		actor   string
		target  Status
		wantErr error
	}{
		{"owner accepts", nil, ownerID, StatusAccepted, nil},
		{"owner rejects", nil, ownerID, StatusRejected, nil},
		{"renter cancels", nil, renterID, StatusCancelled, nil},
		{"renter cannot accept", nil, renterID, StatusAccepted, ErrForbidden},
		{"owner cannot cancel", nil, ownerID, StatusCancelled, ErrForbidden},
		{"stranger forbidden", nil, "someone", StatusAccepted, ErrForbidden},
		{"pending cannot return", nil, ownerID, StatusReturned, ErrInvalidTransition},
		{"owner returns", []Status{StatusAccepted}, ownerID, StatusReturned, nil},
		{"accepted cannot cancel", []Status{StatusAccepted}, renterID, StatusCancelled, ErrInvalidTransition},
		{"returned is terminal", []Status{StatusAccepted, StatusReturned}, ownerID, StatusCompleted, ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newPending(t, "2024-01-11", "2024-01-13")
			for _, s := range tc.setup {
				require.NoError(t, b.Transition(ownerID, s, now))
			}
			err := b.Transition(tc.actor, tc.target, now)
			if tc.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, tc.target, b.Status)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestRejectedBookingRejectsEveryTransition(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")
	require.NoError(t, b.Transition(ownerID, StatusRejected, now))
	b.ClearEvents()

	for _, target := range allStatuses {
		err := b.Transition(ownerID, target, now)
		require.ErrorIs(t, err, ErrInvalidTransition, "target %s", target)

		var te *TransitionError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, string(StatusRejected), te.From)
	}
	assert.Empty(t, b.PendingEvents())
	assert.True(t, StatusRejected.IsTerminal())
}

func TestCompletionRequiresEndPassed(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")
	require.NoError(t, b.Transition(ownerID, StatusAccepted, now))

	err := b.TransitionAsSystem(StatusCompleted, time.Date(2024, 1, 13, 23, 0, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrInvalidTransition)

	require.NoError(t, b.TransitionAsSystem(StatusCompleted, time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, StatusCompleted, b.Status)
	completed := b.PendingEvents()[len(b.PendingEvents())-1].(BookingCompleted)
	assert.Equal(t, SystemActor, completed.By)
}

func TestSystemCannotAccept(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")
	require.ErrorIs(t, b.TransitionAsSystem(StatusAccepted, now), ErrForbidden)
}

func TestSystemIDIsNotARole(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")
	require.NoError(t, b.Transition(ownerID, StatusAccepted, now))

	_, ok := b.RoleOf(SystemActor)
	assert.False(t, ok)
	after := time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)
	require.ErrorIs(t, b.Transition(SystemActor, StatusCompleted, after), ErrForbidden)
	assert.Equal(t, StatusAccepted, b.Status)
}

func TestNewBookingRejectsReservedRenter(t *testing.T) {
	dr, err := daterange.Parse("2024-01-11", "2024-01-13")
	require.NoError(t, err)
	for _, renter := range []string{SystemActor, " System "} {
		_, err = NewBooking(CreateParams{ID: "b-2", Listing: testListing(t), RenterID: renter, Range: dr, CreatedAt: now})
		require.ErrorIs(t, err, ErrReservedActor, renter)
	}
}

func TestPaymentOpenAfterReturn(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")
	require.NoError(t, b.Transition(ownerID, StatusAccepted, now))
	require.NoError(t, b.Transition(ownerID, StatusReturned, now))

	changed, err := b.SetPaymentStatus(ownerID, PaymentPaid, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusReturned, b.Status)
}

func TestTransitionRecordsNotificationForCounterparty(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")
	b.ClearEvents()
	require.NoError(t, b.Transition(ownerID, StatusAccepted, now))

	evs := b.PendingEvents()
	require.Len(t, evs, 1)
	accepted := evs[0].(BookingAccepted)
	assert.Equal(t, renterID, accepted.Recipient)
	assert.Equal(t, `Your booking for "Cordless Drill" has been accepted!`, accepted.Text)
	assert.Equal(t, "booking.accepted", accepted.EventName())
}

func TestSetPaymentStatus(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")

	_, err := b.SetPaymentStatus(ownerID, PaymentPaid, now)
	require.ErrorIs(t, err, ErrInvalidTransition, "pending booking cannot be paid")

	require.NoError(t, b.Transition(ownerID, StatusAccepted, now))
	b.ClearEvents()

	_, err = b.SetPaymentStatus(renterID, PaymentPaid, now)
	require.ErrorIs(t, err, ErrForbidden)

	changed, err := b.SetPaymentStatus(ownerID, PaymentPaid, now)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusAccepted, b.Status)
	require.Len(t, b.PendingEvents(), 1)

	b.ClearEvents()
	updated := b.UpdatedAt
	changed, err = b.SetPaymentStatus(ownerID, PaymentPaid, now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, updated, b.UpdatedAt)
	assert.Empty(t, b.PendingEvents())

	_, err = b.SetPaymentStatus(ownerID, PaymentPending, now)
	require.ErrorIs(t, err, ErrInvalidTransition)

	changed, err = b.SetPaymentStatus(ownerID, PaymentRefunded, now)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestClassify(t *testing.T) {
	today := time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

	stale := newPending(t, "2024-01-01", "2024-01-09")
	assert.Equal(t, BucketPending, Classify(stale, today))

	active := newPending(t, "2024-01-05", "2024-01-10")
	require.NoError(t, active.Transition(ownerID, StatusAccepted, today))
	assert.Equal(t, BucketActive, Classify(active, today))

	ended := newPending(t, "2024-01-01", "2024-01-09")
	require.NoError(t, ended.Transition(ownerID, StatusAccepted, today))
	assert.Equal(t, BucketPast, Classify(ended, today))
	assert.True(t, NeedsCompletion(ended, today))

	cancelled := newPending(t, "2024-02-01", "2024-02-09")
	require.NoError(t, cancelled.Transition(renterID, StatusCancelled, today))
	assert.Equal(t, BucketPast, Classify(cancelled, today))
}

func TestCloneDropsEvents(t *testing.T) {
	b := newPending(t, "2024-01-11", "2024-01-13")
	cp := b.Clone()
	assert.Empty(t, cp.PendingEvents())
	assert.Len(t, b.PendingEvents(), 1)
	assert.Equal(t, b.ID, cp.ID)
}
