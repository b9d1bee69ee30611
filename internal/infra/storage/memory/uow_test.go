package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentalhub/internal/app/middleware"
	"rentalhub/internal/app/outbox"
	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

func seedBooking(t *testing.T, id string) *domainbooking.Booking {
	t.Helper()
	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:    "L1",
		Owner: "owner-1",
		Title: "Camera",
		Price: money.Must(1000, "USD"),
	})
	require.NoError(t, err)
	start := time.Date(2030, 1, 10, 0, 0, 0, 0, time.UTC)
	b, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:        domainbooking.BookingID(id),
		Listing:   listing,
		RenterID:  "renter-1",
		Range:     daterange.Must(start, start.AddDate(0, 0, 2)),
		CreatedAt: start.AddDate(0, 0, -5),
	})
	require.NoError(t, err)
	return b
}

func TestUnitCommitAppliesStagedWrites(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil, nil)

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	b := seedBooking(t, "B1")
	require.NoError(t, unit.Bookings().Save(ctx, b))
	require.Equal(t, int64(1), b.Version)

	other, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	_, err = other.Bookings().ByID(ctx, "B1")
	require.ErrorIs(t, err, domainbooking.ErrBookingNotFound)

	require.NoError(t, unit.Commit(ctx))

	stored, err := other.Bookings().ByID(ctx, "B1")
	require.NoError(t, err)
	require.Equal(t, domainbooking.StatusPending, stored.Status)
}

func TestUnitRollbackDiscardsWrites(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil, nil)

	unit, err := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Bookings().Save(ctx, seedBooking(t, "B1")))
	require.NoError(t, unit.Rollback(ctx))

	check, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	list, err := check.Bookings().ListByListing(ctx, "L1")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestUnitDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil, nil)

	seed, _ := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, seed.Bookings().Save(ctx, seedBooking(t, "B1")))
	require.NoError(t, seed.Commit(ctx))

	first, _ := factory.Begin(ctx, uow.TxOptions{})
	second, _ := factory.Begin(ctx, uow.TxOptions{})
	a, err := first.Bookings().ByID(ctx, "B1")
	require.NoError(t, err)
	b, err := second.Bookings().ByID(ctx, "B1")
	require.NoError(t, err)

	require.NoError(t, first.Bookings().Save(ctx, a))
	require.NoError(t, second.Bookings().Save(ctx, b))
	require.NoError(t, first.Commit(ctx))
	require.ErrorIs(t, second.Commit(ctx), uow.ErrWriteConflict)

	late, _ := factory.Begin(ctx, uow.TxOptions{})
	b.Version = 1
	require.ErrorIs(t, late.Bookings().Save(ctx, b), uow.ErrWriteConflict)
}

func TestReadOnlyUnitRejectsSave(t *testing.T) {
	ctx := context.Background()
	unit, _ := NewFactory(nil, nil).Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.ErrorIs(t, unit.Bookings().Save(ctx, seedBooking(t, "B1")), ErrReadOnlyUnit)
}

func TestLockListingSerializesUnits(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil, nil)

	holder, _ := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, holder.LockListing(ctx, "L1"))
	require.NoError(t, holder.LockListing(ctx, "L1"))

	waiter, _ := factory.Begin(ctx, uow.TxOptions{})
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	require.Error(t, waiter.LockListing(short, "L1"))

	acquired := make(chan struct{})
	go func() {
		late, _ := factory.Begin(ctx, uow.TxOptions{})
		if late.LockListing(ctx, "L1") == nil {
			close(acquired)
			_ = late.Rollback(ctx)
		}
	}()

	select {
	case <-acquired:
		t.Fatal("lock acquired while held")
	case <-time.After(20 * time.Millisecond):
	}
	require.NoError(t, holder.Commit(ctx))
	require.Eventually(t, func() bool {
		select {
		case <-acquired:
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestKeyedLockerDropsIdleEntries(t *testing.T) {
	locker := NewKeyedLocker()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(context.Background(), "k")
			if err == nil {
				_ = release(context.Background())
				_ = release(context.Background())
			}
		}()
	}
	wg.Wait()
	locker.mu.Lock()
	defer locker.mu.Unlock()
	require.Empty(t, locker.locks)
}

func TestOutboxReleasesRecordsOnlyAfterCommit(t *testing.T) {
	ctx := context.Background()
	factory := NewFactory(nil, nil)
	var delivered []string
	box := NewOutbox(func(_ context.Context, rec outbox.EventRecord) error {
		delivered = append(delivered, rec.ID)
		return nil
	}, nil)

	rolled, _ := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, box.Add(uow.Bind(ctx, rolled), outbox.EventRecord{ID: "dropped"}))
	require.NoError(t, rolled.Rollback(ctx))

	committed, _ := factory.Begin(ctx, uow.TxOptions{})
	require.NoError(t, box.Add(uow.Bind(ctx, committed), outbox.EventRecord{ID: "kept"}))
	require.Empty(t, box.Pending())
	require.NoError(t, committed.Commit(ctx))

	require.NoError(t, box.Flush(ctx))
	require.Equal(t, []string{"kept"}, delivered)
}

func TestIdempotencyStoreExpiresRecords(t *testing.T) {
	store := NewIdempotencyStore(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	require.NoError(t, store.Save(context.Background(), middlewareRecord("k", now)))

	_, ok, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	require.True(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok, err = store.Get(context.Background(), "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestIdempotencyStoreReserveIsExclusive(t *testing.T) {
	ctx := context.Background()
	store := NewIdempotencyStore(time.Minute)
	now := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	ok, err := store.Reserve(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = store.Reserve(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, store.Release(ctx, "k"))
	ok, err = store.Reserve(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Save(ctx, middlewareRecord("k", now)))
	ok, err = store.Reserve(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, store.Release(ctx, "k"))
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)

	now = now.Add(2 * time.Minute)
	ok, err = store.Reserve(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
}

func middlewareRecord(key string, at time.Time) middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{Key: key, Payload: []byte(`{}`), OccurredAt: at}
}
