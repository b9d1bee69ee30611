package memory

import (
	"context"
	"errors"
	"sync"

	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
)

var (
	ErrReadOnlyUnit = errors.New("memory: unit is read-only")
	ErrUnitClosed   = errors.New("memory: unit already finished")
)

// Factory begins units over a shared catalog and booking store.
type Factory struct {
	catalog *ListingCatalog
	store   *BookingStore
	locker  uow.ListingLocker
}

func NewFactory(catalog *ListingCatalog, store *BookingStore) *Factory {
	if catalog == nil {
		catalog = NewListingCatalog()
	}
	if store == nil {
		store = NewBookingStore()
	}
	return &Factory{catalog: catalog, store: store, locker: NewKeyedLocker()}
}

// WithLocker swaps the listing guard, e.g. for a shared redis lock.
func (f *Factory) WithLocker(locker uow.ListingLocker) *Factory {
	if locker != nil {
		f.locker = locker
	}
	return f
}

func (f *Factory) Catalog() *ListingCatalog { return f.catalog }

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	return &Unit{
		catalog:  f.catalog,
		store:    f.store,
		locker:   f.locker,
		readOnly: opts.ReadOnly,
		staged:   make(map[domainbooking.BookingID]stagedBooking),
		locked:   make(map[domainlistings.ListingID]struct{}),
	}, nil
}

// Unit stages booking writes and applies them atomically on Commit. Listing
// locks are held until the unit finishes.
type Unit struct {
	catalog  *ListingCatalog
	store    *BookingStore
	locker   uow.ListingLocker
	readOnly bool

	mu       sync.Mutex
	staged   map[domainbooking.BookingID]stagedBooking
	locked   map[domainlistings.ListingID]struct{}
	releases []func(context.Context) error
	hooks    []func(context.Context)
	done     bool
}

func (u *Unit) Listings() domainlistings.Catalog   { return u.catalog }
func (u *Unit) Bookings() domainbooking.Repository { return unitBookings{unit: u} }

func (u *Unit) LockListing(ctx context.Context, id domainlistings.ListingID) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.done {
		return ErrUnitClosed
	}
	if _, ok := u.locked[id]; ok {
		return nil
	}
	release, err := u.locker.Acquire(ctx, "listing:"+string(id))
	if err != nil {
		return uow.Unavailable(err)
	}
	u.locked[id] = struct{}{}
	u.releases = append(u.releases, release)
	return nil
}

func (u *Unit) AfterCommit(fn func(context.Context)) {
	if fn == nil {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hooks = append(u.hooks, fn)
}

func (u *Unit) Commit(ctx context.Context) error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return ErrUnitClosed
	}
	u.done = true
	var err error
	if len(u.staged) > 0 {
		err = u.store.apply(u.staged)
	}
	hooks := u.hooks
	u.hooks = nil
	u.mu.Unlock()

	u.release(ctx)
	if err != nil {
		return err
	}
	for _, hook := range hooks {
		hook(ctx)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.mu.Lock()
	if u.done {
		u.mu.Unlock()
		return nil
	}
	u.done = true
	u.staged = make(map[domainbooking.BookingID]stagedBooking)
	u.hooks = nil
	u.mu.Unlock()
	u.release(ctx)
	return nil
}

func (u *Unit) release(ctx context.Context) {
	u.mu.Lock()
	releases := u.releases
	u.releases = nil
	u.mu.Unlock()
	for i := len(releases) - 1; i >= 0; i-- {
		_ = releases[i](context.WithoutCancel(ctx))
	}
}

var (
	_ uow.UoWFactory     = (*Factory)(nil)
	_ uow.UnitOfWork     = (*Unit)(nil)
	_ uow.AfterCommitter = (*Unit)(nil)
)
