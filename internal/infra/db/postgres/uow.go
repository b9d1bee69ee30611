package postgres

import (
	"context"
	"database/sql"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
)

// Factory opens one database transaction per unit of work.
type Factory struct {
	DB     *gorm.DB
	Locker uow.ListingLocker

	bookings *GormBookingRepository
	listings *GormListingCatalog
}

func NewFactory(db *gorm.DB, locker uow.ListingLocker) *Factory {
	return &Factory{
		DB:       db,
		Locker:   locker,
		bookings: NewGormBookingRepository(db),
		listings: NewGormListingCatalog(db),
	}
}

func (f *Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	tx := f.DB.WithContext(ctx).Begin(&sql.TxOptions{ReadOnly: opts.ReadOnly})
	if tx.Error != nil {
		return nil, uow.Unavailable(tx.Error)
	}
	return &Unit{tx: tx, locker: f.Locker, readOnly: opts.ReadOnly, bookings: f.bookings, listings: f.listings}, nil
}

type Unit struct {
	tx       *gorm.DB
	locker   uow.ListingLocker
	readOnly bool

	bookings *GormBookingRepository
	listings *GormListingCatalog

	releases []func(context.Context) error
	hooks    []func(context.Context)
	locked   map[domainlistings.ListingID]struct{}
	done     bool
}

func (u *Unit) Listings() domainlistings.Catalog   { return u.listings }
func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

// InjectContext puts the transaction where the repositories look for it.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return withTx(ctx, u.tx)
}

// LockListing takes the listing's lock row FOR UPDATE; it is released when
// the transaction ends.
func (u *Unit) LockListing(ctx context.Context, id domainlistings.ListingID) error {
	if u.readOnly {
		return nil
	}
	if _, ok := u.locked[id]; ok {
		return nil
	}
	if u.locker != nil {
		release, err := u.locker.Acquire(ctx, "listing:"+string(id))
		if err != nil {
			return uow.Unavailable(err)
		}
		u.releases = append(u.releases, release)
	}
	tx := u.tx.WithContext(ctx)
	row := ListingLockModel{ListingID: string(id)}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return mapError(err)
	}
	var locked ListingLockModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("listing_id = ?", string(id)).
		First(&locked).Error; err != nil {
		return mapError(err)
	}
	if u.locked == nil {
		u.locked = make(map[domainlistings.ListingID]struct{})
	}
	u.locked[id] = struct{}{}
	return nil
}

func (u *Unit) AfterCommit(fn func(context.Context)) {
	if fn != nil {
		u.hooks = append(u.hooks, fn)
	}
}

func (u *Unit) Commit(ctx context.Context) error {
	if u.done {
		return errors.New("postgres: unit already finished")
	}
	u.done = true
	defer u.release(ctx)
	if err := u.tx.Commit().Error; err != nil {
		return mapError(err)
	}
	for _, hook := range u.hooks {
		hook(ctx)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	defer u.release(ctx)
	err := u.tx.Rollback().Error
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

func (u *Unit) release(ctx context.Context) {
	u.hooks = nil
	for i := len(u.releases) - 1; i >= 0; i-- {
		_ = u.releases[i](context.WithoutCancel(ctx))
	}
	u.releases = nil
}

var (
	_ uow.UoWFactory     = (*Factory)(nil)
	_ uow.UnitOfWork     = (*Unit)(nil)
	_ uow.AfterCommitter = (*Unit)(nil)
)
