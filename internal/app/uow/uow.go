package uow

import (
	"context"
	"errors"

	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
)

var (
	// ErrWriteConflict means a concurrent unit changed the same data first.
	// The whole unit may be retried.
	ErrWriteConflict = errors.New("uow: concurrent write conflict")
	// ErrTemporarilyUnavailable wraps storage failures that left no partial writes.
	ErrTemporarilyUnavailable = errors.New("uow: storage temporarily unavailable")
)

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Listings() domainlistings.Catalog
	Bookings() domainbooking.Repository

	// LockListing serializes units touching the same listing. The guard is
	// held until Commit or Rollback.
	LockListing(ctx context.Context, id domainlistings.ListingID) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ListingLocker is an optional cross-process guard taken before a unit's own
// locking. Release must be safe to call once.
type ListingLocker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

// Unavailable wraps a storage error as retryable by the caller.
func Unavailable(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrWriteConflict) || errors.Is(err, ErrTemporarilyUnavailable) {
		return err
	}
	return errors.Join(ErrTemporarilyUnavailable, err)
}
