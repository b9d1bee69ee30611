package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	"rentalhub/internal/domain/listings"
)

type txKey struct{}

func withTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// conn returns the unit's transaction when ctx carries one.
func conn(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// GormBookingRepository is the GORM-based implementation of the booking repository.
type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var model BookingModel
	if err := conn(ctx, r.db).Where("id = ?", string(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, mapError(fmt.Errorf("failed to find booking by ID: %w", err))
	}
	return toDomainBooking(&model), nil
}

// Save inserts new bookings and updates existing ones only while the stored
// version matches.
func (r *GormBookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	model := toBookingModel(b)
	db := conn(ctx, r.db)
	if b.Version == 0 {
		model.Version = 1
		if err := db.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return uow.ErrWriteConflict
			}
			return mapError(fmt.Errorf("failed to create booking: %w", err))
		}
		b.Version = 1
		return nil
	}

	res := db.Model(&BookingModel{}).
		Where("id = ? AND version = ?", model.ID, b.Version).
		Updates(map[string]any{
			"status":         model.Status,
			"payment_status": model.PaymentStatus,
			"updated_at":     model.UpdatedAt,
			"version":        b.Version + 1,
		})
	if res.Error != nil {
		return mapError(fmt.Errorf("failed to update booking: %w", res.Error))
	}
	if res.RowsAffected == 0 {
		return uow.ErrWriteConflict
	}
	b.Version++
	return nil
}

func (r *GormBookingRepository) ListByListing(ctx context.Context, listingID listings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	q := conn(ctx, r.db).Where("listing_id = ?", string(listingID))
	if len(statuses) > 0 {
		values := make([]string, 0, len(statuses))
		for _, s := range statuses {
			values = append(values, string(s))
		}
		q = q.Where("status IN ?", values)
	}
	return r.find(q)
}

func (r *GormBookingRepository) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	return r.find(conn(ctx, r.db).Where("renter_id = ?", renterID))
}

func (r *GormBookingRepository) ListByOwner(ctx context.Context, ownerID string) ([]*domainbooking.Booking, error) {
	return r.find(conn(ctx, r.db).Where("owner_id = ?", ownerID))
}

func (r *GormBookingRepository) find(q *gorm.DB) ([]*domainbooking.Booking, error) {
	var models []BookingModel
	if err := q.Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, mapError(fmt.Errorf("failed to list bookings: %w", err))
	}
	out := make([]*domainbooking.Booking, len(models))
	for i := range models {
		out[i] = toDomainBooking(&models[i])
	}
	return out, nil
}

// GormListingCatalog reads listings from the shared catalog table.
type GormListingCatalog struct {
	db *gorm.DB
}

func NewGormListingCatalog(db *gorm.DB) *GormListingCatalog {
	return &GormListingCatalog{db: db}
}

func (c *GormListingCatalog) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var model ListingModel
	if err := conn(ctx, c.db).Where("id = ?", string(id)).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, listings.ErrListingNotFound
		}
		return nil, mapError(fmt.Errorf("failed to find listing: %w", err))
	}
	return toDomainListing(&model), nil
}

// Save upserts a listing row; used by fixture loading.
func (c *GormListingCatalog) Save(ctx context.Context, l *listings.Listing) error {
	model := toListingModel(l)
	return conn(ctx, c.db).Save(&model).Error
}

const (
	sqlStateSerialization = "40001"
	sqlStateDeadlock      = "40P01"
	sqlStateLockTimeout   = "55P03"
)

// mapError classifies driver errors for the transaction middleware.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateSerialization, sqlStateDeadlock, sqlStateLockTimeout:
			return errors.Join(uow.ErrWriteConflict, err)
		}
	}
	return uow.Unavailable(err)
}

var (
	_ domainbooking.Repository = (*GormBookingRepository)(nil)
	_ listings.Catalog         = (*GormListingCatalog)(nil)
)
