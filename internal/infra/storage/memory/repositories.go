package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
)

// ListingCatalog is an in-memory listing catalog for local runs and tests.
type ListingCatalog struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]domainlistings.Listing
}

func NewListingCatalog() *ListingCatalog {
	return &ListingCatalog{items: make(map[domainlistings.ListingID]domainlistings.Listing)}
}

// ByID returns a copy of the listing or ErrListingNotFound.
func (c *ListingCatalog) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	listing, ok := c.items[id]
	if !ok {
		return nil, domainlistings.ErrListingNotFound
	}
	return &listing, nil
}

func (c *ListingCatalog) Save(ctx context.Context, listing *domainlistings.Listing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[listing.ID] = *listing
	return nil
}

// BookingStore holds committed bookings. Units stage writes and apply them
// here on commit.
type BookingStore struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingStore() *BookingStore {
	return &BookingStore{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (s *BookingStore) get(id domainbooking.BookingID) (*domainbooking.Booking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.items[id]
	if !ok {
		return nil, false
	}
	return b.Clone(), true
}

func (s *BookingStore) version(id domainbooking.BookingID) (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.items[id]
	if !ok {
		return 0, false
	}
	return b.Version, true
}

func (s *BookingStore) list(match func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range s.items {
		if match(b) {
			out = append(out, b.Clone())
		}
	}
	return out
}

// apply writes all staged bookings or none of them.
func (s *BookingStore) apply(staged map[domainbooking.BookingID]stagedBooking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range staged {
		current, exists := s.items[id]
		if !exists && w.base != 0 {
			return uow.ErrWriteConflict
		}
		if exists && current.Version != w.base {
			return uow.ErrWriteConflict
		}
	}
	for id, w := range staged {
		s.items[id] = w.booking.Clone()
	}
	return nil
}

type stagedBooking struct {
	booking *domainbooking.Booking
	base    int64
}

// unitBookings is the booking repository view of one unit: staged writes
// shadow committed state.
type unitBookings struct {
	unit *Unit
}

func (r unitBookings) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	if w, ok := r.unit.staged[id]; ok {
		return w.booking.Clone(), nil
	}
	b, ok := r.unit.store.get(id)
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b, nil
}

func (r unitBookings) Save(ctx context.Context, b *domainbooking.Booking) error {
	if r.unit.readOnly {
		return ErrReadOnlyUnit
	}
	if r.unit.done {
		return ErrUnitClosed
	}
	base := b.Version
	if w, ok := r.unit.staged[b.ID]; ok {
		base = w.base
		if w.booking.Version != b.Version {
			return uow.ErrWriteConflict
		}
	} else {
		current, exists := r.unit.store.version(b.ID)
		if exists != (base != 0) || current != base {
			return uow.ErrWriteConflict
		}
	}
	b.Version++
	r.unit.staged[b.ID] = stagedBooking{booking: b.Clone(), base: base}
	return nil
}

func (r unitBookings) ListByListing(ctx context.Context, listingID domainlistings.ListingID, statuses ...domainbooking.Status) ([]*domainbooking.Booking, error) {
	return r.list(func(b *domainbooking.Booking) bool {
		return b.ListingID == listingID && statusIn(b.Status, statuses)
	}), nil
}

func (r unitBookings) ListByRenter(ctx context.Context, renterID string) ([]*domainbooking.Booking, error) {
	id := strings.TrimSpace(renterID)
	return r.list(func(b *domainbooking.Booking) bool { return b.RenterID == id }), nil
}

func (r unitBookings) ListByOwner(ctx context.Context, ownerID string) ([]*domainbooking.Booking, error) {
	id := strings.TrimSpace(ownerID)
	return r.list(func(b *domainbooking.Booking) bool { return b.OwnerID == id }), nil
}

func (r unitBookings) list(match func(*domainbooking.Booking) bool) []*domainbooking.Booking {
	committed := r.unit.store.list(func(b *domainbooking.Booking) bool {
		_, shadowed := r.unit.staged[b.ID]
		return !shadowed && match(b)
	})
	for _, w := range r.unit.staged {
		if match(w.booking) {
			committed = append(committed, w.booking.Clone())
		}
	}
	sort.Slice(committed, func(i, j int) bool {
		if committed[i].CreatedAt.Equal(committed[j].CreatedAt) {
			return committed[i].ID > committed[j].ID
		}
		return committed[i].CreatedAt.After(committed[j].CreatedAt)
	})
	return committed
}

func statusIn(s domainbooking.Status, allowed []domainbooking.Status) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if s == candidate {
			return true
		}
	}
	return false
}

var (
	_ domainlistings.Catalog   = (*ListingCatalog)(nil)
	_ domainbooking.Repository = unitBookings{}
)
