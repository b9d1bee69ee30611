package availability

import (
	"errors"
	"sort"
	"time"

	"rentalhub/internal/domain/booking"
	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/daterange"
)

var (
	ErrInvalidRange = errors.New("availability: invalid date range")
	ErrUnavailable  = errors.New("availability: dates are not available")
)

type BlockReason string

const (
	// ReasonBooking marks dates held by an accepted booking.
	ReasonBooking BlockReason = "BOOKING"
	// ReasonRequest marks dates with an open request. Requests never block.
	ReasonRequest BlockReason = "REQUEST"
)

type Block struct {
	Range     daterange.DateRange `json:"range"`
	Reason    BlockReason         `json:"reason"`
	Reference string              `json:"reference"`
}

func (b Block) Blocking() bool {
	return b.Reason == ReasonBooking
}

// Calendar is the set of claims on one listing's dates.
type Calendar struct {
	ListingID listings.ListingID
	Blocks    []Block
}

// NewCalendar builds a calendar from the listing's bookings. Only pending and
// accepted bookings produce blocks; terminal ones release their dates.
func NewCalendar(id listings.ListingID, bookings []*booking.Booking) *Calendar {
	c := &Calendar{ListingID: id}
	for _, b := range bookings {
		if b == nil || b.ListingID != id {
			continue
		}
		switch b.Status {
		case booking.StatusAccepted:
			c.Blocks = append(c.Blocks, Block{Range: b.Range, Reason: ReasonBooking, Reference: string(b.ID)})
		case booking.StatusPending:
			c.Blocks = append(c.Blocks, Block{Range: b.Range, Reason: ReasonRequest, Reference: string(b.ID)})
		}
	}
	sort.SliceStable(c.Blocks, func(i, j int) bool {
		return c.Blocks[i].Range.Start.Before(c.Blocks[j].Range.Start)
	})
	return c
}

// FirstConflict returns the first blocking claim overlapping r, if any.
// The block referencing exclude is ignored.
func (c *Calendar) FirstConflict(r daterange.DateRange, exclude string) (Block, bool) {
	for _, block := range c.Blocks {
		if !block.Blocking() || (exclude != "" && block.Reference == exclude) {
			continue
		}
		if block.Range.Overlaps(r) {
			return block, true
		}
	}
	return Block{}, false
}

func (c *Calendar) CanReserve(r daterange.DateRange) bool {
	_, conflict := c.FirstConflict(r, "")
	return !conflict
}

// Blocked returns the ranges held by accepted bookings.
func (c *Calendar) Blocked() []daterange.DateRange {
	out := make([]daterange.DateRange, 0, len(c.Blocks))
	for _, block := range c.Blocks {
		if block.Blocking() {
			out = append(out, block.Range)
		}
	}
	return out
}

// CheckRange decides whether r may be requested on listing at time now.
// Ranges that start before today, run backwards or leave the listing's
// availability window are invalid; ranges touching an accepted booking are
// unavailable. Suspended listings accept nothing.
func CheckRange(listing *listings.Listing, r daterange.DateRange, existing []*booking.Booking, now time.Time) error {
	if err := r.Validate(); err != nil {
		return ErrInvalidRange
	}
	if r.Start.Before(daterange.Day(now)) {
		return ErrInvalidRange
	}
	if !listing.WithinWindow(r) {
		return ErrInvalidRange
	}
	if !listing.Active() {
		return ErrUnavailable
	}
	if !NewCalendar(listing.ID, existing).CanReserve(r) {
		return ErrUnavailable
	}
	return nil
}

// IsRangeAvailable is the boolean form of CheckRange.
func IsRangeAvailable(listing *listings.Listing, start, end time.Time, existing []*booking.Booking, now time.Time) bool {
	r := daterange.DateRange{Start: daterange.Day(start), End: daterange.Day(end)}
	return CheckRange(listing, r, existing, now) == nil
}
