package listings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

var (
	ErrListingNotFound = errors.New("listings: not found")
	ErrTitleRequired   = errors.New("listings: title is required")
	ErrOwnerRequired   = errors.New("listings: owner is required")
	ErrInvalidUnit     = errors.New("listings: unknown price unit")
	ErrInvalidWindow   = errors.New("listings: available_from must not be after available_to")
)

type ListingID string

type ListingState string

const (
	ListingActive    ListingState = "ACTIVE"
	ListingSuspended ListingState = "SUSPENDED"
)

// PriceUnit is the period the listing price is quoted for.
type PriceUnit string

const (
	UnitHour  PriceUnit = "hour"
	UnitDay   PriceUnit = "day"
	UnitWeek  PriceUnit = "week"
	UnitMonth PriceUnit = "month"
)

func ParsePriceUnit(raw string) (PriceUnit, error) {
	switch u := PriceUnit(strings.ToLower(strings.TrimSpace(raw))); u {
	case UnitHour, UnitDay, UnitWeek, UnitMonth:
		return u, nil
	case "":
		return UnitDay, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUnit, raw)
	}
}

// Listing is the read-only view of a catalog item the booking engine needs.
type Listing struct {
	ID            ListingID
	Owner         string
	Title         string
	Price         money.Money
	PriceUnit     PriceUnit
	AvailableFrom *time.Time
	AvailableTo   *time.Time
	State         ListingState
}

// Catalog is the read port onto the listing catalog.
type Catalog interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
}

type CreateListingParams struct {
	ID            ListingID
	Owner         string
	Title         string
	Price         money.Money
	PriceUnit     PriceUnit
	AvailableFrom *time.Time
	AvailableTo   *time.Time
	Suspended     bool
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, ErrTitleRequired
	}
	if strings.TrimSpace(params.Owner) == "" {
		return nil, ErrOwnerRequired
	}
	if err := params.Price.Validate(); err != nil {
		return nil, err
	}
	unit := params.PriceUnit
	if unit == "" {
		unit = UnitDay
	}
	if _, err := ParsePriceUnit(string(unit)); err != nil {
		return nil, err
	}
	l := &Listing{
		ID:        params.ID,
		Owner:     strings.TrimSpace(params.Owner),
		Title:     strings.TrimSpace(params.Title),
		Price:     params.Price,
		PriceUnit: unit,
		State:     ListingActive,
	}
	if params.AvailableFrom != nil {
		d := daterange.Day(*params.AvailableFrom)
		l.AvailableFrom = &d
	}
	if params.AvailableTo != nil {
		d := daterange.Day(*params.AvailableTo)
		l.AvailableTo = &d
	}
	if l.AvailableFrom != nil && l.AvailableTo != nil && l.AvailableFrom.After(*l.AvailableTo) {
		return nil, ErrInvalidWindow
	}
	if params.Suspended {
		l.State = ListingSuspended
	}
	return l, nil
}

func (l *Listing) Active() bool {
	return l != nil && l.State == ListingActive
}

// WithinWindow reports whether dr lies inside the listing's availability
// window. Open ends are unbounded.
func (l *Listing) WithinWindow(dr daterange.DateRange) bool {
	if l.AvailableFrom != nil && dr.Start.Before(daterange.Day(*l.AvailableFrom)) {
		return false
	}
	if l.AvailableTo != nil && dr.End.After(daterange.Day(*l.AvailableTo)) {
		return false
	}
	return true
}
