package pricing

import (
	"errors"
	"fmt"

	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

var ErrCurrencyUnset = errors.New("pricing: currency must be defined")

const (
	hoursPerDay  = 24
	daysPerWeek  = 7
	daysPerMonth = 30
)

// Quote is the price of a range at a listing's rate. Every inclusive day is
// billed at the rate; Units only restates the length in the listing's price
// unit for display.
type Quote struct {
	Days  int                `json:"days"`
	Unit  listings.PriceUnit `json:"unit"`
	Units int64              `json:"units"`
	Rate  money.Money        `json:"rate"`
	Total money.Money        `json:"total"`
}

// DisplayUnits expresses an inclusive day count in the given period.
// Partial weeks and months are rounded up.
func DisplayUnits(unit listings.PriceUnit, days int) (int64, error) {
	if days <= 0 {
		return 0, daterange.ErrInvalidRange
	}
	d := int64(days)
	switch unit {
	case listings.UnitDay, "":
		return d, nil
	case listings.UnitHour:
		return d * hoursPerDay, nil
	case listings.UnitWeek:
		return ceilDiv(d, daysPerWeek), nil
	case listings.UnitMonth:
		return ceilDiv(d, daysPerMonth), nil
	default:
		return 0, listings.ErrInvalidUnit
	}
}

func Calculate(rate money.Money, unit listings.PriceUnit, dr daterange.DateRange) (Quote, error) {
	if rate.Currency == "" {
		return Quote{}, ErrCurrencyUnset
	}
	if err := dr.Validate(); err != nil {
		return Quote{}, err
	}
	if unit == "" {
		unit = listings.UnitDay
	}
	days := dr.Days()
	units, err := DisplayUnits(unit, days)
	if err != nil {
		return Quote{}, err
	}
	total, err := rate.Multiply(int64(days))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: %w", daterange.ErrInvalidRange, err)
	}
	return Quote{
		Days:  days,
		Unit:  unit,
		Units: units,
		Rate:  rate,
		Total: total,
	}, nil
}

// ForListing quotes dr at the listing's current rate.
func ForListing(l *listings.Listing, dr daterange.DateRange) (Quote, error) {
	return Calculate(l.Price, l.PriceUnit, dr)
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
