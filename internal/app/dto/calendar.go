package dto

import (
	"rentalhub/internal/domain/availability"
	"rentalhub/internal/domain/pricing"
	"rentalhub/internal/domain/shared/daterange"
)

type CalendarBlock struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

type Calendar struct {
	ListingID     string          `json:"listing_id"`
	AvailableFrom string          `json:"available_from,omitempty"`
	AvailableTo   string          `json:"available_to,omitempty"`
	Blocks        []CalendarBlock `json:"blocks"`
}

func MapCalendar(cal *availability.Calendar) Calendar {
	if cal == nil {
		return Calendar{Blocks: []CalendarBlock{}}
	}
	blocks := make([]CalendarBlock, 0, len(cal.Blocks))
	for _, b := range cal.Blocks {
		blocks = append(blocks, CalendarBlock{
			From:   b.Range.Start.Format(daterange.Layout),
			To:     b.Range.End.Format(daterange.Layout),
			Reason: string(b.Reason),
		})
	}
	return Calendar{ListingID: string(cal.ListingID), Blocks: blocks}
}

type Quote struct {
	ListingID string   `json:"listing_id"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Available bool     `json:"available"`
	Reason    string   `json:"reason,omitempty"`
	Days      int      `json:"days"`
	PriceUnit string   `json:"price_unit"`
	Units     int64    `json:"units"`
	Rate      MoneyDTO `json:"rate"`
	Total     MoneyDTO `json:"total"`
}

func MapQuote(listingID string, dr daterange.DateRange, q pricing.Quote) Quote {
	return Quote{
		ListingID: listingID,
		StartDate: dr.Start.Format(daterange.Layout),
		EndDate:   dr.End.Format(daterange.Layout),
		Days:      q.Days,
		PriceUnit: string(q.Unit),
		Units:     q.Units,
		Rate:      MapMoney(q.Rate),
		Total:     MapMoney(q.Total),
	}
}
