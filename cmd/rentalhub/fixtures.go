package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	domainlistings "rentalhub/internal/domain/listings"
	domainrange "rentalhub/internal/domain/shared/daterange"
	"rentalhub/internal/domain/shared/money"
)

type listingFixture struct {
	ID            string `json:"id"`
	Owner         string `json:"owner"`
	Title         string `json:"title"`
	PriceCents    int64  `json:"price_cents"`
	Currency      string `json:"currency"`
	PriceUnit     string `json:"price_unit"`
	AvailableFrom string `json:"available_from"`
	AvailableTo   string `json:"available_to"`
	Suspended     bool   `json:"suspended"`
}

// loadListingFixtures seeds the catalog from a JSON file. A missing file is
// not an error; invalid entries are logged and skipped.
func loadListingFixtures(ctx context.Context, path string, catalog listingSaver, logger *slog.Logger) error {
	if strings.TrimSpace(path) == "" || catalog == nil {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("listing fixtures file not found, skipping", "path", path)
			return nil
		}
		return fmt.Errorf("read fixtures: %w", err)
	}
	if len(data) == 0 {
		logger.Warn("listing fixtures file empty", "path", path)
		return nil
	}

	var fixtures []listingFixture
	if err := json.Unmarshal(data, &fixtures); err != nil {
		return fmt.Errorf("decode fixtures: %w", err)
	}

	imported := 0
	for _, fx := range fixtures {
		listing, err := fx.toListing()
		if err != nil {
			logger.Error("fixture invalid", "listing_id", fx.ID, "error", err)
			continue
		}
		if err := catalog.Save(ctx, listing); err != nil {
			logger.Error("cannot store fixture listing", "listing_id", fx.ID, "error", err)
			continue
		}
		imported++
	}
	logger.Info("listing fixtures imported", "count", imported, "path", path)
	return nil
}

func (fx listingFixture) toListing() (*domainlistings.Listing, error) {
	price, err := money.New(fx.PriceCents, fx.Currency)
	if err != nil {
		return nil, err
	}
	unit, err := domainlistings.ParsePriceUnit(fx.PriceUnit)
	if err != nil {
		return nil, err
	}
	from, err := fixtureDay(fx.AvailableFrom)
	if err != nil {
		return nil, err
	}
	to, err := fixtureDay(fx.AvailableTo)
	if err != nil {
		return nil, err
	}
	return domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:            domainlistings.ListingID(fx.ID),
		Owner:         fx.Owner,
		Title:         fx.Title,
		Price:         price,
		PriceUnit:     unit,
		AvailableFrom: from,
		AvailableTo:   to,
		Suspended:     fx.Suspended,
	})
}

func fixtureDay(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := domainrange.ParseDay(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
