package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"rentalhub/internal/domain/listings"
	"rentalhub/internal/domain/shared/money"
)

// ListingCatalog reads the catalog collection owned by the listing service.
type ListingCatalog struct {
	col *mongo.Collection
}

func NewListingCatalog(db *mongo.Database) *ListingCatalog {
	return &ListingCatalog{col: db.Collection(listingsCollection)}
}

func (c *ListingCatalog) ByID(ctx context.Context, id listings.ListingID) (*listings.Listing, error) {
	var doc listingDocument
	if err := c.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		return nil, findOneError(err, listings.ErrListingNotFound)
	}
	return doc.toListing(), nil
}

// Save upserts a listing; used by fixture loading.
func (c *ListingCatalog) Save(ctx context.Context, l *listings.Listing) error {
	doc := listingDocument{
		ID:            string(l.ID),
		OwnerID:       l.Owner,
		Title:         l.Title,
		Price:         l.Price,
		PriceUnit:     string(l.PriceUnit),
		AvailableFrom: l.AvailableFrom,
		AvailableTo:   l.AvailableTo,
		State:         string(l.State),
	}
	_, err := c.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

type listingDocument struct {
	ID            string      `bson:"_id"`
	OwnerID       string      `bson:"owner_id"`
	Title         string      `bson:"title"`
	Price         money.Money `bson:"price"`
	PriceUnit     string      `bson:"price_unit"`
	AvailableFrom *time.Time  `bson:"available_from,omitempty"`
	AvailableTo   *time.Time  `bson:"available_to,omitempty"`
	State         string      `bson:"state"`
}

func (d listingDocument) toListing() *listings.Listing {
	unit, err := listings.ParsePriceUnit(d.PriceUnit)
	if err != nil {
		unit = listings.UnitDay
	}
	state := listings.ListingState(d.State)
	if state == "" {
		state = listings.ListingActive
	}
	return &listings.Listing{
		ID:            listings.ListingID(d.ID),
		Owner:         d.OwnerID,
		Title:         d.Title,
		Price:         d.Price,
		PriceUnit:     unit,
		AvailableFrom: utcPtr(d.AvailableFrom),
		AvailableTo:   utcPtr(d.AvailableTo),
		State:         state,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

var _ listings.Catalog = (*ListingCatalog)(nil)
