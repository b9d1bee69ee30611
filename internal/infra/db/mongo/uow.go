package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.mongodb.org/mongo-driver/x/mongo/driver/session"

	"rentalhub/internal/app/uow"
	domainbooking "rentalhub/internal/domain/booking"
	domainlistings "rentalhub/internal/domain/listings"
)

const codeWriteConflict = 112

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database
	// Locker optionally serializes listing writers across processes before
	// the transaction touches the guard document.
	Locker uow.ListingLocker

	Listings *ListingCatalog
	Bookings *BookingRepository
}

func NewFactory(db *mongo.Database, locker uow.ListingLocker) Factory {
	return Factory{
		DB:       db,
		Locker:   locker,
		Listings: NewListingCatalog(db),
		Bookings: NewBookingRepository(db),
	}
}

// Begin starts a session; writable units also start a snapshot transaction.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, uow.Unavailable(err)
	}
	unit := &Unit{
		db:       f.DB,
		session:  session,
		locker:   f.Locker,
		listings: f.Listings,
		bookings: f.Bookings,
		readOnly: opts.ReadOnly,
	}
	if opts.ReadOnly {
		return unit, nil
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, uow.Unavailable(err)
	}
	return unit, nil
}

type Unit struct {
	db       *mongo.Database
	session  mongo.Session
	locker   uow.ListingLocker
	readOnly bool

	listings *ListingCatalog
	bookings *BookingRepository

	releases []func(context.Context) error
	hooks    []func(context.Context)
	locked   map[domainlistings.ListingID]struct{}
}

func (u *Unit) Listings() domainlistings.Catalog   { return u.listings }
func (u *Unit) Bookings() domainbooking.Repository { return u.bookings }

// LockListing bumps the listing's guard document inside the transaction.
// Two writers on the same listing cannot both commit: the later one fails
// with a write conflict and is retried by the caller.
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
	sessCtx := mongo.NewSessionContext(ctx, u.session)
	_, err := u.db.Collection(guardsCollection).UpdateOne(sessCtx,
		bson.M{"_id": string(id)},
		bson.M{"$inc": bson.M{"seq": 1}, "$set": bson.M{"touched_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return uow.ErrWriteConflict
		}
		return mapTxnError(err)
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
	defer u.finish(ctx)
	if u.readOnly {
		return nil
	}
	if err := u.session.CommitTransaction(ctx); err != nil {
		return mapTxnError(err)
	}
	for _, hook := range u.hooks {
		hook(ctx)
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.finish(ctx)
	if u.readOnly {
		return nil
	}
	err := u.session.AbortTransaction(ctx)
	if errors.Is(err, session.ErrAbortAfterCommit) || errors.Is(err, session.ErrAbortTwice) {
		return nil
	}
	return err
}

func (u *Unit) finish(ctx context.Context) {
	u.session.EndSession(ctx)
	u.hooks = nil
	for i := len(u.releases) - 1; i >= 0; i-- {
		_ = u.releases[i](context.WithoutCancel(ctx))
	}
	u.releases = nil
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

// mapTxnError turns transient transaction failures into retryable conflicts
// and everything else into temporary unavailability.
// findOneError turns a FindOne miss into notFound and classifies everything
// else like any other read in a unit.
func findOneError(err, notFound error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return notFound
	}
	return mapTxnError(err)
}

func mapTxnError(err error) error {
	if err == nil {
		return nil
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && (labeled.HasErrorLabel("TransientTransactionError") || labeled.HasErrorLabel("UnknownTransactionCommitResult")) {
		return errors.Join(uow.ErrWriteConflict, err)
	}
	var server mongo.ServerError
	if errors.As(err, &server) && server.HasErrorCode(codeWriteConflict) {
		return errors.Join(uow.ErrWriteConflict, err)
	}
	return uow.Unavailable(err)
}

var (
	_ uow.UoWFactory     = Factory{}
	_ uow.UnitOfWork     = (*Unit)(nil)
	_ uow.AfterCommitter = (*Unit)(nil)
)
