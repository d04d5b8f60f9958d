package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"carhire/internal/app/uow"
	domainbooking "carhire/internal/domain/booking"
	domainfleet "carhire/internal/domain/fleet"
	domainpricing "carhire/internal/domain/pricing"
)

// Factory wires Mongo transactions into the generic UnitOfWork interface.
type Factory struct {
	DB *mongo.Database

	CarsRepo     domainfleet.Repository
	BookingsRepo domainbooking.Repository
	TableRepo    domainpricing.TableRepository
	ConfigRepo   domainpricing.ConfigRepository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func NewFactory(db *mongo.Database) Factory {
	return Factory{
		DB:           db,
		CarsRepo:     NewCarRepository(db),
		BookingsRepo: NewBookingRepository(db),
		TableRepo:    NewPriceTableRepository(db),
		ConfigRepo:   NewConfigRepository(db),
	}
}

// Begin starts a MongoDB session/transaction. Write units use snapshot reads
// with majority writes so concurrent bookings of one car conflict.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().SetReadConcern(readconcern.Snapshot()).SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = options.Transaction().SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	return &Unit{
		session:  session,
		cars:     f.CarsRepo,
		bookings: f.BookingsRepo,
		table:    f.TableRepo,
		config:   f.ConfigRepo,
	}, nil
}

type Unit struct {
	session mongo.Session

	cars     domainfleet.Repository
	bookings domainbooking.Repository
	table    domainpricing.TableRepository
	config   domainpricing.ConfigRepository
}

func (u *Unit) Cars() domainfleet.Repository {
	return u.cars
}

func (u *Unit) Bookings() domainbooking.Repository {
	return u.bookings
}

func (u *Unit) PriceTable() domainpricing.TableRepository {
	return u.table
}

func (u *Unit) PricingConfig() domainpricing.ConfigRepository {
	return u.config
}

func (u *Unit) Commit(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	if err := u.session.CommitTransaction(ctx); err != nil {
		var serverErr mongo.ServerError
		if errors.As(err, &serverErr) && serverErr.HasErrorLabel("TransientTransactionError") {
			return errors.Join(domainbooking.ErrConcurrentUpdate, err)
		}
		return err
	}
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures the Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	return mongo.NewSessionContext(ctx, u.session)
}

var _ uow.Factory = Factory{}
