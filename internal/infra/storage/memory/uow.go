package memory

import (
	"context"
	"errors"
	"sync"

	"carhire/internal/app/uow"
	domainbooking "carhire/internal/domain/booking"
	domainfleet "carhire/internal/domain/fleet"
	domainpricing "carhire/internal/domain/pricing"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	CarsRepo     domainfleet.Repository
	BookingsRepo domainbooking.Repository
	TableRepo    domainpricing.TableRepository
	ConfigRepo   domainpricing.ConfigRepository
	// WriteLock, when set, serializes write units so that an availability
	// check and the booking it guards cannot interleave.
	WriteLock *sync.Mutex
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// NewFactory builds a factory with fresh stores and a write lock.
func NewFactory(cars *CarRepository, cfg domainpricing.Config) Factory {
	return Factory{
		CarsRepo:     cars,
		BookingsRepo: NewBookingRepository(),
		TableRepo:    NewPriceTable(),
		ConfigRepo:   NewConfigStore(cfg),
		WriteLock:    &sync.Mutex{},
	}
}

// Begin starts a unit. Writes are applied immediately; Rollback only releases the lock.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.CarsRepo == nil || f.BookingsRepo == nil || f.TableRepo == nil || f.ConfigRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	unit := &Unit{
		cars:     f.CarsRepo,
		bookings: f.BookingsRepo,
		table:    f.TableRepo,
		config:   f.ConfigRepo,
	}
	if !opts.ReadOnly && f.WriteLock != nil {
		f.WriteLock.Lock()
		unit.release = f.WriteLock.Unlock
	}
	return unit, nil
}

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	cars     domainfleet.Repository
	bookings domainbooking.Repository
	table    domainpricing.TableRepository
	config   domainpricing.ConfigRepository

	once    sync.Once
	release func()
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
	u.done()
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	u.done()
	return nil
}

func (u *Unit) done() {
	u.once.Do(func() {
		if u.release != nil {
			u.release()
		}
	})
}

var _ uow.Factory = Factory{}
