package uow

import (
	"context"

	"carhire/internal/domain/booking"
	"carhire/internal/domain/fleet"
	"carhire/internal/domain/pricing"
)

// UnitOfWork groups the repositories touched by one command.
type UnitOfWork interface {
	Cars() fleet.Repository
	Bookings() booking.Repository
	PriceTable() pricing.TableRepository
	PricingConfig() pricing.ConfigRepository

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Factory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

type TxOptions struct {
	ReadOnly bool
}
