package uow

import (
	"context"
	"errors"
)

var ErrUnitOfWorkMissing = errors.New("uow: unit of work missing from context")

type ctxKey struct{}

func ContextWithUnitOfWork(ctx context.Context, unit UnitOfWork) context.Context {
	return context.WithValue(ctx, ctxKey{}, unit)
}

func FromContext(ctx context.Context) (UnitOfWork, bool) {
	unit, ok := ctx.Value(ctxKey{}).(UnitOfWork)
	return unit, ok
}

// contextInjector is implemented by units that carry a driver session in the context.
type contextInjector interface {
	InjectContext(context.Context) context.Context
}

// Begin returns the unit already bound to ctx, or starts one from factory.
// The returned finish function rolls back a unit started here unless Commit
// was called through commit. Both are no-ops for a unit inherited from ctx.
func Begin(ctx context.Context, factory Factory, opts TxOptions) (unit UnitOfWork, execCtx context.Context, commit func() error, finish func(), err error) {
	if existing, ok := FromContext(ctx); ok {
		return existing, ctx, func() error { return nil }, func() {}, nil
	}
	if factory == nil {
		return nil, ctx, nil, nil, ErrUnitOfWorkMissing
	}
	unit, err = factory.Begin(ctx, opts)
	if err != nil {
		return nil, ctx, nil, nil, err
	}
	execCtx = ctx
	if injector, ok := unit.(contextInjector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = ContextWithUnitOfWork(execCtx, unit)
	committed := false
	commit = func() error {
		if err := unit.Commit(execCtx); err != nil {
			return err
		}
		committed = true
		return nil
	}
	finish = func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}
	return unit, execCtx, commit, finish, nil
}

// InjectContext lets callers reuse a unit's driver session on ctx.
func InjectContext(ctx context.Context, unit UnitOfWork) context.Context {
	if injector, ok := unit.(contextInjector); ok {
		return injector.InjectContext(ctx)
	}
	return ctx
}
