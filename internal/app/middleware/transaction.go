package middleware

import (
	"context"

	"carhire/internal/app/commands"
	"carhire/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs each command inside a unit of work committed on success.
func Transaction(factory uow.Factory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			_, execCtx, commit, finish, err := uow.Begin(ctx, factory, opts)
			if err != nil {
				return nil, err
			}
			defer finish()

			res, err := next.Dispatch(execCtx, cmd)
			if err != nil {
				return nil, err
			}
			if err := commit(); err != nil {
				return nil, err
			}
			return res, nil
		})
	}
}
