package middleware

import (
	"context"
	"log/slog"

	"carhire/internal/app/commands"
	"carhire/internal/app/outbox"
)

// OutboxFlush flushes box after every successful command. The command has
// already committed at that point, so a failed flush is logged and the
// result is still returned; undelivered records stay queued.
func OutboxFlush(box outbox.Outbox, logger *slog.Logger) CommandMiddleware {
	if box == nil {
		panic("middleware: outbox required")
	}
	return func(next commands.Bus) commands.Bus {
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			res, err := next.Dispatch(ctx, cmd)
			if err != nil {
				return nil, err
			}
			if err := box.Flush(ctx); err != nil && logger != nil {
				logger.WarnContext(ctx, "outbox flush failed", "command", cmd.Key(), "error", err)
			}
			return res, nil
		})
	}
}
