package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"rentalhub/internal/app/commands"
	"rentalhub/internal/app/uow"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// TxConfig tunes the transaction middleware. Retries applies to units that
// fail with uow.ErrWriteConflict.
type TxConfig struct {
	Options TxOptionsProvider
	Retries int
	Backoff time.Duration
	Logger  *slog.Logger
}

// Transaction runs every command inside its own unit of work and commits it
// when the handler succeeds.
func Transaction(factory uow.UoWFactory, cfg TxConfig) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			var lastErr error
			for attempt := 0; attempt <= cfg.Retries; attempt++ {
				if attempt > 0 {
					if err := sleep(ctx, cfg.backoff(attempt)); err != nil {
						return nil, err
					}
					if cfg.Logger != nil {
						cfg.Logger.Debug("retrying command after write conflict", "command", cmd.Key(), "attempt", attempt)
					}
				}
				res, err := runInUnit(ctx, factory, cfg.options(cmd), nextFn, cmd)
				if err == nil {
					return res, nil
				}
				if !errors.Is(err, uow.ErrWriteConflict) {
					return nil, err
				}
				lastErr = err
			}
			return nil, errors.Join(uow.ErrTemporarilyUnavailable, lastErr)
		})
	}
}

func runInUnit(ctx context.Context, factory uow.UoWFactory, opts uow.TxOptions, next commandFunc, cmd commands.Command) (any, error) {
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return nil, uow.Unavailable(err)
	}
	execCtx := uow.Bind(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()

	res, err := next(execCtx, cmd)
	if err != nil {
		return nil, err
	}
	if err := unit.Commit(execCtx); err != nil {
		return nil, err
	}
	committed = true
	return res, nil
}

func (c TxConfig) options(cmd commands.Command) uow.TxOptions {
	if c.Options == nil {
		return uow.TxOptions{}
	}
	return c.Options(cmd)
}

func (c TxConfig) backoff(attempt int) time.Duration {
	base := c.Backoff
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	return base * time.Duration(attempt)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
