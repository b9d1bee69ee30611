package bootstrap

import (
	"log/slog"
	"time"

	"rentalhub/internal/app/commands"
	availabilityapp "rentalhub/internal/app/handlers/availability"
	bookingapp "rentalhub/internal/app/handlers/booking"
	meapp "rentalhub/internal/app/handlers/me"
	"rentalhub/internal/app/middleware"
	"rentalhub/internal/app/outbox"
	"rentalhub/internal/app/queries"
	"rentalhub/internal/app/uow"
)

// Deps are the ports the booking engine runs on.
type Deps struct {
	UoW         uow.UoWFactory
	Outbox      outbox.Outbox
	Encoder     outbox.EventEncoder
	Idempotency middleware.IdempotencyStore
	TxRetries   int
	TxBackoff   time.Duration
	Now         func() time.Time
	Logger      *slog.Logger
}

type Buses struct {
	Commands commands.Bus
	Queries  queries.Bus
}

// Wire registers every handler and wraps both buses in their middleware.
func Wire(d Deps) Buses {
	encoder := d.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler(commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory: d.UoW, Outbox: d.Outbox, Encoder: encoder, Now: d.Now, Logger: d.Logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.TransitionBookingCommand{}.Key(), &bookingapp.TransitionBookingHandler{
		UoWFactory: d.UoW, Outbox: d.Outbox, Encoder: encoder, Now: d.Now, Logger: d.Logger,
	})
	commands.RegisterHandler(commandBus, bookingapp.SetPaymentStatusCommand{}.Key(), &bookingapp.SetPaymentStatusHandler{
		UoWFactory: d.UoW, Outbox: d.Outbox, Encoder: encoder, Now: d.Now, Logger: d.Logger,
	})

	cmdMiddleware := []middleware.CommandMiddleware{
		middleware.Logging(d.Logger),
		middleware.Authorization(middleware.RequireActor{}),
		middleware.Validation(middleware.SelfValidator{}),
	}
	if d.Idempotency != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.Idempotency(d.Idempotency, nil))
	}
	if d.Outbox != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.OutboxFlush(d.Outbox, d.Logger))
	}
	cmdMiddleware = append(cmdMiddleware, middleware.Transaction(d.UoW, middleware.TxConfig{
		Retries: d.TxRetries,
		Backoff: d.TxBackoff,
		Logger:  d.Logger,
	}))
	cmds := middleware.ChainCommands(commandBus, cmdMiddleware...)

	completer := &bookingapp.Completer{Commands: cmds, Logger: d.Logger}

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler(queryBus, bookingapp.GetBookingQuery{}.Key(), &bookingapp.GetBookingHandler{
		UoWFactory: d.UoW, Completer: completer, Now: d.Now,
	})
	queries.RegisterHandler(queryBus, meapp.ListBookingsQuery{}.Key(), &meapp.ListBookingsHandler{
		UoWFactory: d.UoW, Completer: completer, Now: d.Now, Logger: d.Logger,
	})
	queries.RegisterHandler(queryBus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{
		UoWFactory: d.UoW,
	})
	queries.RegisterHandler(queryBus, availabilityapp.QuoteQuery{}.Key(), &availabilityapp.QuoteHandler{
		UoWFactory: d.UoW, Now: d.Now,
	})
	qs := middleware.ChainQueries(queryBus,
		middleware.QueryAuthorization(middleware.RequireActor{}),
		middleware.QueryValidation(middleware.SelfValidator{}),
	)

	return Buses{Commands: cmds, Queries: qs}
}
