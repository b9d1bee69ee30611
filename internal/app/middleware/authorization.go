package middleware

import (
	"context"
	"errors"
	"strings"

	"rentalhub/internal/app/commands"
	"rentalhub/internal/app/queries"
)

var ErrUnauthenticated = errors.New("middleware: caller identity required")

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorScoped messages carry the id of the caller they act for.
type ActorScoped interface {
	ActorID() string
}

// RequireActor rejects actor-scoped messages that arrive without an identity.
// Per-booking rights are decided by the domain.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	scoped, ok := message.(ActorScoped)
	if !ok {
		return nil
	}
	if strings.TrimSpace(scoped.ActorID()) == "" {
		return ErrUnauthenticated
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
