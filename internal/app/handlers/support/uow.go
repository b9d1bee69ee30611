package support

import (
	"context"
	"time"

	"rentalhub/internal/app/uow"
)

// BeginReadOnlyUnit reuses the unit in ctx or opens a read-only one. cleanup
// is nil when the unit came from ctx.
func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, nil, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, uow.Unavailable(err)
	}
	execCtx := uow.Bind(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(execCtx)
	}
	return newUnit, execCtx, cleanup, nil
}

// ManagedUnit is a writable unit a handler opened itself because no
// transaction middleware provided one.
type ManagedUnit struct {
	uow.UnitOfWork
	managed   bool
	committed bool
}

// BeginUnit reuses the unit in ctx or opens a writable one the caller must
// Finish.
func BeginUnit(ctx context.Context, factory uow.UoWFactory) (*ManagedUnit, context.Context, error) {
	if unit, ok := uow.FromContext(ctx); ok {
		return &ManagedUnit{UnitOfWork: unit}, ctx, nil
	}
	if factory == nil {
		return nil, ctx, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return nil, ctx, uow.Unavailable(err)
	}
	return &ManagedUnit{UnitOfWork: unit, managed: true}, uow.Bind(ctx, unit), nil
}

// Commit commits only units this handler opened.
func (m *ManagedUnit) Commit(ctx context.Context) error {
	if !m.managed {
		return nil
	}
	if err := m.UnitOfWork.Commit(ctx); err != nil {
		return err
	}
	m.committed = true
	return nil
}

// Finish rolls back a managed unit that was not committed.
func (m *ManagedUnit) Finish(ctx context.Context) {
	if m.managed && !m.committed {
		_ = m.UnitOfWork.Rollback(ctx)
	}
}

// Clock returns now in UTC, or time.Now when now is nil.
func Clock(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
