package postgresengine

import (
	"context"
	"errors"

	"github.com/doug-martin/goqu/v9"

	"github.com/AntonStoeckl/library-catalog-go/postgresengine/internal/adapters"
)

const (
	defaultLockName = "library.outbox.dispatch"

	logMsgLockReleaseFailed = "releasing the advisory lock failed"
)

// AdvisoryLocker implements outbox.CycleLocker with a transaction-scoped advisory lock.
// The lock is held by an open transaction for the duration of a cycle, so it is released
// even if the process dies mid-cycle.
type AdvisoryLocker struct {
	engine *Engine
	name   string
}

// NewAdvisoryLocker creates an AdvisoryLocker. Dispatchers sharing one outbox must use the same name.
func NewAdvisoryLocker(engine *Engine, name string) (*AdvisoryLocker, error) {
	if engine == nil {
		return nil, ErrNilDatabaseConnection
	}

	if name == "" {
		name = defaultLockName
	}

	return &AdvisoryLocker{engine: engine, name: name}, nil
}

// TryLock implements outbox.CycleLocker.
func (l *AdvisoryLocker) TryLock(ctx context.Context) (func(), bool, error) {
	dbTx, err := l.engine.db.BeginTx(ctx)
	if err != nil {
		return nil, false, errors.Join(ErrTransactionFailed, err)
	}

	acquired := false
	stmt := builder().Select(goqu.Func("pg_try_advisory_xact_lock", goqu.Func("hashtext", l.name)))

	err = l.engine.queryRows(ctx, dbTx, "try advisory lock", stmt, func(rows adapters.DBRows) error {
		return rows.Scan(&acquired)
	})

	if err != nil || !acquired {
		if rollbackErr := dbTx.Rollback(ctx); rollbackErr != nil {
			l.engine.logWarn(ctx, logMsgRollbackFailed, logAttrError, rollbackErr.Error())
		}

		return nil, false, err
	}

	release := func() {
		// the cycle's context may be cancelled already
		if rollbackErr := dbTx.Rollback(context.WithoutCancel(ctx)); rollbackErr != nil {
			l.engine.logWarn(ctx, logMsgLockReleaseFailed, logAttrError, rollbackErr.Error())
		}
	}

	return release, true, nil
}

