package main

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"kycflow/internal/kyc/service"
	"kycflow/internal/kyc/store"
	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
	"kycflow/pkg/platform/sentinel"
	txcontext "kycflow/pkg/platform/tx"
)

// kycPostgresTx runs fn on one transaction holding the application row lock.
type kycPostgresTx struct {
	db      *sql.DB
	store   *store.Postgres
	timeout time.Duration
}

func newKYCPostgresTx(db *sql.DB, st *store.Postgres, timeout time.Duration) *kycPostgresTx {
	return &kycPostgresTx{db: db, store: st, timeout: timeout}
}

func (t *kycPostgresTx) RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context, store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = service.DefaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	ctx = txcontext.WithTx(ctx, tx)
	if err := t.store.LockApplication(ctx, appID); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return dErrors.Wrap(err, dErrors.CodeTimeout, "timed out waiting for application lock")
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "application not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "lock application")
	}

	if err := fn(ctx, t.store); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "commit transaction")
	}
	return nil
}
