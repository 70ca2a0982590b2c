package service

import (
	"context"
	"sync"
	"time"

	id "kycflow/pkg/domain"
	dErrors "kycflow/pkg/domain-errors"
)

// DefaultTxTimeout bounds one transaction, including a screening call.
const DefaultTxTimeout = 60 * time.Second

// KeyedTx is the in-memory CaseStoreTx: one semaphore per application id,
// created on first use and dropped once no caller holds or waits on it.
type KeyedTx struct {
	store   Store
	timeout time.Duration

	mu    sync.Mutex
	locks map[id.ApplicationID]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedTx(store Store, timeout time.Duration) *KeyedTx {
	if timeout <= 0 {
		timeout = DefaultTxTimeout
	}
	return &KeyedTx{store: store, timeout: timeout, locks: make(map[id.ApplicationID]*keyedLock)}
}

func (t *KeyedTx) RunInTx(ctx context.Context, appID id.ApplicationID, fn func(ctx context.Context, store Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	release, err := t.acquire(ctx, appID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted while waiting for application lock")
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	return fn(ctx, t.store)
}

func (t *KeyedTx) acquire(ctx context.Context, appID id.ApplicationID) (func(), error) {
	t.mu.Lock()
	l, ok := t.locks[appID]
	if !ok {
		l = &keyedLock{sem: make(chan struct{}, 1)}
		t.locks[appID] = l
	}
	l.refs++
	t.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
		return func() {
			<-l.sem
			t.unref(appID, l)
		}, nil
	case <-ctx.Done():
		t.unref(appID, l)
		return nil, ctx.Err()
	}
}

func (t *KeyedTx) unref(appID id.ApplicationID, l *keyedLock) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(t.locks, appID)
	}
}
