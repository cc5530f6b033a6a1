package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside a database transaction and passes the
// infra-defined handle (pgx.Tx for Postgres) as tx. Repositories accept a nil tx
// and then run on the pool.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type afterCommitKey struct{}

// CommitHooks collects callbacks registered while a transaction is open.
// A TransactionManager runs them once the commit has succeeded and drops them
// on rollback.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(ctx context.Context)
}

// WithCommitHooks returns a ctx that AfterCommit registers into.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	h := &CommitHooks{}
	return context.WithValue(ctx, afterCommitKey{}, h), h
}

// Run executes the registered callbacks in registration order. It is safe to
// call once; later calls are no-ops.
func (h *CommitHooks) Run(ctx context.Context) {
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

// AfterCommit defers fn until the enclosing transaction commits. Without an
// open transaction in ctx fn runs immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	h, ok := ctx.Value(afterCommitKey{}).(*CommitHooks)
	if !ok || h == nil {
		fn(ctx)
		return
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
}
