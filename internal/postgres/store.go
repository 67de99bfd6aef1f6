package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halchash/storefront/internal/domain/coupon"
	"github.com/halchash/storefront/internal/domain/order"
)

var _ order.TxManager = (*Store)(nil)

// Store runs order mutations inside database transactions.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx begins a transaction, hands transaction-scoped repositories to fn,
// and commits. Any error from fn rolls the transaction back.
func (s *Store) WithinTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(txScope{tx: tx})
	})
}

// txScope bundles repositories sharing one transaction.
type txScope struct {
	tx pgx.Tx
}

func (t txScope) Orders() order.LedgerTx { return &OrderRepository{db: t.tx} }
func (t txScope) Coupons() coupon.Store  { return &CouponRepository{db: t.tx} }
func (t txScope) Stock() order.StockTx   { return &ProductRepository{db: t.tx} }
