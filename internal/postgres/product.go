package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/catalog"
	"github.com/halchash/storefront/internal/domain/order"
)

const productColumns = `id, name, price, discount_price, stock_quantity, is_active`

const (
	getProductSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	decrementStockSQL = `UPDATE products SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2`

	restoreStockSQL = `UPDATE products SET stock_quantity = stock_quantity + $2
		WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, discount_price, stock_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			discount_price = EXCLUDED.discount_price,
			stock_quantity = EXCLUDED.stock_quantity,
			is_active = EXCLUDED.is_active`
)

var (
	_ catalog.Repository = (*ProductRepository)(nil)
	_ order.StockTx      = (*ProductRepository)(nil)
)

// ProductRepository implements catalog.Repository and the transactional stock
// operations backed by PostgreSQL.
type ProductRepository struct {
	db querier
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{db: pool}
}

// GetByID returns a single product. Returns catalog.ErrNotFound when no
// matching product exists.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.db.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns the products matching the given IDs. Missing IDs are
// simply absent from the result; callers decide whether that is an error.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.db.Query(ctx, getProductsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	return products, nil
}

// Decrement atomically subtracts qty from the product's stock. The WHERE
// clause makes the decrement conditional, so two orders racing for the last
// units can never both succeed.
func (r *ProductRepository) Decrement(ctx context.Context, productID string, qty int) (bool, error) {
	tag, err := r.db.Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return false, errors.Wrapf(err, "decrement stock for %q", productID)
	}
	return tag.RowsAffected() == 1, nil
}

// Restore adds qty units back to the product's stock.
func (r *ProductRepository) Restore(ctx context.Context, productID string, qty int) error {
	if _, err := r.db.Exec(ctx, restoreStockSQL, productID, qty); err != nil {
		return errors.Wrapf(err, "restore stock for %q", productID)
	}
	return nil
}

// Upsert inserts or replaces a catalog product. Used by seeding tools.
func (r *ProductRepository) Upsert(ctx context.Context, p catalog.Product) error {
	_, err := r.db.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Price, p.DiscountPrice, p.StockQuantity, p.Active,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert product %q", p.ID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var (
		p        catalog.Product
		discount *decimal.Decimal
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &discount, &p.StockQuantity, &p.Active)
	if err != nil {
		return catalog.Product{}, err
	}
	p.DiscountPrice = discount
	return p, nil
}
