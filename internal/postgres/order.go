package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/order"
)

const orderColumns = `id, order_number, user_id, shipping_name, shipping_email,
	shipping_phone, shipping_address, delivery_area, subtotal, shipping_cost,
	discount_amount, total_amount, fulfillment_status, payment_status,
	coupon_id, refund_amount, refund_reason, created_at, updated_at`

const (
	nextOrderNumberSQL = `SELECT nextval('order_number_seq')`

	insertOrderSQL = `INSERT INTO orders (id, order_number, user_id, shipping_name,
			shipping_email, shipping_phone, shipping_address, delivery_area,
			subtotal, shipping_cost, discount_amount, total_amount,
			fulfillment_status, payment_status, coupon_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	insertItemSQL = `INSERT INTO order_items (id, order_id, product_id, product_name,
			unit_price, quantity, line_subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderForUpdateSQL = getOrderSQL + ` FOR UPDATE`

	listItemsSQL = `SELECT id, order_id, product_id, product_name, unit_price,
			quantity, line_subtotal
		FROM order_items WHERE order_id = $1 ORDER BY created_at, id`

	listByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	updateFulfillmentSQL = `UPDATE orders SET fulfillment_status = $2, updated_at = now()
		WHERE id = $1`

	updatePaymentSQL = `UPDATE orders SET payment_status = $2, updated_at = now()
		WHERE id = $1`

	setRefundSQL = `UPDATE orders SET payment_status = 'refunded', refund_amount = $2,
			refund_reason = $3, updated_at = now()
		WHERE id = $1`

	attachCouponSQL = `UPDATE orders SET coupon_id = $2, discount_amount = $3,
			total_amount = $4, updated_at = now()
		WHERE id = $1`
)

var (
	_ order.Ledger   = (*OrderRepository)(nil)
	_ order.LedgerTx = (*OrderRepository)(nil)
)

// OrderRepository implements the order ledger backed by PostgreSQL. Created
// over a pool it serves reads; created inside a Store transaction it also
// serves the transactional write half.
type OrderRepository struct {
	db querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{db: pool}
}

// NextOrderNumber draws the next value from the order number sequence.
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.db.QueryRow(ctx, nextOrderNumberSQL).Scan(&seq); err != nil {
		return 0, errors.Wrap(err, "next order number")
	}
	return seq, nil
}

// Insert persists a new order. Returns order.ErrConflict when the order
// number is already taken.
func (r *OrderRepository) Insert(ctx context.Context, o *order.Order) error {
	_, err := r.db.Exec(ctx, insertOrderSQL,
		o.ID, o.OrderNumber, o.UserID,
		o.Shipping.Name, o.Shipping.Email, o.Shipping.Phone, o.Shipping.Address,
		o.DeliveryArea, o.Subtotal, o.ShippingCost, o.DiscountAmount, o.TotalAmount,
		o.FulfillmentStatus, o.PaymentStatus, o.CouponID,
	)
	if err != nil {
		if violatesUnique(err, "orders_order_number_key") {
			return order.ErrConflict
		}
		return errors.Wrapf(err, "insert order %q", o.OrderNumber)
	}
	return nil
}

// InsertItems persists the order's line-item snapshots.
func (r *OrderRepository) InsertItems(ctx context.Context, items []order.Item) error {
	for _, item := range items {
		_, err := r.db.Exec(ctx, insertItemSQL,
			item.ID, item.OrderID, item.ProductID, item.ProductName,
			item.UnitPrice, item.Quantity, item.LineSubtotal,
		)
		if err != nil {
			return errors.Wrapf(err, "insert item for product %q", item.ProductID)
		}
	}
	return nil
}

// Get returns an order by ID. Returns order.ErrNotFound when it does not
// exist.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, getOrderSQL, id)
}

// GetForUpdate loads an order with a row lock held for the rest of the
// transaction.
func (r *OrderRepository) GetForUpdate(ctx context.Context, id string) (*order.Order, error) {
	return r.get(ctx, getOrderForUpdateSQL, id)
}

func (r *OrderRepository) get(ctx context.Context, sql, id string) (*order.Order, error) {
	rows, err := r.db.Query(ctx, sql, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get order %q", id)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get order %q", id)
	}
	return &o, nil
}

// ListItems returns the line-item snapshots of an order.
func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.db.Query(ctx, listItemsSQL, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "list items for order %q", orderID)
	}

	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return nil, errors.Wrapf(err, "list items for order %q", orderID)
	}
	return items, nil
}

// ListByUser returns a user's orders, newest first, optionally filtered by
// fulfillment status.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, status *order.FulfillmentStatus) ([]order.Order, error) {
	sql := listByUserSQL
	args := []any{userID}
	if status != nil {
		sql = `SELECT ` + orderColumns + ` FROM orders
			WHERE user_id = $1 AND fulfillment_status = $2 ORDER BY created_at DESC`
		args = append(args, *status)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders for user %q", userID)
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders for user %q", userID)
	}
	return out, nil
}

// List returns orders matching the admin filter plus the total match count.
func (r *OrderRepository) List(ctx context.Context, filter order.ListFilter) ([]order.Order, int, error) {
	where, args := buildListFilter(filter)

	var total int
	countSQL := `SELECT count(*) FROM orders` + where
	if err := r.db.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	offset := (filter.Page - 1) * filter.Limit
	listSQL := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)+1, len(args)+2)
	args = append(args, filter.Limit, offset)

	rows, err := r.db.Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}

	out, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}
	return out, total, nil
}

// UpdateFulfillment sets the fulfillment status. Transition legality is
// enforced by the service before calling.
func (r *OrderRepository) UpdateFulfillment(ctx context.Context, id string, status order.FulfillmentStatus) error {
	if _, err := r.db.Exec(ctx, updateFulfillmentSQL, id, status); err != nil {
		return errors.Wrapf(err, "update fulfillment for order %q", id)
	}
	return nil
}

// UpdatePayment sets the payment status.
func (r *OrderRepository) UpdatePayment(ctx context.Context, id string, status order.PaymentStatus) error {
	if _, err := r.db.Exec(ctx, updatePaymentSQL, id, status); err != nil {
		return errors.Wrapf(err, "update payment for order %q", id)
	}
	return nil
}

// SetRefund marks the order refunded and records the refund amount and reason.
func (r *OrderRepository) SetRefund(ctx context.Context, id string, amount decimal.Decimal, reason string) error {
	if _, err := r.db.Exec(ctx, setRefundSQL, id, amount, reason); err != nil {
		return errors.Wrapf(err, "set refund for order %q", id)
	}
	return nil
}

// AttachCoupon records a post-creation redemption on the order.
func (r *OrderRepository) AttachCoupon(ctx context.Context, id, couponID string, discount, total decimal.Decimal) error {
	if _, err := r.db.Exec(ctx, attachCouponSQL, id, couponID, discount, total); err != nil {
		return errors.Wrapf(err, "attach coupon to order %q", id)
	}
	return nil
}

// buildListFilter assembles the WHERE clause for List from the filter fields.
func buildListFilter(filter order.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Fulfillment != nil {
		args = append(args, *filter.Fulfillment)
		conds = append(conds, fmt.Sprintf("fulfillment_status = $%d", len(args)))
	}
	if filter.Payment != nil {
		args = append(args, *filter.Payment)
		conds = append(conds, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(order_number ILIKE $%d OR shipping_name ILIKE $%d OR shipping_email ILIKE $%d)", n, n, n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o            order.Order
		refundReason *string
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID,
		&o.Shipping.Name, &o.Shipping.Email, &o.Shipping.Phone, &o.Shipping.Address,
		&o.DeliveryArea, &o.Subtotal, &o.ShippingCost, &o.DiscountAmount, &o.TotalAmount,
		&o.FulfillmentStatus, &o.PaymentStatus,
		&o.CouponID, &o.RefundAmount, &refundReason, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return order.Order{}, err
	}
	if refundReason != nil {
		o.RefundReason = *refundReason
	}
	return o, nil
}

func scanItem(row pgx.CollectableRow) (order.Item, error) {
	var it order.Item
	err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName,
		&it.UnitPrice, &it.Quantity, &it.LineSubtotal)
	if err != nil {
		return order.Item{}, err
	}
	return it, nil
}
