// Package order holds the order ledger: immutable order and line-item
// snapshots, the fulfillment and payment state machines, and the service
// that drives an order through its lifecycle.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/coupon"
	"github.com/halchash/storefront/internal/domain/pricing"
)

var (
	// ErrNotFound is returned when a referenced order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrConflict is returned when order number allocation keeps colliding
	// after the bounded retries.
	ErrConflict = errors.New("order number conflict")
	// ErrEmptyItems is returned when an order request carries no line items.
	ErrEmptyItems = errors.New("at least one item is required")
)

// ValidationError indicates malformed or missing input. It is reported to
// the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError indicates an illegal state-machine move. The order
// is left unchanged.
type InvalidTransitionError struct {
	Field string
	From  string
	To    string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("illegal %s transition %s -> %s", e.Field, e.From, e.To)
}

// InsufficientStockError indicates a line item asked for more units than the
// product has in stock.
type InsufficientStockError struct {
	ProductID string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s", e.ProductID)
}

// ShippingContact is the customer contact snapshot copied onto the order at
// creation time, independent of any later profile edit.
type ShippingContact struct {
	Name    string
	Email   string
	Phone   string
	Address string
}

// Order is an immutable pricing snapshot plus mutable lifecycle state. The
// monetary fields are computed once at creation and never recomputed from
// live catalog prices; TotalAmount == Subtotal + ShippingCost -
// DiscountAmount holds at every committed state. Status fields change only
// through the Service. Orders are never deleted.
type Order struct {
	ID                string
	OrderNumber       string
	UserID            *string
	Shipping          ShippingContact
	DeliveryArea      pricing.DeliveryArea
	Subtotal          decimal.Decimal
	ShippingCost      decimal.Decimal
	DiscountAmount    decimal.Decimal
	TotalAmount       decimal.Decimal
	FulfillmentStatus FulfillmentStatus
	PaymentStatus     PaymentStatus
	CouponID          *string
	RefundAmount      *decimal.Decimal
	RefundReason      string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Item is a frozen line-item snapshot: product name and price captured at
// order time, immune to later catalog edits.
type Item struct {
	ID           string
	OrderID      string
	ProductID    string
	ProductName  string
	UnitPrice    decimal.Decimal
	Quantity     int
	LineSubtotal decimal.Decimal
}

// Invoice is a read-side projection of an order for billing documents.
type Invoice struct {
	OrderNumber    string
	OrderDate      time.Time
	Shipping       ShippingContact
	Items          []Item
	Subtotal       decimal.Decimal
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
	CouponID       *string
}

// ListFilter narrows the admin order listing.
type ListFilter struct {
	Fulfillment *FulfillmentStatus
	Payment     *PaymentStatus
	Search      string // matches order number, shipping name or email
	Page        int
	Limit       int
}

// Ledger provides read access to committed orders.
type Ledger interface {
	Get(ctx context.Context, id string) (*Order, error)
	ListItems(ctx context.Context, orderID string) ([]Item, error)
	ListByUser(ctx context.Context, userID string, status *FulfillmentStatus) ([]Order, error)
	List(ctx context.Context, filter ListFilter) ([]Order, int, error)
}

// LedgerTx is the transaction-scoped write half of the ledger.
type LedgerTx interface {
	// NextOrderNumber draws the next value from the order number sequence.
	// The sequence is the serialization point that keeps allocation
	// collision-free under concurrent creation.
	NextOrderNumber(ctx context.Context) (int64, error)

	// Insert persists a new order. Returns ErrConflict on an order number
	// uniqueness violation.
	Insert(ctx context.Context, o *Order) error

	// InsertItems persists the order's line-item snapshots.
	InsertItems(ctx context.Context, items []Item) error

	// GetForUpdate loads an order with a row lock held for the rest of the
	// transaction. Returns ErrNotFound when the order does not exist.
	GetForUpdate(ctx context.Context, id string) (*Order, error)

	ListItems(ctx context.Context, orderID string) ([]Item, error)

	UpdateFulfillment(ctx context.Context, id string, status FulfillmentStatus) error
	UpdatePayment(ctx context.Context, id string, status PaymentStatus) error

	// SetRefund marks the order refunded and records the refund amount and
	// reason. Fulfillment state is untouched.
	SetRefund(ctx context.Context, id string, amount decimal.Decimal, reason string) error

	// AttachCoupon records a post-creation redemption: coupon reference,
	// discount, and the recomputed total.
	AttachCoupon(ctx context.Context, id, couponID string, discount, total decimal.Decimal) error
}

// StockTx adjusts product stock within a transaction.
type StockTx interface {
	// Decrement atomically subtracts qty from the product's stock and
	// reports false when the product has fewer than qty units left. The
	// conditional form closes the oversell race between concurrent orders.
	Decrement(ctx context.Context, productID string, qty int) (bool, error)

	// Restore adds qty back, used when an order is cancelled.
	Restore(ctx context.Context, productID string, qty int) error
}

// Tx bundles the transaction-scoped stores an order mutation may touch.
type Tx interface {
	Orders() LedgerTx
	Coupons() coupon.Store
	Stock() StockTx
}

// TxManager runs a function inside a single storage transaction. If fn
// returns an error nothing is committed; the caller never observes partial
// state.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
