package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/halchash/storefront/internal/domain/catalog"
	"github.com/halchash/storefront/internal/domain/coupon"
	"github.com/halchash/storefront/internal/domain/pricing"
)

// numberAllocRetries bounds how often creation retries an order number
// uniqueness collision before surfacing ErrConflict.
const numberAllocRetries = 3

// CreateRequest is the input for placing an order.
type CreateRequest struct {
	Customer     ShippingContact
	Items        []pricing.LineRequest
	DeliveryArea pricing.DeliveryArea
	CouponCode   string
	UserID       *string
}

// Service drives order creation and the lifecycle state machines. All
// multi-record writes go through the TxManager so a failure at any stage
// leaves no partial order visible.
type Service struct {
	products  catalog.Repository
	calc      *pricing.Calculator
	coupons   *coupon.Validator
	ledger    Ledger
	tx        TxManager
	numPrefix string
	now       func() time.Time
}

// NewService creates an order Service with the required dependencies.
// numPrefix is the human-facing order number prefix (e.g. "HAL").
func NewService(
	products catalog.Repository,
	calc *pricing.Calculator,
	coupons *coupon.Validator,
	ledger Ledger,
	tx TxManager,
	numPrefix string,
) *Service {
	return &Service{
		products:  products,
		calc:      calc,
		coupons:   coupons,
		ledger:    ledger,
		tx:        tx,
		numPrefix: numPrefix,
		now:       time.Now,
	}
}

// Create validates and prices the cart, optionally redeems a coupon, and
// commits the order with all its item snapshots as one atomic unit.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, []Item, error) {
	if err := validateContact(req.Customer); err != nil {
		return nil, nil, err
	}
	if len(req.Items) == 0 {
		return nil, nil, ErrEmptyItems
	}

	ids := make([]string, len(req.Items))
	for i, item := range req.Items {
		ids[i] = item.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]catalog.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	quote, err := s.calc.Quote(productMap, req.Items, req.DeliveryArea)
	if err != nil {
		return nil, nil, err
	}

	// Pre-check the coupon outside the transaction for a cheap rejection.
	// The usage-limit guarantee comes from ConsumeSlot inside the
	// transaction, not from this read.
	var (
		cpn      *coupon.Coupon
		discount = decimal.Zero
	)
	if req.CouponCode != "" {
		cpn, discount, err = s.coupons.Validate(ctx, req.CouponCode, quote.Subtotal)
		if err != nil {
			return nil, nil, err
		}
	}

	total := quote.Subtotal.Add(quote.ShippingCost).Sub(discount)

	var (
		created *Order
		items   []Item
	)
	for attempt := 0; ; attempt++ {
		created, items, err = s.createOnce(ctx, req, quote, cpn, discount, total)
		if err == nil {
			return created, items, nil
		}
		if !errors.Is(err, ErrConflict) || attempt+1 >= numberAllocRetries {
			return nil, nil, err
		}
	}
}

// createOnce runs a single atomic creation attempt.
func (s *Service) createOnce(ctx context.Context, req CreateRequest, quote *pricing.Quote, cpn *coupon.Coupon, discount, total decimal.Decimal) (*Order, []Item, error) {
	var (
		created *Order
		items   []Item
	)
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		seq, err := tx.Orders().NextOrderNumber(ctx)
		if err != nil {
			return errors.Wrap(err, "allocate order number")
		}

		o := &Order{
			ID:                uuid.New().String(),
			OrderNumber:       fmt.Sprintf("%s-%06d", s.numPrefix, seq),
			UserID:            req.UserID,
			Shipping:          req.Customer,
			DeliveryArea:      req.DeliveryArea,
			Subtotal:          quote.Subtotal,
			ShippingCost:      quote.ShippingCost,
			DiscountAmount:    discount,
			TotalAmount:       total,
			FulfillmentStatus: FulfillmentPending,
			PaymentStatus:     PaymentPending,
		}
		if cpn != nil {
			o.CouponID = &cpn.ID
		}

		if err := tx.Orders().Insert(ctx, o); err != nil {
			return err
		}

		lines := make([]Item, len(quote.Lines))
		for i, line := range quote.Lines {
			lines[i] = Item{
				ID:           uuid.New().String(),
				OrderID:      o.ID,
				ProductID:    line.ProductID,
				ProductName:  line.ProductName,
				UnitPrice:    line.UnitPrice,
				Quantity:     line.Quantity,
				LineSubtotal: line.Subtotal,
			}
			ok, err := tx.Stock().Decrement(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return errors.Wrap(err, "decrement stock")
			}
			if !ok {
				return &InsufficientStockError{ProductID: line.ProductID}
			}
		}
		if err := tx.Orders().InsertItems(ctx, lines); err != nil {
			return errors.Wrap(err, "insert order items")
		}

		if cpn != nil {
			usage := coupon.Usage{
				ID:             uuid.New().String(),
				CouponID:       cpn.ID,
				OrderID:        o.ID,
				UserID:         req.UserID,
				DiscountAmount: discount,
			}
			if err := tx.Coupons().ConsumeSlot(ctx, cpn.ID, usage); err != nil {
				return err
			}
		}

		created = o
		items = lines
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return created, items, nil
}

// SetFulfillmentStatus applies a fulfillment transition. Cancelling an order
// restores the stock its items consumed, in the same transaction.
func (s *Service) SetFulfillmentStatus(ctx context.Context, orderID string, status FulfillmentStatus) (*Order, error) {
	var updated *Order
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransitionFulfillment(o.FulfillmentStatus, status) {
			return &InvalidTransitionError{
				Field: "fulfillment_status",
				From:  string(o.FulfillmentStatus),
				To:    string(status),
			}
		}

		if err := tx.Orders().UpdateFulfillment(ctx, orderID, status); err != nil {
			return errors.Wrap(err, "update fulfillment status")
		}

		if status == FulfillmentCancelled {
			items, err := tx.Orders().ListItems(ctx, orderID)
			if err != nil {
				return errors.Wrap(err, "list order items")
			}
			for _, item := range items {
				if err := tx.Stock().Restore(ctx, item.ProductID, item.Quantity); err != nil {
					return errors.Wrap(err, "restore stock")
				}
			}
		}

		o.FulfillmentStatus = status
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// SetPaymentStatus applies a payment transition. Refunds go through Refund,
// which records the refund amount; a bare transition to refunded is allowed
// only from paid and records the full total.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID string, status PaymentStatus) (*Order, error) {
	if status == PaymentRefunded {
		return s.Refund(ctx, orderID, nil, "")
	}

	var updated *Order
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if !CanTransitionPayment(o.PaymentStatus, status) {
			return &InvalidTransitionError{
				Field: "payment_status",
				From:  string(o.PaymentStatus),
				To:    string(status),
			}
		}
		if err := tx.Orders().UpdatePayment(ctx, orderID, status); err != nil {
			return errors.Wrap(err, "update payment status")
		}
		o.PaymentStatus = status
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Refund marks a paid order refunded, recording the amount (the full total
// when amount is nil) and reason. Refunding an already-refunded order is
// idempotent: the existing refund record is returned unchanged. Fulfillment
// state is never touched.
func (s *Service) Refund(ctx context.Context, orderID string, amount *decimal.Decimal, reason string) (*Order, error) {
	var updated *Order
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.PaymentStatus == PaymentRefunded {
			updated = o
			return nil
		}
		if !CanTransitionPayment(o.PaymentStatus, PaymentRefunded) {
			return &InvalidTransitionError{
				Field: "payment_status",
				From:  string(o.PaymentStatus),
				To:    string(PaymentRefunded),
			}
		}

		amt := o.TotalAmount
		if amount != nil {
			if amount.IsNegative() || amount.GreaterThan(o.TotalAmount) {
				return &ValidationError{
					Field:  "refund_amount",
					Reason: fmt.Sprintf("must be between 0 and %s", o.TotalAmount),
				}
			}
			amt = *amount
		}

		if err := tx.Orders().SetRefund(ctx, orderID, amt, reason); err != nil {
			return errors.Wrap(err, "set refund")
		}

		o.PaymentStatus = PaymentRefunded
		o.RefundAmount = &amt
		o.RefundReason = reason
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ValidateCoupon checks a coupon against a subtotal without consuming a
// usage slot.
func (s *Service) ValidateCoupon(ctx context.Context, code string, subtotal decimal.Decimal) (decimal.Decimal, error) {
	_, discount, err := s.coupons.Validate(ctx, code, subtotal)
	return discount, err
}

// RedeemCoupon applies a coupon to an existing, still-unpaid order: it
// validates eligibility against the order's subtotal, consumes a usage slot,
// records the usage, and updates the order's discount and total, all in one
// transaction.
func (s *Service) RedeemCoupon(ctx context.Context, code, orderID string, userID *string) (*coupon.Usage, error) {
	var usage *coupon.Usage
	err := s.tx.WithinTx(ctx, func(tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if o.CouponID != nil {
			return coupon.ErrAlreadyRedeemed
		}
		if o.PaymentStatus != PaymentPending {
			return &ValidationError{
				Field:  "payment_status",
				Reason: "coupons can only be applied before payment",
			}
		}

		cpn, err := tx.Coupons().FindByCode(ctx, coupon.NormalizeCode(code))
		if err != nil {
			return err
		}
		discount, err := coupon.Validate(cpn, o.Subtotal, s.now())
		if err != nil {
			return err
		}

		u := coupon.Usage{
			ID:             uuid.New().String(),
			CouponID:       cpn.ID,
			OrderID:        o.ID,
			UserID:         userID,
			DiscountAmount: discount,
		}
		if err := tx.Coupons().ConsumeSlot(ctx, cpn.ID, u); err != nil {
			return err
		}

		total := o.Subtotal.Add(o.ShippingCost).Sub(discount)
		if err := tx.Orders().AttachCoupon(ctx, o.ID, cpn.ID, discount, total); err != nil {
			return errors.Wrap(err, "attach coupon")
		}

		usage = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// Get returns an order with its item snapshots.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, []Item, error) {
	o, err := s.ledger.Get(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.ledger.ListItems(ctx, orderID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list order items")
	}
	return o, items, nil
}

// ListByUser returns a user's orders, optionally filtered by fulfillment
// status.
func (s *Service) ListByUser(ctx context.Context, userID string, status *FulfillmentStatus) ([]Order, error) {
	return s.ledger.ListByUser(ctx, userID, status)
}

// List returns orders matching the admin filter plus the total match count.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 50
	}
	return s.ledger.List(ctx, filter)
}

// Invoice builds the billing projection for an order.
func (s *Service) Invoice(ctx context.Context, orderID string) (*Invoice, error) {
	o, items, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &Invoice{
		OrderNumber:    o.OrderNumber,
		OrderDate:      o.CreatedAt,
		Shipping:       o.Shipping,
		Items:          items,
		Subtotal:       o.Subtotal,
		ShippingCost:   o.ShippingCost,
		DiscountAmount: o.DiscountAmount,
		TotalAmount:    o.TotalAmount,
		CouponID:       o.CouponID,
	}, nil
}

func validateContact(c ShippingContact) error {
	fields := []struct {
		name  string
		value string
	}{
		{"shipping_name", c.Name},
		{"shipping_email", c.Email},
		{"shipping_phone", c.Phone},
		{"shipping_address", c.Address},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.name, Reason: "is required"}
		}
	}
	if !strings.Contains(c.Email, "@") {
		return &ValidationError{Field: "shipping_email", Reason: "is not a valid email address"}
	}
	return nil
}
