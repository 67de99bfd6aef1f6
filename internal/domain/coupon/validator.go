package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Discount computes the amount a coupon takes off the given subtotal.
// Percentage coupons are capped by MaxDiscount when set; flat coupons never
// exceed the subtotal. Eligibility is checked separately by Validate.
func Discount(c *Coupon, subtotal decimal.Decimal) decimal.Decimal {
	switch {
	case c.PercentOff != nil:
		amount := subtotal.Mul(*c.PercentOff).Div(hundred)
		if c.MaxDiscount != nil && amount.GreaterThan(*c.MaxDiscount) {
			amount = *c.MaxDiscount
		}
		return amount.Round(2)
	case c.AmountOff != nil:
		return decimal.Min(*c.AmountOff, subtotal).Round(2)
	default:
		return decimal.Zero
	}
}

// Validate checks a coupon's eligibility against a subtotal at the given
// instant and returns the discount amount. It does not consume a usage slot;
// redemption is a separate, atomic operation on the Store.
func Validate(c *Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, ErrNotActive
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return decimal.Zero, ErrExpired
	}
	if subtotal.LessThan(c.MinPurchase) {
		return decimal.Zero, &MinPurchaseError{Code: c.Code, MinPurchase: c.MinPurchase}
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return decimal.Zero, ErrExhausted
	}
	return Discount(c, subtotal), nil
}

// Validator resolves a coupon code to a discount amount for a subtotal.
type Validator struct {
	store     Store
	prefilter *Prefilter
	now       func() time.Time
}

// NewValidator creates a Validator backed by the given store. The prefilter
// is optional; when set, codes it has never seen are rejected without a
// store lookup.
func NewValidator(store Store, prefilter *Prefilter) *Validator {
	return &Validator{store: store, prefilter: prefilter, now: time.Now}
}

// Validate looks up the coupon for code and checks its eligibility against
// the subtotal, returning the coupon and the discount it would grant.
func (v *Validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (*Coupon, decimal.Decimal, error) {
	code = NormalizeCode(code)
	if v.prefilter != nil && !v.prefilter.MayContain(code) {
		return nil, decimal.Zero, ErrNotFound
	}

	c, err := v.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, decimal.Zero, ErrNotFound
		}
		return nil, decimal.Zero, errors.Wrap(err, "lookup coupon")
	}

	discount, err := Validate(c, subtotal, v.now())
	if err != nil {
		return nil, decimal.Zero, err
	}
	return c, discount, nil
}
