package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrNotActive is returned when the coupon has been deactivated.
	ErrNotActive = errors.New("coupon is not active")
	// ErrExpired is returned when the coupon is past its expiry timestamp.
	ErrExpired = errors.New("coupon expired")
	// ErrExhausted is returned when the usage limit has been consumed.
	ErrExhausted = errors.New("coupon usage limit reached")
	// ErrAlreadyRedeemed is returned when the user has already redeemed this
	// coupon on an earlier order.
	ErrAlreadyRedeemed = errors.New("coupon already redeemed by this user")
)

// MinPurchaseError indicates the order subtotal is below the coupon's
// minimum purchase threshold.
type MinPurchaseError struct {
	Code        string
	MinPurchase decimal.Decimal
}

func (e *MinPurchaseError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum purchase of %s", e.Code, e.MinPurchase)
}

// Coupon is a promotional discount rule. A coupon has exactly one discount
// mode: PercentOff or AmountOff, never both. UsageLimit of 0 means unlimited;
// UsedCount only ever increases, through successful redemption.
type Coupon struct {
	ID          string
	Code        string
	PercentOff  *decimal.Decimal
	AmountOff   *decimal.Decimal
	MaxDiscount *decimal.Decimal
	MinPurchase decimal.Decimal
	ExpiresAt   *time.Time
	UsageLimit  int
	UsedCount   int
	Active      bool
	CreatedAt   time.Time
}

// Usage is the append-only audit record proving a used_count increment is
// backed by a real order. Exactly one is created per successful redemption,
// in the same atomic unit as the counter increment.
type Usage struct {
	ID             string
	CouponID       string
	OrderID        string
	UserID         *string
	DiscountAmount decimal.Decimal
	UsedAt         time.Time
}

// NormalizeCode upper-cases and trims a coupon code. Codes are
// case-insensitive on the wire and stored normalized.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// New validates and builds a Coupon. Configuring both or neither discount
// mode is a configuration error caught here, not at redemption time.
func New(id, code string, percentOff, amountOff, maxDiscount *decimal.Decimal, minPurchase decimal.Decimal, expiresAt *time.Time, usageLimit int) (*Coupon, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, errors.New("coupon code is required")
	}
	if (percentOff == nil) == (amountOff == nil) {
		return nil, errors.New("coupon must have exactly one of percent_off or amount_off")
	}
	if percentOff != nil && (percentOff.IsNegative() || percentOff.GreaterThan(decimal.NewFromInt(100))) {
		return nil, errors.Errorf("percent_off %s out of range [0, 100]", percentOff)
	}
	if amountOff != nil && amountOff.IsNegative() {
		return nil, errors.Errorf("amount_off %s must not be negative", amountOff)
	}
	if amountOff != nil && maxDiscount != nil {
		return nil, errors.New("max_discount only applies to percentage coupons")
	}
	if usageLimit < 0 {
		return nil, errors.Errorf("usage_limit %d must not be negative", usageLimit)
	}

	return &Coupon{
		ID:          id,
		Code:        code,
		PercentOff:  percentOff,
		AmountOff:   amountOff,
		MaxDiscount: maxDiscount,
		MinPurchase: minPurchase,
		ExpiresAt:   expiresAt,
		UsageLimit:  usageLimit,
		Active:      true,
	}, nil
}

// Store provides coupon lookup and the one correctness-critical mutation:
// consuming a usage slot.
type Store interface {
	// FindByCode looks up a coupon by its normalized code.
	// Returns ErrNotFound when no coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// ConsumeSlot atomically increments the coupon's used_count and records
	// the usage, as one unit. The increment is conditional: it fails with
	// ErrExhausted when used_count has already reached the usage limit, so
	// concurrent redemptions can never jointly exceed it. Fails with
	// ErrAlreadyRedeemed when the usage's user has already redeemed this
	// coupon.
	ConsumeSlot(ctx context.Context, couponID string, usage Usage) error
}
