package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halchash/storefront/internal/domain/coupon"
)

const couponColumns = `id, code, percent_off, amount_off, max_discount, min_purchase,
	expires_at, usage_limit, used_count, is_active, created_at`

const (
	findCouponSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE code = $1`

	listCouponCodesSQL = `SELECT code FROM coupons WHERE is_active`

	// The WHERE clause makes the increment conditional on remaining capacity,
	// so concurrent redemptions can never jointly exceed usage_limit.
	consumeSlotSQL = `UPDATE coupons SET used_count = used_count + 1
		WHERE id = $1 AND (usage_limit = 0 OR used_count < usage_limit)`

	insertUsageSQL = `INSERT INTO coupon_usages (id, coupon_id, order_id, user_id, discount_amount)
		VALUES ($1, $2, $3, $4, $5)`

	couponExistsSQL = `SELECT EXISTS (SELECT 1 FROM coupons WHERE id = $1)`

	upsertCouponSQL = `INSERT INTO coupons (id, code, percent_off, amount_off, max_discount,
			min_purchase, expires_at, usage_limit, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (code) DO UPDATE SET
			percent_off = EXCLUDED.percent_off,
			amount_off = EXCLUDED.amount_off,
			max_discount = EXCLUDED.max_discount,
			min_purchase = EXCLUDED.min_purchase,
			expires_at = EXCLUDED.expires_at,
			usage_limit = EXCLUDED.usage_limit,
			is_active = EXCLUDED.is_active`
)

var (
	_ coupon.Store      = (*CouponRepository)(nil)
	_ coupon.CodeLister = (*CouponRepository)(nil)
)

// CouponRepository implements coupon.Store backed by PostgreSQL.
type CouponRepository struct {
	db querier
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{db: pool}
}

// FindByCode looks up a coupon by its normalized code.
// Returns coupon.ErrNotFound when no matching coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.db.Query(ctx, findCouponSQL, coupon.NormalizeCode(code))
	if err != nil {
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, errors.Wrapf(err, "find coupon %q", code)
	}
	return &c, nil
}

// ListCodes enumerates all active coupon codes, for warming the prefilter.
func (r *CouponRepository) ListCodes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, listCouponCodesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}

	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, errors.Wrap(err, "list coupon codes")
	}
	return codes, nil
}

// ConsumeSlot increments the coupon's used_count and records the usage. The
// increment only applies while capacity remains; the usage insert rides the
// same transaction, so the counter and its audit trail move together.
func (r *CouponRepository) ConsumeSlot(ctx context.Context, couponID string, usage coupon.Usage) error {
	tag, err := r.db.Exec(ctx, consumeSlotSQL, couponID)
	if err != nil {
		return errors.Wrapf(err, "consume slot for coupon %q", couponID)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, couponExistsSQL, couponID).Scan(&exists); err != nil {
			return errors.Wrapf(err, "check coupon %q", couponID)
		}
		if !exists {
			return coupon.ErrNotFound
		}
		return coupon.ErrExhausted
	}

	_, err = r.db.Exec(ctx, insertUsageSQL,
		usage.ID, couponID, usage.OrderID, usage.UserID, usage.DiscountAmount,
	)
	if err != nil {
		if violatesUnique(err, "coupon_usages_user_idx") ||
			violatesUnique(err, "coupon_usages_order_id_key") {
			return coupon.ErrAlreadyRedeemed
		}
		return errors.Wrapf(err, "record usage for coupon %q", couponID)
	}
	return nil
}

// Upsert inserts or replaces a coupon by code. Used by seeding and ingest
// tools; used_count is left untouched on conflict.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.db.Exec(ctx, upsertCouponSQL,
		c.ID, c.Code, c.PercentOff, c.AmountOff, c.MaxDiscount,
		c.MinPurchase, c.ExpiresAt, c.UsageLimit, c.Active,
	)
	if err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.PercentOff, &c.AmountOff, &c.MaxDiscount,
		&c.MinPurchase, &c.ExpiresAt, &c.UsageLimit, &c.UsedCount, &c.Active, &c.CreatedAt)
	if err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}
