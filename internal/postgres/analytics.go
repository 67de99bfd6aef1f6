package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/halchash/storefront/internal/domain/analytics"
	"github.com/halchash/storefront/internal/domain/order"
)

const (
	// Net revenue excludes shipping; only delivered orders count.
	revenueBucketsSQL = `SELECT to_char(created_at, $3) AS bucket,
			date_trunc($4, created_at) AS start,
			COALESCE(SUM(total_amount - shipping_cost), 0) AS revenue,
			count(*) AS order_count
		FROM orders
		WHERE fulfillment_status = 'delivered' AND created_at >= $1 AND created_at <= $2
		GROUP BY 1, 2
		ORDER BY 2`

	topProductsSQL = `SELECT oi.product_id, oi.product_name,
			SUM(oi.quantity)::bigint AS quantity_sold,
			SUM(oi.line_subtotal) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.fulfillment_status = 'delivered' AND o.created_at >= $1 AND o.created_at <= $2
		GROUP BY oi.product_id, oi.product_name
		ORDER BY quantity_sold DESC, revenue DESC
		LIMIT $3`

	statusCountsSQL = `SELECT fulfillment_status, count(*)
		FROM orders
		WHERE created_at >= $1 AND created_at <= $2
		GROUP BY fulfillment_status`
)

var _ analytics.Repository = (*AnalyticsRepository)(nil)

// AnalyticsRepository computes aggregates over the order ledger in SQL.
type AnalyticsRepository struct {
	db querier
}

// NewAnalyticsRepository returns an AnalyticsRepository that uses the given
// pool.
func NewAnalyticsRepository(pool *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{db: pool}
}

// RevenueBuckets returns the sparse revenue series for the window, one row
// per bucket that saw delivered orders, in ascending time order.
func (r *AnalyticsRepository) RevenueBuckets(ctx context.Context, start, end time.Time, g analytics.Granularity) ([]analytics.Bucket, error) {
	keyFormat, truncUnit := bucketSQLParams(g)

	rows, err := r.db.Query(ctx, revenueBucketsSQL, start, end, keyFormat, truncUnit)
	if err != nil {
		return nil, errors.Wrap(err, "revenue buckets")
	}

	buckets, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.Bucket, error) {
		var (
			b     analytics.Bucket
			count int64
		)
		if err := row.Scan(&b.Key, &b.Start, &b.Revenue, &count); err != nil {
			return analytics.Bucket{}, err
		}
		b.OrderCount = int(count)
		return b, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "revenue buckets")
	}
	return buckets, nil
}

// TopProducts ranks products by units sold across delivered orders in the
// window.
func (r *AnalyticsRepository) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]analytics.ProductSales, error) {
	rows, err := r.db.Query(ctx, topProductsSQL, start, end, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}

	ranked, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (analytics.ProductSales, error) {
		var (
			p   analytics.ProductSales
			qty int64
		)
		if err := row.Scan(&p.ProductID, &p.ProductName, &qty, &p.Revenue); err != nil {
			return analytics.ProductSales{}, err
		}
		p.QuantitySold = int(qty)
		return p, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}
	return ranked, nil
}

// StatusCounts breaks the window's orders down by fulfillment state.
func (r *AnalyticsRepository) StatusCounts(ctx context.Context, start, end time.Time) (*analytics.StatusCounts, error) {
	rows, err := r.db.Query(ctx, statusCountsSQL, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "status counts")
	}
	defer rows.Close()

	var counts analytics.StatusCounts
	for rows.Next() {
		var (
			status order.FulfillmentStatus
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "status counts")
		}
		counts.Placed += int(n)
		switch status {
		case order.FulfillmentPending:
			counts.Pending = int(n)
		case order.FulfillmentShipping:
			counts.Shipping = int(n)
		case order.FulfillmentDelivered:
			counts.Delivered = int(n)
		case order.FulfillmentCancelled:
			counts.Cancelled = int(n)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "status counts")
	}
	return &counts, nil
}

// bucketSQLParams maps a granularity to its to_char format and date_trunc
// unit. Formats line up with the bucket keys the service computes for dense
// fill.
func bucketSQLParams(g analytics.Granularity) (keyFormat, truncUnit string) {
	switch g {
	case analytics.GranularityMonth:
		return "YYYY-MM", "month"
	case analytics.GranularityYear:
		return "YYYY", "year"
	default:
		return "YYYY-MM-DD", "day"
	}
}
