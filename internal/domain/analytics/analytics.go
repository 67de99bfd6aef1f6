// Package analytics is the read-side projection over committed orders:
// time-bucketed revenue, order counts, and top-product rankings. It takes no
// locks and never mutates the ledger.
package analytics

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Granularity selects the time bucket size for revenue trends.
type Granularity string

const (
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
	GranularityYear  Granularity = "year"
)

var (
	// ErrInvalidGranularity is returned for an unknown bucket size.
	ErrInvalidGranularity = errors.New("granularity must be day, month or year")
	// ErrInvalidWindow is returned when the window end precedes its start.
	ErrInvalidWindow = errors.New("window end must not precede start")
)

// Bucket is one time slot of the revenue trend. Revenue is realized net
// revenue: sum of (total_amount - shipping_cost) over delivered orders only.
type Bucket struct {
	Key           string          `json:"bucket"`
	Start         time.Time       `json:"start"`
	Revenue       decimal.Decimal `json:"revenue"`
	OrderCount    int             `json:"order_count"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
}

// ProductSales is one row of the top-products ranking, aggregated from the
// item snapshots of delivered orders.
type ProductSales struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

// StatusCounts breaks placed orders down by fulfillment state.
type StatusCounts struct {
	Placed    int `json:"placed"`
	Pending   int `json:"pending"`
	Shipping  int `json:"shipping"`
	Delivered int `json:"delivered"`
	Cancelled int `json:"cancelled"`
}

// Overview is the dashboard aggregate for a trailing window.
type Overview struct {
	Statuses    StatusCounts   `json:"statuses"`
	Trend       []Bucket       `json:"revenue_trend"`
	TopProducts []ProductSales `json:"top_products"`
}

// Repository reads aggregates from committed ledger entries. Implementations
// return sparse bucket series (absent buckets mean zero) in ascending time
// order, with OrderCount and Revenue populated; derived fields are computed
// by the service.
type Repository interface {
	RevenueBuckets(ctx context.Context, start, end time.Time, g Granularity) ([]Bucket, error)
	TopProducts(ctx context.Context, start, end time.Time, limit int) ([]ProductSales, error)
	StatusCounts(ctx context.Context, start, end time.Time) (*StatusCounts, error)
}

// Cache is an optional read-through cache for aggregate results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ParseGranularity validates a wire value.
func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case GranularityDay, GranularityMonth, GranularityYear:
		return Granularity(s), nil
	}
	return "", ErrInvalidGranularity
}

// bucketKey formats the bucket label for a granularity.
func bucketKey(t time.Time, g Granularity) string {
	switch g {
	case GranularityMonth:
		return t.Format("2006-01")
	case GranularityYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}

// truncate aligns t to the start of its bucket.
func truncate(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	case GranularityYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
	default:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	}
}

// next advances t by one bucket.
func next(t time.Time, g Granularity) time.Time {
	switch g {
	case GranularityMonth:
		return t.AddDate(0, 1, 0)
	case GranularityYear:
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}
