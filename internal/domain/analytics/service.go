package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
	cacheTTL        = 5 * time.Minute
)

// Service computes analytics aggregates. Reads are point-in-time over
// already-committed data; eventually-consistent snapshots are acceptable
// since the figures are historical.
type Service struct {
	repo  Repository
	cache Cache // nil disables caching
	now   func() time.Time
}

// NewService creates an analytics Service. cache may be nil.
func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// RevenueTrend returns revenue buckets for the window in ascending time
// order. With dense set, every bucket in the window is emitted, zero-valued
// when it saw no delivered orders; otherwise absent buckets mean zero.
// Average order value is 0 for empty buckets, never a division error.
func (s *Service) RevenueTrend(ctx context.Context, start, end time.Time, g Granularity, dense bool) ([]Bucket, error) {
	if _, err := ParseGranularity(string(g)); err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}

	cacheKey := fmt.Sprintf("analytics:trend:%d:%d:%s:%t", start.Unix(), end.Unix(), g, dense)
	var cached []Bucket
	if ok := s.fromCache(ctx, cacheKey, &cached); ok {
		return cached, nil
	}

	sparse, err := s.repo.RevenueBuckets(ctx, start, end, g)
	if err != nil {
		return nil, errors.Wrap(err, "revenue buckets")
	}

	for i := range sparse {
		sparse[i].AvgOrderValue = avgOrderValue(sparse[i].Revenue, sparse[i].OrderCount)
	}

	buckets := sparse
	if dense {
		buckets = fillDense(sparse, start, end, g)
	}

	s.toCache(ctx, cacheKey, buckets)
	return buckets, nil
}

// TopProducts ranks products by units sold across delivered orders in the
// window, ties broken by revenue, truncated to limit.
func (s *Service) TopProducts(ctx context.Context, start, end time.Time, limit int) ([]ProductSales, error) {
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}

	cacheKey := fmt.Sprintf("analytics:top:%d:%d:%d", start.Unix(), end.Unix(), limit)
	var cached []ProductSales
	if ok := s.fromCache(ctx, cacheKey, &cached); ok {
		return cached, nil
	}

	ranked, err := s.repo.TopProducts(ctx, start, end, limit)
	if err != nil {
		return nil, errors.Wrap(err, "top products")
	}

	s.toCache(ctx, cacheKey, ranked)
	return ranked, nil
}

// Overview assembles the dashboard for the trailing periodDays window,
// fetching the independent aggregates concurrently.
func (s *Service) Overview(ctx context.Context, periodDays int) (*Overview, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	end := s.now()
	start := end.AddDate(0, 0, -periodDays)

	var (
		g        errgroup.Group
		statuses *StatusCounts
		trend    []Bucket
		top      []ProductSales
	)
	g.Go(func() error {
		var err error
		statuses, err = s.repo.StatusCounts(ctx, start, end)
		return errors.Wrap(err, "status counts")
	})
	g.Go(func() error {
		var err error
		trend, err = s.RevenueTrend(ctx, start, end, GranularityDay, false)
		return err
	})
	g.Go(func() error {
		var err error
		top, err = s.TopProducts(ctx, start, end, defaultTopLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Overview{
		Statuses:    *statuses,
		Trend:       trend,
		TopProducts: top,
	}, nil
}

// avgOrderValue divides revenue by count, defined as 0 for empty buckets.
func avgOrderValue(revenue decimal.Decimal, count int) decimal.Decimal {
	if count == 0 {
		return decimal.Zero
	}
	return revenue.Div(decimal.NewFromInt(int64(count))).Round(2)
}

// fillDense expands a sparse ascending series into one bucket per period in
// [start, end], inserting zero buckets where the series has gaps.
func fillDense(sparse []Bucket, start, end time.Time, g Granularity) []Bucket {
	byKey := make(map[string]Bucket, len(sparse))
	for _, b := range sparse {
		byKey[b.Key] = b
	}

	var out []Bucket
	for t := truncate(start, g); !t.After(end); t = next(t, g) {
		key := bucketKey(t, g)
		if b, ok := byKey[key]; ok {
			out = append(out, b)
			continue
		}
		out = append(out, Bucket{
			Key:           key,
			Start:         t,
			Revenue:       decimal.Zero,
			AvgOrderValue: decimal.Zero,
		})
	}
	return out
}

func (s *Service) fromCache(ctx context.Context, key string, out any) bool {
	if s.cache == nil {
		return false
	}
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (s *Service) toCache(ctx context.Context, key string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	// Cache writes are best effort; a miss just means recomputation.
	_ = s.cache.Set(ctx, key, raw, cacheTTL)
}
