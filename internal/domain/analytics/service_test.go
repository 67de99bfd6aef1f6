package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	buckets  []Bucket
	top      []ProductSales
	statuses StatusCounts

	bucketCalls int
	topLimit    int
}

func (m *mockRepo) RevenueBuckets(_ context.Context, _, _ time.Time, _ Granularity) ([]Bucket, error) {
	m.bucketCalls++
	return m.buckets, nil
}

func (m *mockRepo) TopProducts(_ context.Context, _, _ time.Time, limit int) ([]ProductSales, error) {
	m.topLimit = limit
	if limit < len(m.top) {
		return m.top[:limit], nil
	}
	return m.top, nil
}

func (m *mockRepo) StatusCounts(_ context.Context, _, _ time.Time) (*StatusCounts, error) {
	return &m.statuses, nil
}

type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: make(map[string][]byte)} }

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
	return nil
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestRevenueTrend_AvgOrderValue(t *testing.T) {
	// Two delivered orders (500,60) and (300,60): revenue 680, avg 340.
	repo := &mockRepo{buckets: []Bucket{
		{Key: "2025-03-01", Start: day(2025, 3, 1), Revenue: dec("680"), OrderCount: 2},
	}}
	svc := NewService(repo, nil)

	got, err := svc.RevenueTrend(context.Background(),
		day(2025, 3, 1), day(2025, 3, 1), GranularityDay, false)
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.True(t, dec("680").Equal(got[0].Revenue))
	assert.True(t, dec("340").Equal(got[0].AvgOrderValue), "avg = %s", got[0].AvgOrderValue)
}

func TestRevenueTrend_DenseFillsZeroBuckets(t *testing.T) {
	repo := &mockRepo{buckets: []Bucket{
		{Key: "2025-03-01", Start: day(2025, 3, 1), Revenue: dec("680"), OrderCount: 2},
		{Key: "2025-03-03", Start: day(2025, 3, 3), Revenue: dec("100"), OrderCount: 1},
	}}
	svc := NewService(repo, nil)

	got, err := svc.RevenueTrend(context.Background(),
		day(2025, 3, 1), day(2025, 3, 4), GranularityDay, true)
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, []string{"2025-03-01", "2025-03-02", "2025-03-03", "2025-03-04"},
		[]string{got[0].Key, got[1].Key, got[2].Key, got[3].Key})

	// Empty day reports zero revenue and zero average, not an error.
	assert.True(t, got[1].Revenue.IsZero())
	assert.Zero(t, got[1].OrderCount)
	assert.True(t, got[1].AvgOrderValue.IsZero())

	assert.True(t, dec("100").Equal(got[2].Revenue))
}

func TestRevenueTrend_SparseOmitsEmptyBuckets(t *testing.T) {
	repo := &mockRepo{buckets: []Bucket{
		{Key: "2025-03-01", Start: day(2025, 3, 1), Revenue: dec("50"), OrderCount: 1},
	}}
	svc := NewService(repo, nil)

	got, err := svc.RevenueTrend(context.Background(),
		day(2025, 3, 1), day(2025, 3, 31), GranularityDay, false)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestRevenueTrend_MonthAndYearBuckets(t *testing.T) {
	repo := &mockRepo{}
	svc := NewService(repo, nil)

	got, err := svc.RevenueTrend(context.Background(),
		day(2025, 1, 15), day(2025, 4, 2), GranularityMonth, true)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "2025-01", got[0].Key)
	assert.Equal(t, "2025-04", got[3].Key)

	got, err = svc.RevenueTrend(context.Background(),
		day(2023, 6, 1), day(2025, 2, 1), GranularityYear, true)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "2023", got[0].Key)
}

func TestRevenueTrend_InvalidInput(t *testing.T) {
	svc := NewService(&mockRepo{}, nil)

	_, err := svc.RevenueTrend(context.Background(),
		day(2025, 3, 1), day(2025, 3, 2), "hourly", false)
	require.ErrorIs(t, err, ErrInvalidGranularity)

	_, err = svc.RevenueTrend(context.Background(),
		day(2025, 3, 2), day(2025, 3, 1), GranularityDay, false)
	require.ErrorIs(t, err, ErrInvalidWindow)
}

func TestRevenueTrend_CacheHitSkipsRepository(t *testing.T) {
	repo := &mockRepo{buckets: []Bucket{
		{Key: "2025-03-01", Start: day(2025, 3, 1), Revenue: dec("10"), OrderCount: 1},
	}}
	svc := NewService(repo, newMapCache())

	for i := 0; i < 3; i++ {
		got, err := svc.RevenueTrend(context.Background(),
			day(2025, 3, 1), day(2025, 3, 2), GranularityDay, false)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, dec("10").Equal(got[0].Revenue))
	}
	assert.Equal(t, 1, repo.bucketCalls)
}

func TestTopProducts_LimitBounds(t *testing.T) {
	repo := &mockRepo{top: []ProductSales{
		{ProductID: "a", QuantitySold: 10, Revenue: dec("100")},
		{ProductID: "b", QuantitySold: 5, Revenue: dec("500")},
	}}
	svc := NewService(repo, nil)

	got, err := svc.TopProducts(context.Background(), day(2025, 3, 1), day(2025, 3, 31), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultTopLimit, repo.topLimit, "zero limit uses the default")
	assert.Len(t, got, 2)

	_, err = svc.TopProducts(context.Background(), day(2025, 3, 1), day(2025, 3, 31), 5000)
	require.NoError(t, err)
	assert.Equal(t, maxTopLimit, repo.topLimit)
}

func TestOverview(t *testing.T) {
	repo := &mockRepo{
		buckets:  []Bucket{{Key: "2025-03-01", Start: day(2025, 3, 1), Revenue: dec("680"), OrderCount: 2}},
		top:      []ProductSales{{ProductID: "a", QuantitySold: 3, Revenue: dec("90")}},
		statuses: StatusCounts{Placed: 5, Delivered: 2, Pending: 3},
	}
	svc := NewService(repo, nil)
	svc.now = func() time.Time { return day(2025, 3, 31) }

	got, err := svc.Overview(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Statuses.Placed)
	require.Len(t, got.Trend, 1)
	assert.True(t, dec("340").Equal(got.Trend[0].AvgOrderValue))
	require.Len(t, got.TopProducts, 1)
}
