package application

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wyfcoding/papertrading/internal/marketdata/domain"
)

// fakeProvider 可编程的数据源桩
type fakeProvider struct {
	name      string
	available bool
	price     decimal.Decimal
	err       error
}

func (f *fakeProvider) Name() string      { return f.name }
func (f *fakeProvider) IsAvailable() bool { return f.available }

func (f *fakeProvider) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Quote{Symbol: symbol, Price: f.price, Source: f.name}, nil
}

func (f *fakeProvider) GetHistorical(ctx context.Context, symbol string, interval domain.Interval, size int) ([]domain.Candle, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.Candle{{Close: f.price}}, nil
}

func (f *fakeProvider) GetMovers(ctx context.Context) (*domain.Movers, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Movers{}, nil
}

// fakeClock 可推进的测试时钟
type fakeClock struct {
	current time.Time
}

func (c *fakeClock) now() time.Time          { return c.current }
func (c *fakeClock) advance(d time.Duration) { c.current = c.current.Add(d) }

func TestRotatorCyclesInOrder(t *testing.T) {
	a := &fakeProvider{name: "a", available: true}
	b := &fakeProvider{name: "b", available: true}
	c := &fakeProvider{name: "c", available: true}
	rotator := NewRotator([]domain.Provider{a, b, c}, nil, nil, nil)

	var order []string
	for i := 0; i < 6; i++ {
		p, err := rotator.Next(context.Background())
		require.NoError(t, err)
		order = append(order, p.Name())
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, order)
}

func TestRotatorSkipsUnavailable(t *testing.T) {
	a := &fakeProvider{name: "a", available: false}
	b := &fakeProvider{name: "b", available: true}
	rotator := NewRotator([]domain.Provider{a, b}, nil, nil, nil)

	for i := 0; i < 3; i++ {
		p, err := rotator.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "b", p.Name())
	}
}

func TestRotatorNeverExceedsQuota(t *testing.T) {
	a := &fakeProvider{name: "a", available: true}
	b := &fakeProvider{name: "b", available: true}
	rotator := NewRotator([]domain.Provider{a, b}, map[string]int{"a": 2, "b": 3}, nil, nil)

	counts := map[string]int{}
	for i := 0; i < 5; i++ {
		p, err := rotator.Next(context.Background())
		require.NoError(t, err)
		counts[p.Name()]++
	}
	assert.Equal(t, 2, counts["a"])
	assert.Equal(t, 3, counts["b"])

	// 全部配额耗尽
	_, err := rotator.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrProvidersExhausted)
}

func TestRotatorZeroQuotaMeansUnlimited(t *testing.T) {
	a := &fakeProvider{name: "a", available: true}
	rotator := NewRotator([]domain.Provider{a}, map[string]int{"a": 0}, nil, nil)

	for i := 0; i < 100; i++ {
		_, err := rotator.Next(context.Background())
		require.NoError(t, err)
	}
}

func TestRotatorExhaustedWhenAllUnavailable(t *testing.T) {
	a := &fakeProvider{name: "a", available: false}
	b := &fakeProvider{name: "b", available: false}
	rotator := NewRotator([]domain.Provider{a, b}, nil, nil, nil)

	_, err := rotator.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrProvidersExhausted)
}

func TestRotatorQuotaResetsAfterWindow(t *testing.T) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	a := &fakeProvider{name: "a", available: true}
	rotator := NewRotator([]domain.Provider{a}, map[string]int{"a": 1}, nil, clock.now)

	_, err := rotator.Next(context.Background())
	require.NoError(t, err)
	_, err = rotator.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrProvidersExhausted)

	// 23 小时后仍在窗口内
	clock.advance(23 * time.Hour)
	_, err = rotator.Next(context.Background())
	assert.ErrorIs(t, err, domain.ErrProvidersExhausted)

	// 满 24 小时计数清零
	clock.advance(time.Hour)
	p, err := rotator.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", p.Name())
}

func TestRotatorStatus(t *testing.T) {
	clock := &fakeClock{current: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	a := &fakeProvider{name: "a", available: true}
	b := &fakeProvider{name: "b", available: false}
	rotator := NewRotator([]domain.Provider{a, b}, map[string]int{"a": 10}, nil, clock.now)

	_, err := rotator.Next(context.Background())
	require.NoError(t, err)

	statuses := rotator.Status()
	require.Len(t, statuses, 2)
	assert.Equal(t, "a", statuses[0].Name)
	assert.True(t, statuses[0].Available)
	assert.Equal(t, 1, statuses[0].Calls)
	assert.Equal(t, 10, statuses[0].Quota)
	assert.Equal(t, "2025-06-02T09:00:00Z", statuses[0].ResetAt)
	assert.False(t, statuses[1].Available)
}
