package application

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/trading/domain"
	"github.com/wyfcoding/papertrading/internal/trading/infrastructure/persistence/memory"
)

// stubQuotes 固定价格的行情桩，prices 为空的标的返回取数失败
type stubQuotes struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	calls  map[string]int
}

func newStubQuotes(prices map[string]decimal.Decimal) *stubQuotes {
	return &stubQuotes{prices: prices, calls: make(map[string]int)}
}

func (s *stubQuotes) GetQuote(ctx context.Context, symbol string) (*mddomain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[symbol]++
	price, ok := s.prices[symbol]
	if !ok {
		return nil, mddomain.ErrProvidersExhausted
	}
	return &mddomain.Quote{Symbol: symbol, Price: price}, nil
}

func (s *stubQuotes) callCount(symbol string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[symbol]
}

type capturePublisher struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (p *capturePublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func newTestEngine(prices map[string]decimal.Decimal) (*Engine, *memory.OrderRepository, *memory.PositionRepository, *capturePublisher) {
	orders := memory.NewOrderRepository()
	positions := memory.NewPositionRepository()
	publisher := &capturePublisher{}
	engine := NewEngine(orders, positions, newStubQuotes(prices), publisher, nil)
	return engine, orders, positions, publisher
}

func TestPlaceMarketOrderBuyFillsAtCurrentPrice(t *testing.T) {
	engine, orders, positions, publisher := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})

	result, err := engine.PlaceMarketOrder(context.Background(), PlaceOrderCommand{
		UserID:   "u1",
		Symbol:   "AAPL",
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, result.Status)
	assert.True(t, result.FilledPrice.Equal(decimal.NewFromInt(150)))

	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, order.Status)

	position, err := positions.Get(context.Background(), "u1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, position.AverageCost.Equal(decimal.NewFromInt(150)))

	require.Len(t, publisher.events, 1)
	assert.Equal(t, domain.OrderEventFilled, publisher.events[0].Type)
}

func TestPlaceMarketOrderRejectsWhenQuotesUnavailable(t *testing.T) {
	engine, orders, _, _ := newTestEngine(map[string]decimal.Decimal{})

	result, err := engine.PlaceMarketOrder(context.Background(), PlaceOrderCommand{
		UserID:   "u1",
		Symbol:   "AAPL",
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, result.Status)
	assert.Contains(t, result.Message, "market data unavailable")

	// 订单以终态落账，不会停留在挂单状态
	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
	assert.NotEmpty(t, order.Reason)
}

func TestPlaceMarketOrderSellWithoutHoldingsRejected(t *testing.T) {
	engine, orders, _, _ := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(150)})

	result, err := engine.PlaceMarketOrder(context.Background(), PlaceOrderCommand{
		UserID:   "u1",
		Symbol:   "AAPL",
		Side:     domain.OrderSideSell,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, result.Status)
	assert.Contains(t, result.Message, "insufficient holdings")

	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, order.Status)
}

func TestPlacePendingOrderStaysPending(t *testing.T) {
	engine, orders, _, _ := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(105)})

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:     "u1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(100),
		LimitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, result.Status)

	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.True(t, order.IsPending())
}

func TestPlacePendingOrderRejectsMarketType(t *testing.T) {
	engine, _, _, _ := newTestEngine(nil)

	_, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:   "u1",
		Symbol:   "AAPL",
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.NewFromInt(1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidOrder)
}

func TestEvaluateOrderLimitBuy(t *testing.T) {
	engine, orders, positions, _ := newTestEngine(nil)

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:     "u1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(100),
		LimitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)

	// 现价高于限价，不触发
	evalResult, err := engine.EvaluateOrder(context.Background(), order, decimal.NewFromInt(105))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, evalResult.Status)

	// 现价 99 低于限价 100：按限价成交
	order, err = orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	evalResult, err = engine.EvaluateOrder(context.Background(), order, decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, evalResult.Status)
	assert.True(t, evalResult.FilledPrice.Equal(decimal.NewFromInt(100)))

	position, err := positions.Get(context.Background(), "u1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.True(t, position.AverageCost.Equal(decimal.NewFromInt(100)))
}

func TestEvaluateOrderStopSellFillsAtCurrentPrice(t *testing.T) {
	engine, orders, positions, _ := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(60)})

	// 先建仓
	_, err := engine.PlaceMarketOrder(context.Background(), PlaceOrderCommand{
		UserID:   "u1",
		Symbol:   "AAPL",
		Side:     domain.OrderSideBuy,
		Type:     domain.OrderTypeMarket,
		Quantity: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:    "u1",
		Symbol:    "AAPL",
		Side:      domain.OrderSideSell,
		Type:      domain.OrderTypeStop,
		Quantity:  decimal.NewFromInt(100),
		StopPrice: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)

	// 现价 48 跌破触发价 50：按现价 48 成交，不是触发价
	evalResult, err := engine.EvaluateOrder(context.Background(), order, decimal.NewFromInt(48))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, evalResult.Status)
	assert.True(t, evalResult.FilledPrice.Equal(decimal.NewFromInt(48)))

	position, err := positions.Get(context.Background(), "u1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.True(t, position.IsFlat())
	// (48 - 60) * 100
	assert.True(t, position.RealizedPnL.Equal(decimal.NewFromInt(-1200)))
}

func TestEvaluateOrderSellOverHoldingsRejected(t *testing.T) {
	engine, orders, _, _ := newTestEngine(nil)

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:     "u1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideSell,
		Type:       domain.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(10),
		LimitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)

	evalResult, err := engine.EvaluateOrder(context.Background(), order, decimal.NewFromInt(110))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusRejected, evalResult.Status)
	assert.Contains(t, evalResult.Message, "insufficient holdings")
}

func TestEvaluateOrderIdempotentOnSettledOrder(t *testing.T) {
	engine, orders, positions, _ := newTestEngine(nil)

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:     "u1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(10),
		LimitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	_, err = engine.EvaluateOrder(context.Background(), order, decimal.NewFromInt(95))
	require.NoError(t, err)

	// 用成交前读出的旧快照重复评估：引擎持锁重读后静默跳过
	stale := *order
	evalResult, err := engine.EvaluateOrder(context.Background(), &stale, decimal.NewFromInt(95))
	require.NoError(t, err)
	assert.Equal(t, "order already settled", evalResult.Message)

	position, err := positions.Get(context.Background(), "u1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestEvaluateOrderStaleSnapshotAfterModify(t *testing.T) {
	engine, orders, _, _ := newTestEngine(nil)

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:     "u1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(10),
		LimitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// 监控读出快照后订单被改单，限价 100 -> 90
	snapshot, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	_, err = engine.ModifyOrder(context.Background(), result.OrderID, "u1", decimal.Zero, decimal.NewFromInt(90), decimal.Zero)
	require.NoError(t, err)

	// 现价 99 满足旧限价 100 但不满足当前限价 90：不得按失效限价成交
	evalResult, err := engine.EvaluateOrder(context.Background(), snapshot, decimal.NewFromInt(99))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, evalResult.Status)

	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.True(t, order.IsPending())
	assert.True(t, order.FilledQuantity.IsZero())

	// 现价落到当前限价内时按当前限价成交
	snapshot, err = orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	evalResult, err = engine.EvaluateOrder(context.Background(), snapshot, decimal.NewFromInt(89))
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusFilled, evalResult.Status)
	assert.True(t, evalResult.FilledPrice.Equal(decimal.NewFromInt(90)))
}

func TestConcurrentFillsDoNotLosePositionUpdates(t *testing.T) {
	engine, _, positions, _ := newTestEngine(map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(100)})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.PlaceMarketOrder(context.Background(), PlaceOrderCommand{
				UserID:   "u1",
				Symbol:   "AAPL",
				Side:     domain.OrderSideBuy,
				Type:     domain.OrderTypeMarket,
				Quantity: decimal.NewFromInt(1),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	position, err := positions.Get(context.Background(), "u1", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, position)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(n)))
}

func TestCancelOrder(t *testing.T) {
	engine, orders, _, publisher := newTestEngine(nil)

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:     "u1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(10),
		LimitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	// 非持有者不可见
	_, err = engine.CancelOrder(context.Background(), result.OrderID, "u2")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	cancelResult, err := engine.CancelOrder(context.Background(), result.OrderID, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelResult.Status)

	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, order.Status)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, domain.OrderEventCancelled, publisher.events[0].Type)

	// 终态订单二次取消报错
	_, err = engine.CancelOrder(context.Background(), result.OrderID, "u1")
	assert.ErrorIs(t, err, domain.ErrOrderNotPending)
}

func TestModifyOrder(t *testing.T) {
	engine, orders, _, _ := newTestEngine(nil)

	result, err := engine.PlacePendingOrder(context.Background(), PlaceOrderCommand{
		UserID:     "u1",
		Symbol:     "AAPL",
		Side:       domain.OrderSideBuy,
		Type:       domain.OrderTypeLimit,
		Quantity:   decimal.NewFromInt(10),
		LimitPrice: decimal.NewFromInt(100),
	})
	require.NoError(t, err)

	_, err = engine.ModifyOrder(context.Background(), result.OrderID, "u2", decimal.NewFromInt(5), decimal.Zero, decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	modifyResult, err := engine.ModifyOrder(context.Background(), result.OrderID, "u1", decimal.NewFromInt(5), decimal.NewFromInt(95), decimal.Zero)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, modifyResult.Status)

	order, err := orders.Get(context.Background(), result.OrderID)
	require.NoError(t, err)
	assert.True(t, order.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, order.LimitPrice.Equal(decimal.NewFromInt(95)))
}
