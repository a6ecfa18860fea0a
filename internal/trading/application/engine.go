// Package application 交易子系统的应用服务：订单执行引擎、挂单监控与交易门面
package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	mddomain "github.com/wyfcoding/papertrading/internal/marketdata/domain"
	"github.com/wyfcoding/papertrading/internal/trading/domain"
	"github.com/wyfcoding/papertrading/pkg/logger"
	"github.com/wyfcoding/papertrading/pkg/metrics"
)

// QuoteGetter 引擎对行情服务的最小依赖
type QuoteGetter interface {
	GetQuote(ctx context.Context, symbol string) (*mddomain.Quote, error)
}

// PlaceOrderCommand 下单命令
type PlaceOrderCommand struct {
	UserID     string
	Symbol     string
	Side       domain.OrderSide
	Type       domain.OrderType
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
}

// ModifyOrderCommand 改单命令，零值字段表示保持不变
type ModifyOrderCommand struct {
	Quantity   decimal.Decimal
	LimitPrice decimal.Decimal
	StopPrice  decimal.Decimal
}

// ExecutionResult 执行结果，拒绝以结果而非错误返回，原因落在订单上
type ExecutionResult struct {
	OrderID        string              `json:"order_id"`
	Status         domain.OrderStatus  `json:"status"`
	Message        string              `json:"message"`
	FilledPrice    decimal.Decimal     `json:"filled_price,omitempty"`
	FilledQuantity decimal.Decimal     `json:"filled_quantity,omitempty"`
}

// keyedMutex 按 (user, symbol) 串行化持仓的读改写路径
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sync.Mutex{}
		k.locks[key] = l
	}
	k.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Engine 订单执行引擎。市价单同步成交，限价/止损单由挂单监控驱动评估。
// 持仓只在本引擎的成交路径下变更。
type Engine struct {
	orders    domain.OrderRepository
	positions domain.PositionRepository
	quotes    QuoteGetter
	events    domain.EventPublisher
	metrics   *metrics.Metrics
	now       func() time.Time
	holdings  keyedMutex
}

// NewEngine 创建执行引擎
func NewEngine(orders domain.OrderRepository, positions domain.PositionRepository, quotes QuoteGetter, events domain.EventPublisher, m *metrics.Metrics) *Engine {
	if events == nil {
		events = nopPublisher{}
	}
	return &Engine{
		orders:    orders,
		positions: positions,
		quotes:    quotes,
		events:    events,
		metrics:   m,
		now:       time.Now,
	}
}

type nopPublisher struct{}

func (nopPublisher) PublishOrderEvent(ctx context.Context, event domain.OrderEvent) error {
	return nil
}

// PlaceMarketOrder 市价单：取最新报价立即全量成交。
// 取数失败时订单以拒绝终态落账，绝不留在挂单状态。
func (e *Engine) PlaceMarketOrder(ctx context.Context, cmd PlaceOrderCommand) (*ExecutionResult, error) {
	order := domain.NewOrder(uuid.NewString(), cmd.UserID, cmd.Symbol, cmd.Side, domain.OrderTypeMarket, cmd.Quantity, decimal.Zero, decimal.Zero)
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := e.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	quote, err := e.quotes.GetQuote(ctx, cmd.Symbol)
	if err != nil {
		return e.reject(ctx, order, fmt.Sprintf("market data unavailable: %v", err))
	}

	return e.fill(ctx, order.OrderID, quote.Price)
}

// PlacePendingOrder 限价/止损单：校验后以挂单状态落账，等待监控评估
func (e *Engine) PlacePendingOrder(ctx context.Context, cmd PlaceOrderCommand) (*ExecutionResult, error) {
	if cmd.Type != domain.OrderTypeLimit && cmd.Type != domain.OrderTypeStop {
		return nil, fmt.Errorf("%w: type %q cannot be placed as pending", domain.ErrInvalidOrder, cmd.Type)
	}
	order := domain.NewOrder(uuid.NewString(), cmd.UserID, cmd.Symbol, cmd.Side, cmd.Type, cmd.Quantity, cmd.LimitPrice, cmd.StopPrice)
	if err := order.Validate(); err != nil {
		return nil, err
	}
	if err := e.orders.Save(ctx, order); err != nil {
		return nil, err
	}
	if e.metrics != nil {
		e.metrics.OrdersPending.Inc()
	}
	return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: "order accepted"}, nil
}

// EvaluateOrder 以给定现价评估一笔限价/止损挂单。
// 条件未满足返回 no action；订单已处于终态时静默跳过，保证幂等。
// 这里的判定只是免加锁的快速筛选，成交路径持锁重读后会以
// 订单当前参数重新判定，快照陈旧不会导致按失效价格成交。
func (e *Engine) EvaluateOrder(ctx context.Context, order *domain.Order, currentPrice decimal.Decimal) (*ExecutionResult, error) {
	if !order.IsPending() {
		return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: "order already settled"}, nil
	}

	if _, triggered := evaluateCondition(order, currentPrice); !triggered {
		return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: "no action"}, nil
	}

	return e.fill(ctx, order.OrderID, currentPrice)
}

// evaluateCondition 判定成交条件并给出成交价。
// 限价单按限价成交（保守成交假设）；止损单触发后按现价成交。
func evaluateCondition(order *domain.Order, currentPrice decimal.Decimal) (decimal.Decimal, bool) {
	switch order.Type {
	case domain.OrderTypeLimit:
		if order.Side == domain.OrderSideBuy && currentPrice.LessThanOrEqual(order.LimitPrice) {
			return order.LimitPrice, true
		}
		if order.Side == domain.OrderSideSell && currentPrice.GreaterThanOrEqual(order.LimitPrice) {
			return order.LimitPrice, true
		}
	case domain.OrderTypeStop:
		if order.Side == domain.OrderSideSell && currentPrice.LessThanOrEqual(order.StopPrice) {
			return currentPrice, true
		}
		if order.Side == domain.OrderSideBuy && currentPrice.GreaterThanOrEqual(order.StopPrice) {
			return currentPrice, true
		}
	}
	return decimal.Zero, false
}

// CancelOrder 取消挂单，终态订单返回错误且状态不变
func (e *Engine) CancelOrder(ctx context.Context, orderID, userID string) (*ExecutionResult, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}

	unlock := e.holdings.lock(order.UserID + ":" + order.Symbol)
	defer unlock()

	// 持锁后重读，挂单可能已被并发成交
	if order, err = e.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	if err := order.Cancel(e.now()); err != nil {
		return nil, err
	}
	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	e.publish(ctx, order, domain.OrderEventCancelled, decimal.Zero)
	if e.metrics != nil {
		e.metrics.OrdersTotal.WithLabelValues(string(domain.OrderStatusCancelled)).Inc()
		e.metrics.OrdersPending.Dec()
	}
	return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: "order cancelled"}, nil
}

// ModifyOrder 修改挂单的数量或价格，终态订单返回错误
func (e *Engine) ModifyOrder(ctx context.Context, orderID, userID string, quantity, limitPrice, stopPrice decimal.Decimal) (*ExecutionResult, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}

	unlock := e.holdings.lock(order.UserID + ":" + order.Symbol)
	defer unlock()

	if order, err = e.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	if err := order.Modify(quantity, limitPrice, stopPrice); err != nil {
		return nil, err
	}
	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: "order modified"}, nil
}

// fill 成交路径。按 (user, symbol) 加锁串行化持仓读改写；持锁后重读
// 订单，并发评估下后到者观察到终态即静默退出，杜绝重复成交。
// 成交条件与成交价按重读后的订单参数判定，快照读出后发生的改单
// 不会以失效的限价/触发价成交。
func (e *Engine) fill(ctx context.Context, orderID string, currentPrice decimal.Decimal) (*ExecutionResult, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	unlock := e.holdings.lock(order.UserID + ":" + order.Symbol)
	defer unlock()

	if order, err = e.orders.Get(ctx, orderID); err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: "order already settled"}, nil
	}

	price := currentPrice
	if order.Type != domain.OrderTypeMarket {
		var triggered bool
		if price, triggered = evaluateCondition(order, currentPrice); !triggered {
			return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: "no action"}, nil
		}
	}

	position, err := e.positions.Get(ctx, order.UserID, order.Symbol)
	if err != nil {
		return nil, err
	}
	if position == nil {
		position = domain.NewPosition(order.UserID, order.Symbol)
	}

	var realized decimal.Decimal
	switch order.Side {
	case domain.OrderSideBuy:
		position.ApplyBuy(order.Quantity, price)
	case domain.OrderSideSell:
		before := position.RealizedPnL
		if err := position.ApplySell(order.Quantity, price); err != nil {
			return e.reject(ctx, order, err.Error())
		}
		realized = position.RealizedPnL.Sub(before)
	}

	if err := order.Fill(price, order.Quantity, e.now()); err != nil {
		return nil, err
	}
	if err := e.positions.Save(ctx, position); err != nil {
		return nil, err
	}
	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	e.publish(ctx, order, domain.OrderEventFilled, realized)
	if e.metrics != nil {
		e.metrics.OrdersTotal.WithLabelValues(string(domain.OrderStatusFilled)).Inc()
		e.metrics.FillsTotal.WithLabelValues(string(order.Side)).Inc()
		if order.Type != domain.OrderTypeMarket {
			e.metrics.OrdersPending.Dec()
		}
	}
	logger.Info(ctx, "order filled",
		"order_id", order.OrderID,
		"user_id", order.UserID,
		"symbol", order.Symbol,
		"side", order.Side,
		"price", price,
		"quantity", order.Quantity,
	)
	return &ExecutionResult{
		OrderID:        order.OrderID,
		Status:         order.Status,
		Message:        "order filled",
		FilledPrice:    order.FilledPrice,
		FilledQuantity: order.FilledQuantity,
	}, nil
}

// reject 把订单迁移到拒绝终态并记录原因
func (e *Engine) reject(ctx context.Context, order *domain.Order, reason string) (*ExecutionResult, error) {
	if err := order.Reject(reason); err != nil {
		return nil, err
	}
	if err := e.orders.Update(ctx, order); err != nil {
		return nil, err
	}
	e.publish(ctx, order, domain.OrderEventRejected, decimal.Zero)
	if e.metrics != nil {
		e.metrics.OrdersTotal.WithLabelValues(string(domain.OrderStatusRejected)).Inc()
		if order.Type != domain.OrderTypeMarket {
			e.metrics.OrdersPending.Dec()
		}
	}
	logger.Warn(ctx, "order rejected", "order_id", order.OrderID, "reason", reason)
	return &ExecutionResult{OrderID: order.OrderID, Status: order.Status, Message: reason}, nil
}

func (e *Engine) publish(ctx context.Context, order *domain.Order, eventType domain.OrderEventType, realized decimal.Decimal) {
	event := domain.OrderEvent{
		Type:        eventType,
		OrderID:     order.OrderID,
		UserID:      order.UserID,
		Symbol:      order.Symbol,
		Side:        order.Side,
		OrderType:   order.Type,
		Quantity:    order.Quantity,
		FilledPrice: order.FilledPrice,
		RealizedPnL: realized,
		Reason:      order.Reason,
		OccurredAt:  e.now(),
	}
	if err := e.events.PublishOrderEvent(ctx, event); err != nil {
		// 事件发布失败不回滚成交，下游以台账为准
		logger.Warn(ctx, "order event publish failed", "order_id", order.OrderID, "error", err)
	}
}
