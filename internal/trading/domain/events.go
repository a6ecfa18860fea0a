package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType 订单事件类型
type OrderEventType string

const (
	OrderEventFilled    OrderEventType = "order.filled"
	OrderEventRejected  OrderEventType = "order.rejected"
	OrderEventCancelled OrderEventType = "order.cancelled"
)

// OrderEvent 订单终态事件，发布给下游（统计、通知、手续费计算等）
type OrderEvent struct {
	Type        OrderEventType  `json:"type"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Symbol      string          `json:"symbol"`
	Side        OrderSide       `json:"side"`
	OrderType   OrderType       `json:"order_type"`
	Quantity    decimal.Decimal `json:"quantity"`
	FilledPrice decimal.Decimal `json:"filled_price"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Reason      string          `json:"reason,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EventPublisher 订单事件发布接口
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}
