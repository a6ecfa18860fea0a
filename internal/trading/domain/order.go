// Package domain 交易子系统的领域模型：订单状态机、持仓与台账仓储契约
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 交易子系统的错误分类。引擎错误始终以明确的拒绝原因落在订单上，
// 不允许让订单停留在模糊状态。
var (
	// ErrOrderNotFound 订单不存在
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotPending 对终态订单执行了只允许挂单状态的操作
	ErrOrderNotPending = errors.New("order is not pending")
	// ErrInsufficientHoldings 卖出数量超过当前持仓
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	// ErrInvalidOrder 提交参数校验失败
	ErrInvalidOrder = errors.New("invalid order")
)

// OrderStatus 订单状态。pending 为初始态，三个终态之间不可迁移。
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusFilled    OrderStatus = "FILLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// OrderSide 买卖方向
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// OrderType 订单类型
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeStop   OrderType = "STOP"
)

// Order 订单实体
// 代表用户提交的一笔模拟交易指令
type Order struct {
	gorm.Model
	// 订单 ID
	OrderID string `gorm:"column:order_id;type:varchar(36);uniqueIndex;not null" json:"order_id"`
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);index;not null" json:"user_id"`
	// 标的符号
	Symbol string `gorm:"column:symbol;type:varchar(32);index;not null" json:"symbol"`
	// 买卖方向
	Side OrderSide `gorm:"column:side;type:varchar(10);not null" json:"side"`
	// 订单类型
	Type OrderType `gorm:"column:type;type:varchar(10);not null" json:"type"`
	// 请求数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null" json:"quantity"`
	// 限价（仅限价单）
	LimitPrice decimal.Decimal `gorm:"column:limit_price;type:decimal(20,8);not null;default:0" json:"limit_price"`
	// 触发价（仅止损单）
	StopPrice decimal.Decimal `gorm:"column:stop_price;type:decimal(20,8);not null;default:0" json:"stop_price"`
	// 订单状态
	Status OrderStatus `gorm:"column:status;type:varchar(10);index;not null" json:"status"`
	// 成交数量
	FilledQuantity decimal.Decimal `gorm:"column:filled_quantity;type:decimal(20,8);not null;default:0" json:"filled_quantity"`
	// 成交价格
	FilledPrice decimal.Decimal `gorm:"column:filled_price;type:decimal(20,8);not null;default:0" json:"filled_price"`
	// 拒绝/取消原因
	Reason string `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`
	// 成交时间
	FilledAt *time.Time `gorm:"column:filled_at" json:"filled_at,omitempty"`
	// 取消时间
	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

// NewOrder 创建挂单状态的订单
func NewOrder(orderID, userID, symbol string, side OrderSide, orderType OrderType, quantity, limitPrice, stopPrice decimal.Decimal) *Order {
	return &Order{
		OrderID:        orderID,
		UserID:         userID,
		Symbol:         symbol,
		Side:           side,
		Type:           orderType,
		Quantity:       quantity,
		LimitPrice:     limitPrice,
		StopPrice:      stopPrice,
		Status:         OrderStatusPending,
		FilledQuantity: decimal.Zero,
		FilledPrice:    decimal.Zero,
	}
}

// Validate 提交时的同步校验，不合法的订单不会以挂单状态持久化
func (o *Order) Validate() error {
	if o.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidOrder)
	}
	if o.Symbol == "" {
		return fmt.Errorf("%w: symbol is required", ErrInvalidOrder)
	}
	if o.Side != OrderSideBuy && o.Side != OrderSideSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive", ErrInvalidOrder)
	}
	switch o.Type {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if !o.LimitPrice.IsPositive() {
			return fmt.Errorf("%w: limit order requires a positive limit price", ErrInvalidOrder)
		}
	case OrderTypeStop:
		if !o.StopPrice.IsPositive() {
			return fmt.Errorf("%w: stop order requires a positive stop price", ErrInvalidOrder)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOrder, o.Type)
	}
	return nil
}

// IsPending 是否仍为挂单状态
func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

// Fill 迁移到成交终态，只允许从挂单状态进入
func (o *Order) Fill(price, quantity decimal.Decimal, at time.Time) error {
	if !o.IsPending() {
		return fmt.Errorf("%w: cannot fill order %s in status %s", ErrOrderNotPending, o.OrderID, o.Status)
	}
	o.Status = OrderStatusFilled
	o.FilledPrice = price
	o.FilledQuantity = quantity
	o.FilledAt = &at
	return nil
}

// Reject 迁移到拒绝终态并记录原因
func (o *Order) Reject(reason string) error {
	if !o.IsPending() {
		return fmt.Errorf("%w: cannot reject order %s in status %s", ErrOrderNotPending, o.OrderID, o.Status)
	}
	o.Status = OrderStatusRejected
	o.Reason = reason
	return nil
}

// Cancel 迁移到取消终态，只允许取消挂单
func (o *Order) Cancel(at time.Time) error {
	if !o.IsPending() {
		return fmt.Errorf("%w: cannot cancel order %s in status %s", ErrOrderNotPending, o.OrderID, o.Status)
	}
	o.Status = OrderStatusCancelled
	o.CancelledAt = &at
	return nil
}

// Modify 修改挂单的数量与价格，零值字段表示保持不变
func (o *Order) Modify(quantity, limitPrice, stopPrice decimal.Decimal) error {
	if !o.IsPending() {
		return fmt.Errorf("%w: cannot modify order %s in status %s", ErrOrderNotPending, o.OrderID, o.Status)
	}
	if quantity.IsPositive() {
		o.Quantity = quantity
	}
	if limitPrice.IsPositive() {
		if o.Type != OrderTypeLimit {
			return fmt.Errorf("%w: limit price only applies to limit orders", ErrInvalidOrder)
		}
		o.LimitPrice = limitPrice
	}
	if stopPrice.IsPositive() {
		if o.Type != OrderTypeStop {
			return fmt.Errorf("%w: stop price only applies to stop orders", ErrInvalidOrder)
		}
		o.StopPrice = stopPrice
	}
	return o.Validate()
}
