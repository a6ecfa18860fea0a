package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Position 用户在单一标的上的持仓。只允许执行引擎在成交路径下修改，
// 数量永不为负。
type Position struct {
	gorm.Model
	// 用户 ID
	UserID string `gorm:"column:user_id;type:varchar(32);uniqueIndex:idx_user_symbol;not null" json:"user_id"`
	// 标的符号
	Symbol string `gorm:"column:symbol;type:varchar(32);uniqueIndex:idx_user_symbol;not null" json:"symbol"`
	// 持仓数量
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,8);not null;default:0" json:"quantity"`
	// 数量加权平均成本
	AverageCost decimal.Decimal `gorm:"column:average_cost;type:decimal(20,8);not null;default:0" json:"average_cost"`
	// 已实现盈亏累计
	RealizedPnL decimal.Decimal `gorm:"column:realized_pnl;type:decimal(20,8);not null;default:0" json:"realized_pnl"`
}

func (Position) TableName() string {
	return "positions"
}

// NewPosition 创建空持仓
func NewPosition(userID, symbol string) *Position {
	return &Position{
		UserID:      userID,
		Symbol:      symbol,
		Quantity:    decimal.Zero,
		AverageCost: decimal.Zero,
		RealizedPnL: decimal.Zero,
	}
}

// ApplyBuy 买入成交：平均成本重算为既有持仓与新成交的数量加权均值
func (p *Position) ApplyBuy(quantity, price decimal.Decimal) {
	totalCost := p.Quantity.Mul(p.AverageCost).Add(quantity.Mul(price))
	p.Quantity = p.Quantity.Add(quantity)
	p.AverageCost = totalCost.Div(p.Quantity)
}

// ApplySell 卖出成交：数量减少并按 (成交价 - 平均成本) × 数量 实现盈亏。
// 卖出数量超过持仓时拒绝，不做静默截断。
func (p *Position) ApplySell(quantity, price decimal.Decimal) error {
	if quantity.GreaterThan(p.Quantity) {
		return fmt.Errorf("%w: holding %s, selling %s of %s",
			ErrInsufficientHoldings, p.Quantity, quantity, p.Symbol)
	}
	p.RealizedPnL = p.RealizedPnL.Add(price.Sub(p.AverageCost).Mul(quantity))
	p.Quantity = p.Quantity.Sub(quantity)
	if p.Quantity.IsZero() {
		p.AverageCost = decimal.Zero
	}
	return nil
}

// IsFlat 持仓是否已清零
func (p *Position) IsFlat() bool {
	return p.Quantity.IsZero()
}
