package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionApplyBuyAveragesCost(t *testing.T) {
	p := NewPosition("u1", "AAPL")

	p.ApplyBuy(decimal.NewFromInt(100), decimal.NewFromInt(10))
	assert.True(t, p.Quantity.Equal(decimal.NewFromInt(100)))
	assert.True(t, p.AverageCost.Equal(decimal.NewFromInt(10)))

	// 100@10 再买 100@12，平均成本 11
	p.ApplyBuy(decimal.NewFromInt(100), decimal.NewFromInt(12))
	assert.True(t, p.Quantity.Equal(decimal.NewFromInt(200)))
	assert.True(t, p.AverageCost.Equal(decimal.NewFromInt(11)))
}

func TestPositionApplySellRealizesPnL(t *testing.T) {
	p := NewPosition("u1", "AAPL")
	p.ApplyBuy(decimal.NewFromInt(100), decimal.NewFromInt(10))

	// 卖 40@13，实现盈亏 (13-10)*40 = 120，平均成本不变
	require.NoError(t, p.ApplySell(decimal.NewFromInt(40), decimal.NewFromInt(13)))
	assert.True(t, p.Quantity.Equal(decimal.NewFromInt(60)))
	assert.True(t, p.AverageCost.Equal(decimal.NewFromInt(10)))
	assert.True(t, p.RealizedPnL.Equal(decimal.NewFromInt(120)))

	// 亏损卖出累加到同一字段
	require.NoError(t, p.ApplySell(decimal.NewFromInt(10), decimal.NewFromInt(8)))
	assert.True(t, p.RealizedPnL.Equal(decimal.NewFromInt(100)))
}

func TestPositionApplySellInsufficient(t *testing.T) {
	p := NewPosition("u1", "AAPL")
	p.ApplyBuy(decimal.NewFromInt(5), decimal.NewFromInt(10))

	err := p.ApplySell(decimal.NewFromInt(10), decimal.NewFromInt(12))
	assert.ErrorIs(t, err, ErrInsufficientHoldings)
	// 拒绝后持仓不变
	assert.True(t, p.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, p.RealizedPnL.IsZero())
}

func TestPositionFlatResetsAverageCost(t *testing.T) {
	p := NewPosition("u1", "AAPL")
	p.ApplyBuy(decimal.NewFromInt(10), decimal.NewFromInt(20))
	require.NoError(t, p.ApplySell(decimal.NewFromInt(10), decimal.NewFromInt(25)))

	assert.True(t, p.IsFlat())
	assert.True(t, p.AverageCost.IsZero())
	assert.True(t, p.RealizedPnL.Equal(decimal.NewFromInt(50)))

	// 清仓后重建持仓，成本从新成交算起
	p.ApplyBuy(decimal.NewFromInt(4), decimal.NewFromInt(30))
	assert.True(t, p.AverageCost.Equal(decimal.NewFromInt(30)))
}
