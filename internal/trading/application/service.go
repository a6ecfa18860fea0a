package application

import (
	"context"

	"github.com/wyfcoding/papertrading/internal/trading/domain"
)

// TradingService 交易门面，整合下单、撤改与查询入口
type TradingService struct {
	engine    *Engine
	orders    domain.OrderRepository
	positions domain.PositionRepository
}

// NewTradingService 构造函数
func NewTradingService(engine *Engine, orders domain.OrderRepository, positions domain.PositionRepository) *TradingService {
	return &TradingService{engine: engine, orders: orders, positions: positions}
}

// --- Command (Writes) ---

// PlaceOrder 下单。市价单同步执行，限价/止损单落账为挂单。
func (s *TradingService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*ExecutionResult, error) {
	if cmd.Type == domain.OrderTypeMarket {
		return s.engine.PlaceMarketOrder(ctx, cmd)
	}
	return s.engine.PlacePendingOrder(ctx, cmd)
}

// CancelOrder 取消挂单
func (s *TradingService) CancelOrder(ctx context.Context, orderID, userID string) (*ExecutionResult, error) {
	return s.engine.CancelOrder(ctx, orderID, userID)
}

// ModifyOrder 修改挂单
func (s *TradingService) ModifyOrder(ctx context.Context, orderID, userID string, cmd ModifyOrderCommand) (*ExecutionResult, error) {
	return s.engine.ModifyOrder(ctx, orderID, userID, cmd.Quantity, cmd.LimitPrice, cmd.StopPrice)
}

// --- Query (Reads) ---

// GetOrder 获取订单详情
func (s *TradingService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return s.orders.Get(ctx, orderID)
}

// ListOrders 列出用户订单
func (s *TradingService) ListOrders(ctx context.Context, userID string, status domain.OrderStatus, limit, offset int) ([]*domain.Order, error) {
	return s.orders.ListByUser(ctx, userID, status, limit, offset)
}

// ListPositions 列出用户持仓
func (s *TradingService) ListPositions(ctx context.Context, userID string) ([]*domain.Position, error) {
	return s.positions.ListByUser(ctx, userID)
}
