package domain

import "context"

// OrderRepository 订单台账仓储接口
type OrderRepository interface {
	// 保存新订单
	Save(ctx context.Context, order *Order) error
	// 更新订单
	Update(ctx context.Context, order *Order) error
	// 按订单 ID 获取
	Get(ctx context.Context, orderID string) (*Order, error)
	// 获取用户订单列表，status 为空表示全部
	ListByUser(ctx context.Context, userID string, status OrderStatus, limit, offset int) ([]*Order, error)
	// 获取全部挂单，挂单监控依赖此查询
	ListPending(ctx context.Context) ([]*Order, error)
}

// PositionRepository 持仓台账仓储接口
type PositionRepository interface {
	// 获取持仓，不存在时返回 nil 而非错误
	Get(ctx context.Context, userID, symbol string) (*Position, error)
	// 保存或更新持仓
	Save(ctx context.Context, position *Position) error
	// 获取用户全部持仓
	ListByUser(ctx context.Context, userID string) ([]*Position, error)
}
