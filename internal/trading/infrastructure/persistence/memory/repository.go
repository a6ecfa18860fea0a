// Package memory 提供订单与持仓台账的内存实现，用于本地开发与测试
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wyfcoding/papertrading/internal/trading/domain"
)

// OrderRepository domain.OrderRepository 的内存实现
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	seq    []string
}

// NewOrderRepository 创建内存订单仓储
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*domain.Order)}
}

// Save 保存新订单
func (r *OrderRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *order
	now := time.Now()
	if clone.CreatedAt.IsZero() {
		clone.CreatedAt = now
	}
	clone.UpdatedAt = now
	r.orders[order.OrderID] = &clone
	r.seq = append(r.seq, order.OrderID)
	return nil
}

// Update 更新订单，与 GORM 实现一致地推进审计时间戳
func (r *OrderRepository) Update(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[order.OrderID]; !ok {
		return domain.ErrOrderNotFound
	}
	clone := *order
	clone.UpdatedAt = time.Now()
	r.orders[order.OrderID] = &clone
	return nil
}

// Get 按订单 ID 获取
func (r *OrderRepository) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	clone := *order
	return &clone, nil
}

// ListByUser 获取用户订单列表
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, status domain.OrderStatus, limit, offset int) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Order
	// 按插入倒序，与 MySQL 实现的 created_at DESC 对齐
	for i := len(r.seq) - 1; i >= 0; i-- {
		order := r.orders[r.seq[i]]
		if order.UserID != userID {
			continue
		}
		if status != "" && order.Status != status {
			continue
		}
		clone := *order
		result = append(result, &clone)
	}
	if offset > 0 {
		if offset >= len(result) {
			return nil, nil
		}
		result = result[offset:]
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListPending 获取全部挂单
func (r *OrderRepository) ListPending(ctx context.Context) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Order
	for _, id := range r.seq {
		order := r.orders[id]
		if order.Status == domain.OrderStatusPending {
			clone := *order
			result = append(result, &clone)
		}
	}
	return result, nil
}

// PositionRepository domain.PositionRepository 的内存实现
type PositionRepository struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
}

// NewPositionRepository 创建内存持仓仓储
func NewPositionRepository() *PositionRepository {
	return &PositionRepository{positions: make(map[string]*domain.Position)}
}

func positionKey(userID, symbol string) string {
	return userID + "/" + symbol
}

// Get 获取持仓，不存在时返回 nil
func (r *PositionRepository) Get(ctx context.Context, userID, symbol string) (*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	position, ok := r.positions[positionKey(userID, symbol)]
	if !ok {
		return nil, nil
	}
	clone := *position
	return &clone, nil
}

// Save 保存或更新持仓
func (r *PositionRepository) Save(ctx context.Context, position *domain.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *position
	r.positions[positionKey(position.UserID, position.Symbol)] = &clone
	return nil
}

// ListByUser 获取用户全部非零持仓
func (r *PositionRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*domain.Position
	for _, position := range r.positions {
		if position.UserID == userID && position.Quantity.IsPositive() {
			clone := *position
			result = append(result, &clone)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}
