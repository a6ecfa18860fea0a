package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wyfcoding/papertrading/internal/trading/domain"
)

// positionRepositoryImpl 是 domain.PositionRepository 接口的 GORM 实现
type positionRepositoryImpl struct {
	db *gorm.DB
}

// NewPositionRepository 创建持仓仓储实例
func NewPositionRepository(db *gorm.DB) domain.PositionRepository {
	return &positionRepositoryImpl{db: db}
}

// Get 实现 domain.PositionRepository.Get，不存在时返回 nil
func (r *positionRepositoryImpl) Get(ctx context.Context, userID, symbol string) (*domain.Position, error) {
	var position domain.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND symbol = ?", userID, symbol).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get position %s/%s: %w", userID, symbol, err)
	}
	return &position, nil
}

// Save 实现 domain.PositionRepository.Save，按 (user_id, symbol) 幂等更新
func (r *positionRepositoryImpl) Save(ctx context.Context, position *domain.Position) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{"quantity", "average_cost", "realized_pnl", "updated_at"}),
	}).Create(position).Error
	if err != nil {
		return fmt.Errorf("failed to save position %s/%s: %w", position.UserID, position.Symbol, err)
	}
	return nil
}

// ListByUser 实现 domain.PositionRepository.ListByUser
func (r *positionRepositoryImpl) ListByUser(ctx context.Context, userID string) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND quantity > 0", userID).
		Order("symbol ASC").
		Find(&positions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list positions for user %s: %w", userID, err)
	}
	return positions, nil
}
