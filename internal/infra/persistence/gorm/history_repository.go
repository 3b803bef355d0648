package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"studyroom/internal/domain"
)

// GormHistoryRepository is the GORM implementation of repository.HistoryRepository.
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository creates a GormHistoryRepository.
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	if db == nil {
		panic("database connection cannot be nil for GormHistoryRepository")
	}
	return &GormHistoryRepository{db: db}
}

// Create appends one history row.
func (r *GormHistoryRepository) Create(ctx context.Context, history *domain.History) error {
	if err := r.db.WithContext(ctx).Omit("User").Create(history).Error; err != nil {
		return fmt.Errorf("gorm: create history (user: %d, room: %d): %w", history.UserID, history.RoomID, err)
	}
	return nil
}

// ListByUser returns the user's history, newest check-out first.
func (r *GormHistoryRepository) ListByUser(ctx context.Context, userID uint) ([]domain.History, error) {
	histories := make([]domain.History, 0)
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("check_out DESC").
		Find(&histories).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list histories for user %d: %w", userID, err)
	}
	return histories, nil
}
