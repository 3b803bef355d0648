package gormpersistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"studyroom/internal/domain"
	"studyroom/internal/repository"
)

// GormRoomRepository is the GORM implementation of repository.RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GormRoomRepository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// Create inserts a new room.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	if err := r.db.WithContext(ctx).Omit("Owner").Create(room).Error; err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room (uuid: %s, owner: %d): %w", room.UUID, room.OwnerID, err)
	}
	return nil
}

// FindByUUID looks a room up by its public identifier.
func (r *GormRoomRepository) FindByUUID(ctx context.Context, uuid string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by uuid '%s': %w", uuid, err)
	}
	return &room, nil
}

// ListSummaries selects only the list-view columns.
func (r *GormRoomRepository) ListSummaries(ctx context.Context) ([]domain.RoomSummary, error) {
	summaries := make([]domain.RoomSummary, 0)
	err := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Select("uuid", "title", "category", "agora_app_id", "agora_token", "owner_id").
		Order("id DESC").
		Find(&summaries).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list room summaries: %w", err)
	}
	return summaries, nil
}

// IncrementHeadcount adds one occupant in a single UPDATE. The capacity
// predicate lives in the WHERE clause so concurrent joins cannot overshoot.
func (r *GormRoomRepository) IncrementHeadcount(ctx context.Context, uuid string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("uuid = ? AND now_headcount < max_headcount", uuid).
		UpdateColumns(map[string]interface{}{
			"now_headcount": gorm.Expr("now_headcount + ?", 1),
			"count":         gorm.Expr("count + ?", 1),
		})
	if result.Error != nil {
		return false, fmt.Errorf("gorm: increment headcount for room '%s': %w", uuid, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DecrementHeadcount removes one occupant in a single UPDATE, never below zero.
func (r *GormRoomRepository) DecrementHeadcount(ctx context.Context, uuid string) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&domain.Room{}).
		Where("uuid = ? AND now_headcount > 0", uuid).
		UpdateColumn("now_headcount", gorm.Expr("now_headcount - ?", 1))
	if result.Error != nil {
		return false, fmt.Errorf("gorm: decrement headcount for room '%s': %w", uuid, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteByUUID hard-deletes the room.
func (r *GormRoomRepository) DeleteByUUID(ctx context.Context, uuid string) (bool, error) {
	result := r.db.WithContext(ctx).Where("uuid = ?", uuid).Delete(&domain.Room{})
	if result.Error != nil {
		return false, fmt.Errorf("gorm: delete room '%s': %w", uuid, result.Error)
	}
	return result.RowsAffected > 0, nil
}
