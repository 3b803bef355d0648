package repository

import (
	"context"

	"studyroom/internal/domain"
)

// HistoryRepository is the append-only store of completed sessions.
type HistoryRepository interface {
	Create(ctx context.Context, history *domain.History) error

	// ListByUser returns the user's rows, newest check-out first.
	ListByUser(ctx context.Context, userID uint) ([]domain.History, error)
}
