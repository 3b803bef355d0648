package repository

import (
	"context"

	"studyroom/internal/domain"
)

// UserRepository reads and stores user accounts.
type UserRepository interface {
	// FindByUsername returns ErrUserNotFound when no such user exists.
	FindByUsername(ctx context.Context, username string) (*domain.User, error)

	// FindByID returns ErrUserNotFound when no such user exists.
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// Save inserts or updates the user. A unique violation yields ErrDuplicateEntry.
	Save(ctx context.Context, user *domain.User) error
}
