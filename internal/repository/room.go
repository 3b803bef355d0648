package repository

import (
	"context"

	"studyroom/internal/domain"
)

// RoomRepository persists rooms and their occupancy counters.
//
// The boolean returned by the mutating methods reports whether a row was
// affected. false with a nil error is the store's "no effect" signal.
type RoomRepository interface {
	// Create inserts a new room and fills in its generated ID.
	Create(ctx context.Context, room *domain.Room) error

	// FindByUUID returns ErrRoomNotFound when no room has the given uuid.
	FindByUUID(ctx context.Context, uuid string) (*domain.Room, error)

	// ListSummaries returns every room in the reduced list projection.
	ListSummaries(ctx context.Context) ([]domain.RoomSummary, error)

	// IncrementHeadcount atomically adds one occupant and one lifetime join,
	// only while the room is below capacity.
	IncrementHeadcount(ctx context.Context, uuid string) (bool, error)

	// DecrementHeadcount atomically removes one occupant, only while the room
	// is not empty. The lifetime count is left alone.
	DecrementHeadcount(ctx context.Context, uuid string) (bool, error)

	// DeleteByUUID removes the room.
	DeleteByUUID(ctx context.Context, uuid string) (bool, error)
}
