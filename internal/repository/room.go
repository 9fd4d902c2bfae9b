package repository

import (
	"context"

	"chat-hub/internal/domain"
)

// RoomRepository defines storage and retrieval of rooms.
type RoomRepository interface {
	// FindByCode looks a room up by its 8-char code. Returns ErrRoomNotFound
	// if no such room exists.
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// FindByNameCategory looks a room up by its exact (name, category) pair.
	// Used by catalog seeding to stay idempotent. Returns ErrRoomNotFound if
	// no such room exists.
	FindByNameCategory(ctx context.Context, name string, category domain.Category) (*domain.Room, error)

	// FindPublic returns all catalog-listed rooms in insertion order.
	FindPublic(ctx context.Context) ([]domain.Room, error)

	// Save creates the room when ID is zero, otherwise updates it. Unique
	// constraint violations are reported as ErrDuplicateEntry.
	Save(ctx context.Context, room *domain.Room) error

	// IsCodeExists reports whether any room already holds the given code.
	IsCodeExists(ctx context.Context, code string) (bool, error)

	// TouchLastActive stamps the room's last_active column.
	TouchLastActive(ctx context.Context, code string) error
}
