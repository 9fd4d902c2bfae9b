package repository

import (
	"context"

	"chat-hub/internal/domain"
)

// MessageRepository defines append-only storage of chat messages.
type MessageRepository interface {
	// Save appends a message. Messages are never updated or deleted.
	Save(ctx context.Context, message *domain.Message) error

	// FindByRoomCode returns a room's messages ordered by timestamp
	// ascending, ties broken by insertion ID. limit <= 0 means no limit.
	FindByRoomCode(ctx context.Context, roomCode string, limit int) ([]domain.Message, error)
}
