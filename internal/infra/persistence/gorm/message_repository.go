package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"chat-hub/internal/domain"
)

// GormMessageRepository is the GORM implementation of
// repository.MessageRepository. Messages are append-only.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a GormMessageRepository instance.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMessageRepository")
	}
	return &GormMessageRepository{db: db}
}

// Save appends a message.
func (r *GormMessageRepository) Save(ctx context.Context, message *domain.Message) error {
	err := r.db.WithContext(ctx).Create(message).Error
	if err != nil {
		return fmt.Errorf("gorm: save message (room: %s, user: %d): %w", message.RoomCode, message.UserID, err)
	}
	return nil
}

// FindByRoomCode returns a room's messages in display order: timestamp
// ascending, ties broken by insertion ID.
func (r *GormMessageRepository) FindByRoomCode(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	var messages []domain.Message
	query := r.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("timestamp asc").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find messages for room '%s': %w", roomCode, err)
	}
	return messages, nil
}
