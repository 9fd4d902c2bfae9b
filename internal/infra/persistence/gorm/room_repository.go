package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"chat-hub/internal/domain"
	"chat-hub/internal/repository"
)

// GormRoomRepository is the GORM implementation of repository.RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GormRoomRepository instance.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByCode looks a room up by its unique code.
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code '%s': %w", code, err)
	}
	return &room, nil
}

// FindByNameCategory looks a room up by its exact (name, category) pair.
func (r *GormRoomRepository) FindByNameCategory(ctx context.Context, name string, category domain.Category) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("name = ? AND category = ?", name, category).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by name '%s' category '%s': %w", name, category, err)
	}
	return &room, nil
}

// FindPublic returns all catalog-listed rooms in insertion order.
func (r *GormRoomRepository) FindPublic(ctx context.Context) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).Where("is_public = ?", true).Order("id asc").Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: find public rooms: %w", err)
	}
	return rooms, nil
}

// Save creates or updates a room depending on whether the primary key is set.
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room (id: %d, code: %s): %w", room.ID, room.Code, err)
	}
	return nil
}

// IsCodeExists reports whether a room code is taken.
func (r *GormRoomRepository) IsCodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code '%s': %w", code, err)
	}
	return count > 0, nil
}

// TouchLastActive stamps the room's last_active column.
func (r *GormRoomRepository) TouchLastActive(ctx context.Context, code string) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("code = ?", code).
		Update("last_active", time.Now()).Error
	if err != nil {
		return fmt.Errorf("gorm: touch last_active for room '%s': %w", code, err)
	}
	return nil
}
