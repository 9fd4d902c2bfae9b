package service

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"chat-hub/internal/domain"
	"chat-hub/internal/repository"
)

// DefaultCatalog is the fixed set of public rooms seeded at every startup.
var DefaultCatalog = map[domain.Category][]string{
	domain.CategoryStudents:      {"IIT Bombay", "IIT KGP", "IIT Madras", "IIT Hyderabad"},
	domain.CategoryParents:       {"Parenting Tips", "Child Education"},
	domain.CategoryPolitical:     {"BJP", "Congress", "All India Trinamool Congress"},
	domain.CategoryEntertainment: {"Funny Jokes"},
}

// catalogOrder fixes the category iteration order so the lobby listing is
// stable across calls and restarts.
var catalogOrder = []domain.Category{
	domain.CategoryStudents,
	domain.CategoryParents,
	domain.CategoryPolitical,
	domain.CategoryEntertainment,
}

// RoomService is the room directory: it resolves codes to rooms, creates
// user rooms with fresh codes and seeds the public catalog.
type RoomService struct {
	roomRepo repository.RoomRepository
	codes    *CodeService
}

// NewRoomService creates a RoomService instance.
func NewRoomService(roomRepo repository.RoomRepository, codes *CodeService) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if codes == nil {
		panic("CodeService cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo, codes: codes}
}

// Resolve looks up a room by code. Codes are case-insensitive on the way in;
// stored codes are always uppercase.
func (s *RoomService) Resolve(ctx context.Context, code string) (*domain.Room, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("code", code).Error("Resolve: repository error")
		return nil, ErrInternalServer
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// CreateRoom creates a private custom room owned by creatorID, with a fresh
// unique code. Duplicate names are allowed: rooms are keyed by code, never by
// name.
func (s *RoomService) CreateRoom(ctx context.Context, name string, creatorID uint) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"creator_id": creatorID, "name": name})

	code, err := s.codes.GenerateRoomCode(ctx)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate unique room code")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("code", code)

	room := &domain.Room{
		Code:      code,
		Name:      name,
		Category:  domain.CategoryCustom,
		IsPublic:  false,
		CreatorID: creatorID,
	}

	if err := s.roomRepo.Save(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// The generator checked uniqueness just before this insert.
			logCtx.WithError(err).Error("Failed to save new room: code collision")
			return nil, ErrInternalServer
		}
		logCtx.WithError(err).Error("Failed to save new room to database")
		return nil, ErrInternalServer
	}

	logCtx.WithField("room_id", room.ID).Info("Room created successfully")
	return room, nil
}

// CategoryListing is one lobby section: a category and its rooms in seed
// order.
type CategoryListing struct {
	Category domain.Category
	Rooms    []domain.Room
}

// ListPublicByCategory returns the catalog-listed rooms grouped by category.
// Section order follows the catalog seed order; rooms keep insertion order.
func (s *RoomService) ListPublicByCategory(ctx context.Context) ([]CategoryListing, error) {
	rooms, err := s.roomRepo.FindPublic(ctx)
	if err != nil {
		logrus.WithError(err).Error("ListPublicByCategory: repository error")
		return nil, ErrInternalServer
	}

	byCategory := make(map[domain.Category][]domain.Room)
	for _, room := range rooms {
		byCategory[room.Category] = append(byCategory[room.Category], room)
	}

	listings := make([]CategoryListing, 0, len(catalogOrder))
	for _, category := range catalogOrder {
		if group, ok := byCategory[category]; ok {
			listings = append(listings, CategoryListing{Category: category, Rooms: group})
		}
	}
	return listings, nil
}

// SeedCatalog creates every (category, name) pair from the catalog that does
// not exist yet and leaves existing rooms untouched. Safe to call on every
// process start; individual failures are logged and skipped, never fatal.
func (s *RoomService) SeedCatalog(ctx context.Context, catalog map[domain.Category][]string, creatorID uint) {
	for _, category := range catalogOrder {
		names, ok := catalog[category]
		if !ok {
			continue
		}
		for _, name := range names {
			logCtx := logrus.WithFields(logrus.Fields{"category": category, "name": name})

			_, err := s.roomRepo.FindByNameCategory(ctx, name, category)
			if err == nil {
				continue // already seeded
			}
			if !errors.Is(err, repository.ErrRoomNotFound) {
				logCtx.WithError(err).Error("SeedCatalog: lookup failed, skipping room")
				continue
			}

			code, err := s.codes.GenerateRoomCode(ctx)
			if err != nil {
				logCtx.WithError(err).Error("SeedCatalog: code generation failed, skipping room")
				continue
			}

			room := &domain.Room{
				Code:      code,
				Name:      name,
				Category:  category,
				IsPublic:  true,
				CreatorID: creatorID,
			}
			if err := s.roomRepo.Save(ctx, room); err != nil {
				logCtx.WithError(err).Error("SeedCatalog: save failed, skipping room")
				continue
			}
			logCtx.WithField("code", code).Info("SeedCatalog: public room created")
		}
	}
}

// TouchLastActive stamps a room's last activity time. Called from the
// background worker, never from the post path.
func (s *RoomService) TouchLastActive(ctx context.Context, code string) error {
	if err := s.roomRepo.TouchLastActive(ctx, code); err != nil {
		return ErrInternalServer
	}
	return nil
}
