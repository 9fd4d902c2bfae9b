package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"chat-hub/internal/domain"
	"chat-hub/internal/repository"
)

// MessageService persists chat messages and serves room history. The hub
// calls Post before broadcasting: no message event is ever fanned out unless
// the durable write already succeeded, so a client racing a history fetch
// against the broadcast sees the message in one of the two, never neither.
type MessageService struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomRepository
}

// NewMessageService creates a MessageService instance.
func NewMessageService(messageRepo repository.MessageRepository, roomRepo repository.RoomRepository) *MessageService {
	if messageRepo == nil {
		panic("MessageRepository cannot be nil for MessageService")
	}
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for MessageService")
	}
	return &MessageService{messageRepo: messageRepo, roomRepo: roomRepo}
}

// Post validates that the room exists, then appends the message. A message
// may never reference a room code with no matching room row. Store failures
// surface as ErrStoreUnavailable; the caller reports them to the sender and
// does not retry.
func (s *MessageService) Post(ctx context.Context, userID uint, roomCode, content string) (*domain.Message, error) {
	logCtx := logrus.WithFields(logrus.Fields{"user_id": userID, "room": roomCode})

	if _, err := s.roomRepo.FindByCode(ctx, roomCode); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			logCtx.Warn("Post rejected: room not found")
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Post: room lookup failed")
		return nil, ErrStoreUnavailable
	}

	message := &domain.Message{
		Content:   content,
		UserID:    userID,
		RoomCode:  roomCode,
		Timestamp: time.Now(),
	}
	if err := s.messageRepo.Save(ctx, message); err != nil {
		logCtx.WithError(err).Error("Post: message persistence failed")
		return nil, ErrStoreUnavailable
	}

	logCtx.WithField("message_id", message.ID).Debug("Message persisted")
	return message, nil
}

// History returns a room's messages in timestamp order, ties broken by
// insertion order. limit <= 0 returns everything the room ever saw.
func (s *MessageService) History(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	messages, err := s.messageRepo.FindByRoomCode(ctx, roomCode, limit)
	if err != nil {
		logrus.WithError(err).WithField("room", roomCode).Error("History: repository error")
		return nil, ErrStoreUnavailable
	}
	return messages, nil
}
