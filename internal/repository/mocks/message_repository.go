package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-hub/internal/domain"
)

// MessageRepository is a mock of repository.MessageRepository.
type MessageRepository struct {
	mock.Mock
}

func (m *MessageRepository) Save(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MessageRepository) FindByRoomCode(ctx context.Context, roomCode string, limit int) ([]domain.Message, error) {
	args := m.Called(ctx, roomCode, limit)
	var messages []domain.Message
	if args.Get(0) != nil {
		messages = args.Get(0).([]domain.Message)
	}
	return messages, args.Error(1)
}
