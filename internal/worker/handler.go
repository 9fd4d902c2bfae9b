package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"chat-hub/internal/repository"
	"chat-hub/internal/tasks"
)

// RoomActivityHandler stamps last_active on rooms that saw a message.
type RoomActivityHandler struct {
	roomRepo repository.RoomRepository
}

// NewRoomActivityHandler creates a RoomActivityHandler instance.
func NewRoomActivityHandler(roomRepo repository.RoomRepository) *RoomActivityHandler {
	return &RoomActivityHandler{roomRepo: roomRepo}
}

// ProcessTask implements asynq.Handler.
func (h *RoomActivityHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.RoomActivityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal room activity payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := h.roomRepo.TouchLastActive(ctx, payload.RoomCode); err != nil {
		logrus.WithError(err).WithField("room", payload.RoomCode).Error("Failed to touch room activity")
		return fmt.Errorf("failed to touch room %s: %w", payload.RoomCode, err)
	}
	logrus.WithField("room", payload.RoomCode).Debug("Room activity task processed")
	return nil
}

// PresenceSweeper clears presence counters that decayed to zero or expired.
type PresenceSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// PresenceSweepHandler runs the periodic presence sweep.
type PresenceSweepHandler struct {
	presence PresenceSweeper
}

// NewPresenceSweepHandler creates a PresenceSweepHandler instance.
func NewPresenceSweepHandler(presence PresenceSweeper) *PresenceSweepHandler {
	return &PresenceSweepHandler{presence: presence}
}

// ProcessTask implements asynq.Handler.
func (h *PresenceSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	cleared, err := h.presence.Sweep(ctx)
	if err != nil {
		logrus.WithError(err).Error("Presence sweep failed")
		return fmt.Errorf("presence sweep: %w", err)
	}
	logrus.WithField("cleared", cleared).Info("Presence sweep completed")
	return nil
}
