// Package tasks defines the asynq task types and payloads exchanged between
// the hub and the background worker.
package tasks

import "encoding/json"

// Task type constants.
const (
	// TypeRoomActivity stamps a room's last_active column after a message
	// was posted to it.
	TypeRoomActivity = "room:activity"

	// TypePresenceSweep periodically clears decayed presence counters.
	TypePresenceSweep = "presence:sweep"
)

// RoomActivityPayload carries the room whose activity timestamp to refresh.
type RoomActivityPayload struct {
	RoomCode string `json:"room_code"`
}

// NewRoomActivityTask builds the payload for a room activity task.
func NewRoomActivityTask(roomCode string) ([]byte, error) {
	return json.Marshal(RoomActivityPayload{RoomCode: roomCode})
}

// NewPresenceSweepTask builds the payload for a presence sweep task. The
// sweep takes no arguments; the payload exists so the scheduler has bytes to
// register.
func NewPresenceSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
