package domain

import "time"

// Message is a single chat message. Immutable once created; there is no edit
// or delete path. RoomCode must reference an existing room at write time.
// Ordering within a room is by Timestamp, ties broken by insertion ID.
type Message struct {
	ID        uint      `gorm:"primaryKey"`
	Content   string    `gorm:"type:text;not null"`
	UserID    uint      `gorm:"index;not null"`
	RoomCode  string    `gorm:"type:varchar(8);index;not null"`
	Timestamp time.Time `gorm:"index;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// DisplayClock is the wall-clock format shown next to messages and status
// notices, matching what clients render.
const DisplayClock = "15:04"
