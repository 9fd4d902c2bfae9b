package domain

import "time"

// Category classifies a room in the public catalog. Rooms created by users
// are always CategoryCustom.
type Category string

const (
	CategoryStudents      Category = "students"
	CategoryParents       Category = "parents"
	CategoryPolitical     Category = "political"
	CategoryEntertainment Category = "entertainment"
	CategoryCustom        Category = "custom"
)

// Room represents a chat room. The code is the room's public identity:
// 8 chars, uppercase letters and digits, globally unique and immutable once
// assigned. Rooms are never deleted.
type Room struct {
	ID         uint      `gorm:"primaryKey"`
	Code       string    `gorm:"type:varchar(8);uniqueIndex:idx_code;not null"`
	Name       string    `gorm:"type:varchar(100);not null"`
	Category   Category  `gorm:"type:varchar(50);not null"`
	IsPublic   bool      `gorm:"not null;default:false"` // catalog-listed vs private
	CreatorID  uint      `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
	LastActive time.Time `gorm:"index"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}
