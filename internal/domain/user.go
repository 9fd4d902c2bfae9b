// Package domain defines the persistent data models of the application.
package domain

import "time"

// User represents a registered chat user.
type User struct {
	ID       uint   `gorm:"primaryKey"`
	Name     string `gorm:"type:varchar(100);not null"`
	Email    string `gorm:"type:varchar(191);uniqueIndex:idx_email;not null"`
	Password string `gorm:"type:text;not null"` // bcrypt hash, never the plaintext
	// VerificationCode is a secondary identity shown to other room members on
	// demand. 10 chars, uppercase letters and digits, unique across all users.
	VerificationCode string    `gorm:"type:varchar(10);uniqueIndex:idx_verification_code;not null"`
	CreatedAt        time.Time `gorm:"autoCreateTime"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime"`
}
