// Package repository declares the storage interfaces consumed by the service
// layer. Implementations live under internal/infra.
package repository

import (
	"context"

	"chat-hub/internal/domain"
)

// UserRepository defines storage and retrieval of users.
type UserRepository interface {
	// FindByID looks a user up by primary key. Returns ErrUserNotFound if no
	// such user exists.
	FindByID(ctx context.Context, id uint) (*domain.User, error)

	// FindByEmail looks a user up by email address. Returns ErrUserNotFound
	// if no such user exists.
	FindByEmail(ctx context.Context, email string) (*domain.User, error)

	// Save creates the user when ID is zero, otherwise updates it. Unique
	// constraint violations are reported as ErrDuplicateEntry.
	Save(ctx context.Context, user *domain.User) error

	// IsVerificationCodeExists reports whether any user already holds the
	// given verification code.
	IsVerificationCodeExists(ctx context.Context, code string) (bool, error)
}
