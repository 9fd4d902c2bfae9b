package bootstrap

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"chat-hub/internal/domain"
	"chat-hub/internal/repository"
	"chat-hub/internal/repository/mocks"
)

func seedTestApp(userRepo *mocks.UserRepository) *App {
	return &App{
		Config: &Config{
			AdminEmail:    "admin@chat.com",
			AdminPassword: "admin123",
		},
		Log:      logrus.New(),
		userRepo: userRepo,
	}
}

func TestApp_SeedAdmin_CreatesFixedIdentity(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	app := seedTestApp(mockUserRepo)
	ctx := context.Background()

	mockUserRepo.On("FindByEmail", ctx, "admin@chat.com").
		Return(nil, repository.ErrNotFound).Once()
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		assert.Equal(t, "Admin", user.Name)
		assert.Equal(t, "admin@chat.com", user.Email)
		// The admin's verification code is the well-known constant, never a
		// generated one.
		assert.Equal(t, "ADMIN12345", user.VerificationCode)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte("admin123")))
		return true
	})).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.User).ID = 1
		}).
		Return(nil).
		Once()

	// Act
	adminID, err := app.seedAdmin(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(1), adminID)

	mockUserRepo.AssertExpectations(t)
}

func TestApp_SeedAdmin_Idempotent(t *testing.T) {
	// Arrange: the admin already exists; no second account is created.
	mockUserRepo := new(mocks.UserRepository)
	app := seedTestApp(mockUserRepo)
	ctx := context.Background()

	existing := &domain.User{ID: 1, Name: "Admin", Email: "admin@chat.com", VerificationCode: "ADMIN12345"}
	mockUserRepo.On("FindByEmail", ctx, "admin@chat.com").Return(existing, nil).Once()

	// Act
	adminID, err := app.seedAdmin(ctx)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, uint(1), adminID)
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}
