package service

import (
	"context"
	"crypto/rand"
	"fmt"

	"github.com/sirupsen/logrus"

	"chat-hub/internal/repository"
)

// codeAlphabet is the shared alphabet for room and verification codes:
// uppercase letters and digits, 36 symbols. The codes carry no structure —
// no checksum, no sequence — so the retry loop against the store is the
// uniqueness mechanism, not the alphabet size.
const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

const (
	roomCodeLength         = 8
	verificationCodeLength = 10
	maxCodeAttempts        = 10
)

// CodeService generates the short unique identifiers used across the
// application: 8-char room codes and 10-char user verification codes.
// Uniqueness is enforced against the durable store.
type CodeService struct {
	roomRepo repository.RoomRepository
	userRepo repository.UserRepository
}

// NewCodeService creates a CodeService instance.
func NewCodeService(roomRepo repository.RoomRepository, userRepo repository.UserRepository) *CodeService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for CodeService")
	}
	if userRepo == nil {
		panic("UserRepository cannot be nil for CodeService")
	}
	return &CodeService{roomRepo: roomRepo, userRepo: userRepo}
}

// GenerateRoomCode draws 8-char codes until one is not present in the store.
func (s *CodeService) GenerateRoomCode(ctx context.Context) (string, error) {
	return s.generateUnique(ctx, roomCodeLength, "room code", s.roomRepo.IsCodeExists)
}

// GenerateVerificationCode draws 10-char codes until one is not held by any
// existing user.
func (s *CodeService) GenerateVerificationCode(ctx context.Context) (string, error) {
	return s.generateUnique(ctx, verificationCodeLength, "verification code", s.userRepo.IsVerificationCodeExists)
}

func (s *CodeService) generateUnique(ctx context.Context, length int, kind string, exists func(context.Context, string) (bool, error)) (string, error) {
	b := make([]byte, length)
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
		}
		code := string(b)

		taken, err := exists(ctx, code)
		if err != nil {
			logrus.WithError(err).WithField("code", code).Errorf("Database error checking %s uniqueness", kind)
			return "", fmt.Errorf("database error checking %s: %w", kind, err)
		}
		if !taken {
			logrus.WithField("code", code).Debugf("Generated unique %s after %d attempt(s)", kind, attempt+1)
			return code, nil
		}
		logrus.WithField("code", code).Warnf("Generated %s already exists, retrying (attempt %d)...", kind, attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique %s after %d attempts", kind, maxCodeAttempts)
}
