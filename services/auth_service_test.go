package services

import (
	"classroom-live/auth"
	"classroom-live/errors"
	"classroom-live/mocks"
	"classroom-live/repositories"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuthService_Register(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("test-secret", 24*time.Hour)
	passwords := newPasswordHasher(t)
	svc := NewAuthService(mockRepo, tokens, passwords)

	t.Run("should register successfully when input is valid", func(t *testing.T) {
		req := require.New(t)
		username := "alice"
		password := "ComplexPass123!"

		// Expect CreateUser to be called with a hashed password (not the plain one)
		mockRepo.EXPECT().
			CreateUser(username, gomock.Not(password)).
			Return("user-uuid", nil).
			Times(1)

		token, err := svc.Register(username, password)

		req.NoError(err)
		claims, err := tokens.ValidateToken(token.String())
		req.NoError(err)
		req.Equal("user-uuid", claims.UserID)
		req.Equal(username, claims.Username)
	})

	t.Run("should fail when password complexity is not met", func(t *testing.T) {
		req := require.New(t)

		// Repository should never be called
		mockRepo.EXPECT().CreateUser(gomock.Any(), gomock.Any()).Times(0)

		token, err := svc.Register("alice", "simple")

		req.ErrorIs(err, errors.ErrInvalidPassword)
		req.Empty(token)
	})

	t.Run("should fail when user already exists in repository", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			CreateUser("bob", gomock.Any()).
			Return("", errors.ErrUserAlreadyExists).
			Times(1)

		_, err := svc.Register("bob", "ComplexPass123!")

		req.ErrorIs(err, errors.ErrUserAlreadyExists)
	})
}

func TestAuthService_Login(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockIUserRepository(ctrl)
	tokens := auth.NewTokenIssuer("test-secret", 24*time.Hour)
	passwords := newPasswordHasher(t)
	svc := NewAuthService(mockRepo, tokens, passwords)

	t.Run("should login successfully with correct credentials", func(t *testing.T) {
		req := require.New(t)
		password := "Secret123456!"

		hashedPassword, err := passwords.Hash(password)
		req.NoError(err)
		storedUser := repositories.User{ID: "uuid-123", Username: "alice", PasswordHash: hashedPassword}

		mockRepo.EXPECT().GetUserByUsername("alice").Return(storedUser, nil).Times(1)

		token, err := svc.Login("alice", password)
		req.NoError(err)

		claims, err := tokens.ValidateToken(string(token))
		req.NoError(err)
		req.Equal(storedUser.ID, claims.UserID)
	})

	t.Run("should return invalid credentials when password matches nothing", func(t *testing.T) {
		req := require.New(t)

		hashedPassword, err := passwords.Hash("CorrectPassword123!")
		req.NoError(err)
		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(repositories.User{Username: "alice", PasswordHash: hashedPassword}, nil).
			Times(1)

		_, err = svc.Login("alice", "WrongPassword123!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when the stored hash is corrupted", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("alice").
			Return(repositories.User{Username: "alice", PasswordHash: "salt$hash"}, nil).
			Times(1)

		_, err := svc.Login("alice", "Secret123456!")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})

	t.Run("should return invalid credentials when user is not found", func(t *testing.T) {
		req := require.New(t)

		mockRepo.EXPECT().
			GetUserByUsername("unknown").
			Return(repositories.User{}, errors.ErrInvalidCredentials).
			Times(1)

		_, err := svc.Login("unknown", "anyPassword")

		req.ErrorIs(err, errors.ErrInvalidCredentials)
	})
}

func newPasswordHasher(t *testing.T) auth.PasswordHasher {
	hasher, err := auth.NewPasswordHasher(auth.Argon2Params{MemoryKiB: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	return hasher
}
