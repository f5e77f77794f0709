package services

import (
	"classroom-live/auth"
	"classroom-live/errors"
	"classroom-live/repositories"
	"fmt"
)

type IAuthService interface {
	Login(username, password string) (Token, error)
	Register(username, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokens         auth.TokenIssuer
	passwords      auth.PasswordHasher
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IUserRepository, tokens auth.TokenIssuer, passwords auth.PasswordHasher) IAuthService {
	return &AuthService{userRepository: repo, tokens: tokens, passwords: passwords}
}

func (s *AuthService) Register(username, password string) (Token, error) {
	// Validated before any expensive hashing
	if err := auth.ValidateRegister(auth.RegisterRequest{Username: username, Password: password}); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	hashedPassword, err := s.passwords.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(username, hashedPassword)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.GenerateToken(userID, username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(username, password string) (Token, error) {
	user, err := s.userRepository.GetUserByUsername(username)
	if err != nil {
		// Same error as a wrong password, no user enumeration
		return "", errors.ErrInvalidCredentials
	}

	match, err := s.passwords.Compare(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.GenerateToken(user.ID, user.Username)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
