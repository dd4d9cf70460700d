package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/relaychat/relaychat-server/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{2,32}$`)

const maxDisplayName = 64

// Service provides authentication operations.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// Register creates a new user with hashed password and returns the stored
// username and a JWT token. Usernames are lowercased so identity lookups
// stay case-insensitive.
func (s *Service) Register(ctx context.Context, username, displayName, password string) (string, string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if !usernameRe.MatchString(username) {
		return "", "", ErrInvalidUsername
	}

	password = strings.TrimSpace(password)
	if len(password) < 4 {
		return "", "", ErrInvalidPassword
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = username
	}
	if runes := []rune(displayName); len(runes) > maxDisplayName {
		displayName = string(runes[:maxDisplayName])
	}

	existing, err := s.store.GetUserByUsername(ctx, username)
	if err == nil && existing != nil {
		return "", "", ErrUserExists
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}

	user, err := s.store.CreateUser(ctx, username, displayName, hashedPassword)
	if err != nil {
		return "", "", fmt.Errorf("create user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.Username)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}

	return user.Username, token, nil
}

// Login validates credentials and returns the stored username and a JWT token.
func (s *Service) Login(ctx context.Context, username, password string) (string, string, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	user, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", ErrInvalidCredentials
	}

	if errPwd := ComparePassword(user.PasswordHash, strings.TrimSpace(password)); errPwd != nil {
		return "", "", ErrInvalidCredentials
	}

	token, err := GenerateToken(s.jwtConfig, user.Username)
	if err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}

	return user.Username, token, nil
}

// Refresh exchanges a still-valid token for a fresh one.
func (s *Service) Refresh(tokenString string) (string, error) {
	username, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return "", err
	}
	return GenerateToken(s.jwtConfig, username)
}

// Verify validates a token and returns the subject username. This is the
// sole gate into the connection registry.
func (s *Service) Verify(tokenString string) (string, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
