package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"kanbanBackend/internal/auth"
	"kanbanBackend/models"
	"kanbanBackend/repository"
)

// TokenIssuer mints a bearer token for a user id.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// RegisterInput carries the fields of a registration request.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// AuthService registers users and logs them in.
// The API key required for registration is enforced by the access gate.
type AuthService struct {
	users      repository.UserRepositoryI
	tokens     TokenIssuer
	bcryptCost int
	logger     *slog.Logger
}

// NewAuthService wires an AuthService. A bcryptCost of 0 uses the bcrypt default.
func NewAuthService(users repository.UserRepositoryI, tokens TokenIssuer, bcryptCost int, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{users: users, tokens: tokens, bcryptCost: bcryptCost, logger: logger}
}

// Register stores a new user with a hashed password and returns its id.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (int64, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if in.Username == "" || in.Email == "" || in.Password == "" {
		return 0, fmt.Errorf("%w: username, email and password are required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return 0, fmt.Errorf("%w: password longer than 72 bytes", ErrInvalidInput)
		}
		return 0, err
	}
	u, err := s.users.Create(ctx, &models.User{Username: in.Username, Email: in.Email, Password: hash})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return 0, fmt.Errorf("register %q: %w", in.Username, ErrDuplicate)
		}
		return 0, storeErr("register", err)
	}
	s.logger.InfoContext(ctx, "user registered", "user_id", u.ID)
	return u.ID, nil
}

// Login checks the credentials and returns a signed token for the user.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", storeErr("login", err)
	}
	if u == nil {
		return "", fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err := auth.CheckPassword(u.Password, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return "", fmt.Errorf("user %d: %w", u.ID, ErrUnauthorized)
		}
		return "", err
	}
	tok, err := s.tokens.Issue(u.ID)
	if err != nil {
		return "", err
	}
	return tok, nil
}
