package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mutairu-Lawal/pro-manage/internal/domain"
	"github.com/Mutairu-Lawal/pro-manage/internal/repository"
	"github.com/Mutairu-Lawal/pro-manage/pkg/crypto"
)

var (
	// ErrInvalidRole is returned when registration names an unknown role.
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidCredentials covers both unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// TokenIssuer mints a session token for a user.
type TokenIssuer interface {
	Issue(userID int64) (string, error)
}

// Service handles authentication workflows.
type Service struct {
	users      repository.UserRepository
	tokens     TokenIssuer
	logger     *slog.Logger
	bcryptCost int

	// dummyHash is compared against when the email is unknown, so a miss
	// costs the same bcrypt work as a wrong password.
	dummyHash string
}

// New constructs a Service.
func New(users repository.UserRepository, tokens TokenIssuer, logger *slog.Logger, bcryptCost int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{users: users, tokens: tokens, logger: logger, bcryptCost: bcryptCost}
	hash, err := crypto.HashPassword("pro-manage-dummy-password", bcryptCost)
	if err != nil {
		logger.Error("prepare dummy hash", "error", err)
	}
	s.dummyHash = hash
	return s
}

// RegisterInput is validated registration data.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Profile is the public view of a user.
type Profile struct {
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

// Register creates a user with a hashed password.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	role, ok := domain.ParseRole(in.Role)
	if !ok {
		return nil, ErrInvalidRole
	}
	if _, err := s.users.GetUserByEmail(ctx, in.Email); err == nil {
		return nil, repository.ErrDuplicateEmail
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := crypto.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, domain.NewUser{
		Name:         in.Name,
		Email:        in.Email,
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login verifies credentials and returns a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		crypto.VerifyPassword(s.dummyHash, password)
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", err
	}
	if !crypto.VerifyPassword(user.PasswordHash, password) {
		s.logger.Warn("login rejected", "user_id", user.ID)
		return "", ErrInvalidCredentials
	}
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return "", err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return token, nil
}

// Profile returns the public view of userID.
func (s *Service) Profile(ctx context.Context, userID int64) (Profile, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	return Profile{Name: user.Name, Email: user.Email, Role: user.Role, CreatedAt: user.CreatedAt}, nil
}
