package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/courseloop/api/internal/domain"
	"github.com/courseloop/api/internal/repository"
	"github.com/courseloop/api/internal/validate"
	"github.com/courseloop/api/pkg/config"
	"github.com/courseloop/api/pkg/crypto"
	jwtpkg "github.com/courseloop/api/pkg/jwt"
)

// ErrInvalidCredentials indicates the password did not match the stored hash.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service owns user records and credential verification.
type Service struct {
	users  repository.UserRepository
	logger *slog.Logger
	cfg    config.APIConfig
}

// New constructs a Service.
func New(users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{users: users, logger: logger, cfg: cfg}
}

// RegisterInput carries the registration payload.
type RegisterInput struct {
	FullName        string `json:"fullName"`
	Email           string `json:"emailAddress"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// TokenPair contains access and refresh tokens.
type TokenPair struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	ExpiresIn    time.Duration `json:"expiresIn"`
}

// Register creates a user after accumulating every field validation
// failure. A password/confirmation mismatch is treated as an empty
// password, matching the required-password message.
func (s Service) Register(ctx context.Context, input RegisterInput) (*domain.User, error) {
	fullName := strings.TrimSpace(input.FullName)
	email := strings.TrimSpace(input.Email)

	vErr := domain.NewValidationError()
	if fullName == "" {
		vErr.Add("fullName", "A name for the user is required.")
	}
	if email == "" {
		vErr.Add("emailAddress", "An email address is required.")
	} else if !validate.Email(email) {
		vErr.Add("emailAddress", "Email address must be valid")
	}
	password := ""
	if input.Password != "" && input.Password == input.ConfirmPassword {
		password = input.Password
	}
	if password == "" {
		vErr.Add("password", "Passwords empty or do not match.")
	}
	if err := vErr.Err(); err != nil {
		return nil, err
	}

	hash, err := crypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	if err := s.users.CreateUser(storageCtx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			vErr.Add("emailAddress", "Email address is already in use.")
			return nil, vErr
		}
		return nil, storageErr(err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, nil
}

// Authenticate resolves an email/password pair to a user. A missing
// account reports not-found; a hash mismatch reports invalid
// credentials. The lookup is case-insensitive on email.
func (s Service) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	user, err := s.users.GetUserByEmail(storageCtx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr(err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a token pair for bearer sessions.
func (s Service) Login(ctx context.Context, email, password string) (*domain.User, TokenPair, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	tokens, err := s.issueTokens(user.ID)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, tokens, nil
}

// Authorize validates a bearer token and returns the associated user.
func (s Service) Authorize(ctx context.Context, token string) (*domain.User, error) {
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, domain.ErrUnauthenticated
	}
	claims, err := jwtpkg.Parse(trimmed, s.cfg.JWTSecret)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	user, err := s.users.GetUserByID(storageCtx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, storageErr(err)
	}
	return user, nil
}

// GetProfile returns the caller's own record.
func (s Service) GetProfile(ctx context.Context, userID string) (*domain.User, error) {
	storageCtx, cancel := s.storageCtx(ctx)
	defer cancel()
	user, err := s.users.GetUserByID(storageCtx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, storageErr(err)
	}
	return user, nil
}

func (s Service) issueTokens(userID string) (TokenPair, error) {
	access, err := jwtpkg.GenerateToken(userID, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := jwtpkg.GenerateToken(userID, s.cfg.JWTSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.cfg.AccessTokenTTL}, nil
}

func (s Service) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.cfg.StorageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func storageErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrUnavailable
	}
	return err
}
