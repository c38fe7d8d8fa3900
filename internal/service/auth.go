package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pulsecheckapp/pulsecheck-server/internal/auth"
	"github.com/pulsecheckapp/pulsecheck-server/internal/clock"
	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	apperrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"
	"github.com/pulsecheckapp/pulsecheck-server/internal/id"
	"github.com/pulsecheckapp/pulsecheck-server/internal/store"
)

// AuthService handles user authentication (setup, login, token verification).
type AuthService struct {
	store        *store.Store
	tokenService *auth.TokenService
	clock        clock.Clock
	logger       *slog.Logger
}

// NewAuthService creates a new authentication service.
func NewAuthService(st *store.Store, tokenService *auth.TokenService, clk clock.Clock, logger *slog.Logger) *AuthService {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &AuthService{
		store:        st,
		tokenService: tokenService,
		clock:        clk,
		logger:       logger,
	}
}

// SetupRequest contains the initial root user creation data.
type SetupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8,max=1024"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name" validate:"required"`
	CompanyID string `json:"company_id" validate:"required"`
}

// LoginRequest contains user credentials.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest contains data for creating an additional user.
type RegisterRequest struct {
	Email     string      `json:"email" validate:"required,email"`
	Password  string      `json:"password" validate:"required,min=8,max=1024"`
	FirstName string      `json:"first_name" validate:"required"`
	LastName  string      `json:"last_name" validate:"required"`
	CompanyID string      `json:"company_id" validate:"required"`
	Role      domain.Role `json:"role" validate:"required,oneof=admin manager employee"`
}

// AuthResponse contains the authenticated user and their access token.
type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
}

// Setup creates the first user (root admin). Usable exactly once, before
// any users exist.
func (s *AuthService) Setup(ctx context.Context, req SetupRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	hasUsers, err := s.store.HasAnyUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("check setup status: %w", err)
	}
	if hasUsers {
		return nil, apperrors.Conflict("setup already completed")
	}

	user, err := s.createUser(ctx, req.Email, req.Password, req.FirstName, req.LastName, req.CompanyID, domain.RoleAdmin, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info("initial setup completed", "user_id", user.ID, "company_id", user.CompanyID)
	return s.respondWithToken(user)
}

// Register creates an additional user. Caller authorization (only admins
// may register users) is the handler's job.
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*domain.User, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, req.Email, req.Password, req.FirstName, req.LastName, req.CompanyID, req.Role, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

func (s *AuthService) createUser(ctx context.Context, email, password, firstName, lastName, companyID string, role domain.Role, isRoot bool) (*domain.User, error) {
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	userID, err := id.Generate("user")
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	now := s.clock.Now()
	user := &domain.User{
		ID:           userID,
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    firstName,
		LastName:     lastName,
		CompanyID:    companyID,
		Role:         role,
		IsRoot:       isRoot,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, apperrors.AlreadyExists("a user with this email already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// Login authenticates a user and issues an access token.
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Same error as a bad password so the response does not reveal
			// which part was wrong.
			return nil, apperrors.InvalidCredentials("invalid email or password")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, req.Password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, apperrors.InvalidCredentials("invalid email or password")
	}

	user.LastLoginAt = s.clock.Now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		s.logger.Warn("failed to record last login", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return s.respondWithToken(user)
}

// VerifyToken validates an access token and loads its user.
func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*domain.User, *auth.AccessClaims, error) {
	claims, err := s.tokenService.VerifyAccessToken(tokenString)
	if err != nil {
		return nil, nil, apperrors.Unauthorized("invalid token").WithCause(err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, apperrors.Unauthorized("user no longer exists")
		}
		return nil, nil, fmt.Errorf("get user: %w", err)
	}

	return user, claims, nil
}

func (s *AuthService) respondWithToken(user *domain.User) (*AuthResponse, error) {
	accessToken, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}

	return &AuthResponse{
		User:        user,
		AccessToken: accessToken,
		ExpiresIn:   int64(s.tokenService.AccessTokenDuration().Seconds()),
	}, nil
}
