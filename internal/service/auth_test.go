package service_test

import (
	"context"
	"encoding/hex"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheckapp/pulsecheck-server/internal/auth"
	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	apperrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"
)

func setupAuth(t *testing.T) (*testEnv, *service.AuthService) {
	t.Helper()
	env := setupEnv(t)

	key, err := auth.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(hex.EncodeToString(key), time.Hour, 30*24*time.Hour)
	require.NoError(t, err)

	return env, service.NewAuthService(env.store, tokens, env.clock, slog.New(slog.DiscardHandler))
}

func setupRequest() service.SetupRequest {
	return service.SetupRequest{
		Email:     "admin@acme.test",
		Password:  "a long enough password",
		FirstName: "Alex",
		LastName:  "Kim",
		CompanyID: "comp-1",
	}
}

func TestSetup_CreatesRootAdminOnce(t *testing.T) {
	_, svc := setupAuth(t)

	resp, err := svc.Setup(context.Background(), setupRequest())
	require.NoError(t, err)
	assert.True(t, resp.User.IsRoot)
	assert.Equal(t, domain.RoleAdmin, resp.User.Role)
	assert.NotEmpty(t, resp.AccessToken)

	_, err = svc.Setup(context.Background(), setupRequest())
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestLogin_VerifiesCredentials(t *testing.T) {
	env, svc := setupAuth(t)

	_, err := svc.Setup(context.Background(), setupRequest())
	require.NoError(t, err)

	resp, err := svc.Login(context.Background(), service.LoginRequest{
		Email:    "Admin@Acme.Test", // email lookup is case-insensitive
		Password: "a long enough password",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)

	stored, err := env.store.GetUser(context.Background(), resp.User.ID)
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), stored.LastLoginAt)

	_, err = svc.Login(context.Background(), service.LoginRequest{
		Email:    "admin@acme.test",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	// Unknown user reads identically to a wrong password.
	_, err = svc.Login(context.Background(), service.LoginRequest{
		Email:    "nobody@acme.test",
		Password: "whatever",
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
}

func TestRegister_DuplicateEmailRejected(t *testing.T) {
	_, svc := setupAuth(t)

	_, err := svc.Setup(context.Background(), setupRequest())
	require.NoError(t, err)

	req := service.RegisterRequest{
		Email:     "pat@acme.test",
		Password:  "another good password",
		FirstName: "Pat",
		LastName:  "Reyes",
		CompanyID: "comp-1",
		Role:      domain.RoleEmployee,
	}
	user, err := svc.Register(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, user.IsRoot)

	_, err = svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
}

func TestVerifyToken_RoundTrip(t *testing.T) {
	_, svc := setupAuth(t)

	resp, err := svc.Setup(context.Background(), setupRequest())
	require.NoError(t, err)

	user, claims, err := svc.VerifyToken(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, user.ID)
	assert.Equal(t, "comp-1", claims.CompanyID)
	assert.True(t, claims.IsManager())

	_, _, err = svc.VerifyToken(context.Background(), "v4.local.garbage")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}
