package auth

import (
	"encoding/hex"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)

	ok, err := VerifyPassword(hash, "correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword(hash, "wrong password")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_RejectsEmptyAndOversized(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)

	long := make([]byte, maxPasswordLength+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err = HashPassword(string(long))
	assert.Error(t, err)
}

func TestVerifyPassword_MalformedHashIsNotAMatch(t *testing.T) {
	ok, err := VerifyPassword("$not$a$real$hash", "anything")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadOrGenerateKey_PersistsAcrossLoads(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	require.Len(t, first, keyLength)

	second, err := LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.FileExists(t, filepath.Join(dir, "auth.key"))
}

func newTestTokenService(t *testing.T, accessDuration time.Duration) *TokenService {
	t.Helper()

	key, err := LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	svc, err := NewTokenService(hex.EncodeToString(key), accessDuration, 30*24*time.Hour)
	require.NoError(t, err)
	return svc
}

func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	user := &domain.User{
		ID:        "user_abc123",
		Email:     "manager@acme.test",
		CompanyID: "comp-1",
		Role:      domain.RoleManager,
	}

	tokenString, err := svc.GenerateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(tokenString)
	require.NoError(t, err)

	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Email, claims.Email)
	assert.Equal(t, user.CompanyID, claims.CompanyID)
	assert.Equal(t, domain.RoleManager, claims.Role)
	assert.False(t, claims.IsRoot)
	assert.True(t, claims.IsManager())
}

func TestTokenService_EmployeeIsNotManager(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	tokenString, err := svc.GenerateAccessToken(&domain.User{
		ID:        "user_emp1",
		Email:     "emp@acme.test",
		CompanyID: "comp-1",
		Role:      domain.RoleEmployee,
	})
	require.NoError(t, err)

	claims, err := svc.VerifyAccessToken(tokenString)
	require.NoError(t, err)
	assert.False(t, claims.IsManager())
}

func TestTokenService_ExpiredTokenRejected(t *testing.T) {
	svc := newTestTokenService(t, -time.Minute)

	tokenString, err := svc.GenerateAccessToken(&domain.User{
		ID:    "user_abc123",
		Email: "manager@acme.test",
	})
	require.NoError(t, err)

	_, err = svc.VerifyAccessToken(tokenString)
	assert.Error(t, err)
}

func TestTokenService_RejectsWrongKey(t *testing.T) {
	issuer := newTestTokenService(t, time.Hour)
	verifier := newTestTokenService(t, time.Hour)

	tokenString, err := issuer.GenerateAccessToken(&domain.User{ID: "user_abc123", Email: "a@b.test"})
	require.NoError(t, err)

	_, err = verifier.VerifyAccessToken(tokenString)
	assert.Error(t, err)
}

func TestHashRefreshToken_Stable(t *testing.T) {
	svc := newTestTokenService(t, time.Hour)

	token, err := svc.GenerateRefreshToken()
	require.NoError(t, err)

	assert.Equal(t, HashRefreshToken(token), HashRefreshToken(token))

	other, err := svc.GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, HashRefreshToken(token), HashRefreshToken(other))
}
