package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/pulsecheckapp/pulsecheck-server/internal/auth"
	"github.com/pulsecheckapp/pulsecheck-server/internal/domain"
	domainerrors "github.com/pulsecheckapp/pulsecheck-server/internal/errors"
	"github.com/pulsecheckapp/pulsecheck-server/internal/service"
)

// ctxKey is the type for context keys to avoid collisions.
type ctxKey string

// claimsKey is the context key for the authenticated user's claims.
const claimsKey ctxKey = "claims"

// GetClaims returns the authenticated user's claims from context.
// Returns a 401 error if the request is not authenticated.
func GetClaims(ctx context.Context) (*auth.AccessClaims, error) {
	claims, ok := ctx.Value(claimsKey).(*auth.AccessClaims)
	if !ok || claims == nil {
		return nil, huma.Error401Unauthorized("Authentication required")
	}
	return claims, nil
}

// setClaims stores the claims in context.
func setClaims(ctx context.Context, claims *auth.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// authMiddleware validates Bearer tokens and stores the claims in context.
// If no token is present or invalid, continues without claims; handlers use
// GetClaims to reject where authentication is required.
func authMiddleware(authService *service.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			token := authHeader[7:]
			_, claims, err := authService.VerifyToken(r.Context(), token)
			if err != nil {
				// Invalid token, continue without claims.
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(setClaims(r.Context(), claims)))
		})
	}
}

// RequireManager validates the caller is authenticated with manager-level
// access. Returns the claims if successful.
func RequireManager(ctx context.Context) (*auth.AccessClaims, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}
	if !claims.IsManager() {
		return nil, domainerrors.Forbidden("Manager access required")
	}
	return claims, nil
}

// RequireAdmin validates the caller is authenticated with admin role.
func RequireAdmin(ctx context.Context) (*auth.AccessClaims, error) {
	claims, err := GetClaims(ctx)
	if err != nil {
		return nil, err
	}
	if !claims.IsRoot && claims.Role != domain.RoleAdmin {
		return nil, domainerrors.Forbidden("Admin access required")
	}
	return claims, nil
}
