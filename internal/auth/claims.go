package auth

import "github.com/pulsecheckapp/pulsecheck-server/internal/domain"

// AccessClaims are the application claims carried inside an access token.
// Standard PASETO claims (exp, iat, nbf, iss, aud, jti) are handled by the
// token layer and are not duplicated here.
type AccessClaims struct {
	UserID    string      `json:"user_id"`
	Email     string      `json:"email"`
	CompanyID string      `json:"company_id"`
	Role      domain.Role `json:"role"`
	IsRoot    bool        `json:"is_root"`
}

// IsManager reports whether the claims grant manager-level access, which
// gates session administration and the manager-only event stream.
func (c *AccessClaims) IsManager() bool {
	return c.IsRoot || c.Role == domain.RoleManager || c.Role == domain.RoleAdmin
}
