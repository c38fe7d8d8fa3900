package domain

import "time"

// Role scopes what a user may administer.
type Role string

// Roles.
const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// User is an account in the system. Password hashing lives in the auth
// package; this type only carries the encoded hash.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CompanyID    string    `json:"company_id,omitempty"`
	Role         Role      `json:"role"`
	IsRoot       bool      `json:"is_root"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// DisplayName returns the user's presentable name.
func (u *User) DisplayName() string {
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	return u.FirstName + " " + u.LastName
}

// IsAdmin reports whether the user can manage sessions company-wide.
func (u *User) IsAdmin() bool {
	return u.IsRoot || u.Role == RoleAdmin
}
