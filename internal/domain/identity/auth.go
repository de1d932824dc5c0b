package identity

import (
	"github.com/etribe/portal/internal/domain/shared"
)

// Role is the portal the signed-in user belongs to.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole maps a stored role string to a Role, defaulting to RoleUser.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// IsAdmin reports whether r is the admin role
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// String returns the role name
func (r Role) String() string { return string(r) }

// AuthContext is the authentication state derived from the session at call
// time. Any field may be empty.
type AuthContext struct {
	Token  string `json:"-"`
	UID    string `json:"uid"`
	Role   Role   `json:"role"`
	RoleID string `json:"role_id"`
}

// IsAuthenticated reports whether a token is present
func (a AuthContext) IsAuthenticated() bool {
	return a.Token != ""
}

// Authentication errors
var (
	ErrNotAuthenticated   = shared.NewDomainError("NOT_AUTHENTICATED", "Please log in to continue")
	ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid email or password")
	ErrSessionExpired     = shared.NewDomainError("SESSION_EXPIRED", "Your session has expired, please log in again")
	ErrMissingUserID      = shared.NewDomainError("MISSING_USER_ID", "User id is missing from the session")
)
