package domain

import "time"

// Role is the closed set of privileges an account can hold.
type Role string

const (
	RoleAdmin Role = "Admin"
	RoleUser  Role = "User"
)

// DefaultRole is applied to stored records that carry no role.
const DefaultRole = RoleUser

// ParseRole converts a raw role string into a Role. Matching is exact.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin, RoleUser:
		return Role(s), true
	}
	return "", false
}

func (r Role) String() string { return string(r) }

// Account models a stored user identity.
type Account struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// AccountView is the only account shape handed to callers.
type AccountView struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// View projects the account without its credentials.
func (a *Account) View() AccountView {
	return AccountView{ID: a.ID, Email: a.Email, Role: a.Role}
}

// Claims is the identity asserted by a session token.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
}
