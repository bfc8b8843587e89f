package domain

import "time"

// Role controls which delivery records a user may see.
type Role string

const (
	RoleMember Role = "MEMBER"
	RoleAdmin  Role = "ADMIN"
)

// User represents an authenticated courier or the administrator.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// CanSee reports whether u may read records owned by owner.
func (u User) CanSee(owner string) bool {
	return u.IsAdmin() || u.Username == owner
}
