package domain

import "time"

const RoleAdmin = "admin"

// User models a stored account. PasswordHash never leaves the service.
type User struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	PasswordHash     string    `json:"-"`
	Role             string    `json:"role"`
	PermittedSystems []string  `json:"permitted_systems"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// UserSummary is the caller-facing view of a User.
type UserSummary struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Role             string   `json:"role"`
	PermittedSystems []string `json:"permitted_systems"`
}

// Summary projects u onto the fields callers are allowed to see.
func (u *User) Summary() UserSummary {
	systems := u.PermittedSystems
	if systems == nil {
		systems = []string{}
	}
	return UserSummary{
		ID:               u.ID,
		Name:             u.Name,
		Role:             u.Role,
		PermittedSystems: systems,
	}
}

// UserChanges carries a partial update. Nil fields are left untouched.
type UserChanges struct {
	Name             *string
	PasswordHash     *string
	Role             *string
	PermittedSystems *[]string
}

// Empty reports whether the update touches no column.
func (c UserChanges) Empty() bool {
	return c.Name == nil && c.PasswordHash == nil && c.Role == nil && c.PermittedSystems == nil
}
