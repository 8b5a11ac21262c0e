package model

import "time"

// User represents an account record as stored in the `users` table.  The
// json tags are omitted because handlers define their own response shapes.
//
// Fields:
//
//	ID           – UUID primary key.
//	Email        – unique, lower-cased email address.
//	FirstName    – given name.
//	LastName     – family name.
//	PasswordHash – bcrypt hash; never the plain password.
//	Avatar       – URL of the generated avatar image.
type User struct {
	ID           string    // users.id
	Email        string    // users.email
	FirstName    string    // users.first_name
	LastName     string    // users.last_name
	PasswordHash string    // users.password
	Avatar       string    // users.avatar
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// FullName joins first and last name the way it is shown in tokens.
func (u User) FullName() string { return u.FirstName + " " + u.LastName }

// UserRole is one row of the `user_roles` join table.
type UserRole struct {
	UserID string // user_roles.user_id
	RoleID string // user_roles.role_id
}

// RoleIDs extracts the role ids from a set of links.
func RoleIDs(links []UserRole) []string {
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.RoleID)
	}
	return ids
}
