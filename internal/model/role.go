package model

import "time"

// Role names.  Roles are reference data seeded at startup.
const (
	RoleCustomer = "CUSTOMER"
	RoleManager  = "MANAGER"
	RoleAdmin    = "ADMIN"
)

// RoleNames lists every seeded role.
var RoleNames = []string{RoleCustomer, RoleManager, RoleAdmin}

// ValidRoleName reports whether name is one of RoleNames.
func ValidRoleName(name string) bool {
	for _, r := range RoleNames {
		if r == name {
			return true
		}
	}
	return false
}

// Role is a row in the `roles` table.
type Role struct {
	ID        string    // roles.id
	Name      string    // roles.name
	CreatedAt time.Time // roles.created_at
	UpdatedAt time.Time // roles.updated_at
}
