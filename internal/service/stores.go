package service

import (
	"context"

	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/queue"
)

// Lookups return repository.ErrNotFound when nothing matches and inserts
// return repository.ErrDuplicate on unique-key violations.

// UserStore persists users and their role links.
type UserStore interface {
	// Create inserts the user and its first role link atomically.
	Create(ctx context.Context, u model.User, roleID string) error
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByID(ctx context.Context, id string) (model.User, error)
	RoleLinks(ctx context.Context, userID string) ([]model.UserRole, error)
	// AddRole links a role; linking an existing pair is not an error.
	AddRole(ctx context.Context, userID, roleID string) error
}

// RoleStore reads the seeded roles.
type RoleStore interface {
	NamesByIDs(ctx context.Context, ids []string) ([]string, error)
	GetByName(ctx context.Context, name string) (model.Role, error)
	List(ctx context.Context) ([]model.Role, error)
}

// TokenStore persists one token row per (user, type).
type TokenStore interface {
	// WithLocked runs fn while holding an exclusive lock on the user's row of
	// the given type.  fn receives the current row, nil when there is none,
	// and returns the value to store; an empty value leaves the row as is.
	// An error from fn aborts without writing.
	WithLocked(ctx context.Context, userID string, typ model.TokenType, fn func(cur *model.Token) (string, error)) error
	Get(ctx context.Context, userID string, typ model.TokenType) (model.Token, error)
	Delete(ctx context.Context, userID string, typ model.TokenType) error
}

// ProjectStore persists projects and memberships.
type ProjectStore interface {
	// Create inserts the project and its first member atomically.
	Create(ctx context.Context, p model.Project, owner model.Member) error
	Get(ctx context.Context, id string) (model.Project, error)
	ListForUser(ctx context.Context, userID string) ([]model.Project, error)
	GetMember(ctx context.Context, projectID, userID string) (model.Member, error)
	AddMember(ctx context.Context, m model.Member) error
}

// EventPublisher ships audit events.  Failures never fail a request.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}
