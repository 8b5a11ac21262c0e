package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/account-service/internal/logger"
)

// RoleResolver turns role-link ids into role names.  It backs both the role
// list embedded in tokens and the authorization guard.
type RoleResolver struct {
	store RoleStore
	log   logger.Logger
}

func NewRoleResolver(store RoleStore, log logger.Logger) *RoleResolver {
	return &RoleResolver{store: store, log: log}
}

// Resolve returns the names of the roles whose ids are given.  When none of
// the ids match, ErrRolesNotFound is returned.  Ids that match nothing are
// dropped and logged.
func (r *RoleResolver) Resolve(ctx context.Context, roleIDs []string) ([]string, error) {
	ids := dedupe(roleIDs)
	if len(ids) == 0 {
		return nil, ErrRolesNotFound
	}
	names, err := r.store.NamesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	if len(names) == 0 {
		return nil, ErrRolesNotFound
	}
	if len(names) < len(ids) {
		r.log.Warn().Strs("role_ids", ids).Strs("resolved", names).Msg("some role ids did not resolve")
	}
	return names, nil
}

// Names lists every known role name.
func (r *RoleResolver) Names(ctx context.Context) ([]string, error) {
	roles, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names, nil
}

// Allowed reports whether callerRoles intersects required.  An empty
// required set allows everyone.
func Allowed(required, callerRoles []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(callerRoles))
	for _, r := range callerRoles {
		have[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; ok {
			return true
		}
	}
	return false
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
