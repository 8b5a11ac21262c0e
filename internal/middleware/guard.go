package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/logger"
	"github.com/iliyamo/account-service/internal/service"
)

// Policy maps an operation id to the roles allowed to call it.  An operation
// with no entry, or an empty role list, is open to every caller that got
// past authentication.
type Policy map[string][]string

// Operation builds the id used as a Policy key, e.g. "POST /api/v1/projects".
func Operation(method, path string) string { return method + " " + path }

// RoleSource resolves the role names of a caller.
type RoleSource interface {
	RoleNames(ctx context.Context, p service.Principal) ([]string, error)
}

// Guard enforces policy on the matched route.  Roles come from the caller's
// stored role links, not from token claims.  The caller needs any one of the
// required roles.
func Guard(policy Policy, roles RoleSource, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			op := Operation(c.Request().Method, c.Path())
			required := policy[op]
			if len(required) == 0 {
				return next(c)
			}
			p, ok := PrincipalFrom(c)
			if !ok {
				return fmt.Errorf("%w: authentication required", service.ErrUnauthorized)
			}
			names, err := roles.RoleNames(c.Request().Context(), p)
			if err != nil && !errors.Is(err, service.ErrRolesNotFound) {
				return err
			}
			if !service.Allowed(required, names) {
				log.Debug().Str("user_id", p.User.ID).Str("operation", op).Strs("roles", names).Msg("access denied")
				return fmt.Errorf("%w: insufficient role", service.ErrForbidden)
			}
			return next(c)
		}
	}
}
