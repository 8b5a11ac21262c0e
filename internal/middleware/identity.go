package middleware

// identity.go holds the context accessors shared by the auth, guard, rate
// limit and handler code.  JWTAuth stores the authenticated principal under
// principalKey; everything downstream reads it from there.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/service"
)

const principalKey = "principal"

// SetPrincipal stores the authenticated caller on the request context.
func SetPrincipal(c echo.Context, p service.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the caller stored by JWTAuth.
func PrincipalFrom(c echo.Context) (service.Principal, bool) {
	p, ok := c.Get(principalKey).(service.Principal)
	return p, ok
}

// userID returns the caller's id, or "guest" when the request is not
// authenticated.
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok && p.User.ID != "" {
		return p.User.ID
	}
	return "guest"
}
