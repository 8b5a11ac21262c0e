package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

// Cookie names carrying the token pair.
const (
	AccessCookie  = "Secret"
	RefreshCookie = "Refresh"
)

// PrincipalLoader loads the user named by a verified access token.
type PrincipalLoader interface {
	ValidateUser(ctx context.Context, userID string) (service.Principal, error)
}

// JWTAuth verifies the access token, taken from the Secret cookie or else an
// Authorization: Bearer header, and stores the caller via SetPrincipal.
// Missing, invalid or expired tokens and tokens for deleted users are
// rejected with 401.
func JWTAuth(issuer *utils.Issuer, users PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := accessToken(c)
			if raw == "" {
				return fmt.Errorf("%w: missing access token", service.ErrUnauthorized)
			}
			claims, err := issuer.Verify(raw, utils.AccessKey)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return fmt.Errorf("%w: access token expired", service.ErrUnauthorized)
				}
				return fmt.Errorf("%w: invalid access token", service.ErrUnauthorized)
			}
			p, err := users.ValidateUser(c.Request().Context(), claims.UserID)
			if err != nil {
				return err
			}
			SetPrincipal(c, p)
			return next(c)
		}
	}
}

func accessToken(c echo.Context) string {
	if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
