package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

// cookieTTL is the lifetime of both token cookies.
const cookieTTL = 7 * 24 * time.Hour

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	auth          *service.AuthService
	roles         *service.RoleResolver
	secureCookies bool
}

// NewAuthHandler panics on nil dependencies.  secureCookies marks the token
// cookies Secure and is set in production.
func NewAuthHandler(auth *service.AuthService, roles *service.RoleResolver, secureCookies bool) *AuthHandler {
	if auth == nil || roles == nil {
		panic("nil dependency passed to NewAuthHandler")
	}
	return &AuthHandler{auth: auth, roles: roles, secureCookies: secureCookies}
}

// ----- DTOs -----

type registerReq struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=256"`
	LastName  string `json:"lastName" validate:"required,min=2,max=256"`
	Email     string `json:"email" validate:"required,email,max=256"`
	Password  string `json:"password" validate:"required,strongpassword"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type refreshReq struct {
	Token string `json:"token" validate:"required"`
}

type grantRoleReq struct {
	Role string `json:"role" validate:"required"`
}

func (r *registerReq) normalize() {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = service.NormalizeEmail(r.Email)
}

func (r *loginReq) normalize() { r.Email = service.NormalizeEmail(r.Email) }

func (r *grantRoleReq) normalize() { r.Role = strings.ToUpper(strings.TrimSpace(r.Role)) }

type meResp struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	FullName  string   `json:"fullName"`
	Avatar    string   `json:"avatar"`
	Roles     []string `json:"roles"`
}

type rolesResp struct {
	Roles []string `json:"roles"`
}

// Register creates a CUSTOMER account.  No tokens are issued; the client logs
// in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.auth.Register(ctx, service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		return err
	}
	return ok(c, http.StatusCreated, message{Message: "Register successfully!"})
}

// Login checks credentials and returns the token pair in the body and in the
// Secret and Refresh cookies.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.auth.VerifyUser(ctx, req.Email, req.Password)
	if err != nil {
		return err
	}
	pair, err := h.auth.Login(ctx, u)
	if err != nil {
		return err
	}
	h.setTokenCookies(c, pair)
	return ok(c, http.StatusOK, pair)
}

// Refresh exchanges a refresh token for a new access token.  The refresh
// token only changes once it has expired.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	pair, err := h.auth.Refresh(ctx, req.Token)
	if err != nil {
		return err
	}
	h.setTokenCookies(c, pair)
	return ok(c, http.StatusOK, pair)
}

// Logout ends the caller's session and clears both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.auth.Logout(ctx, p.User.ID); err != nil {
		return err
	}
	h.clearTokenCookies(c)
	return ok(c, http.StatusOK, message{Message: "Logout successfully!"})
}

// Me describes the authenticated caller.
func (h *AuthHandler) Me(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	names, err := h.auth.RoleNames(ctx, p)
	if err != nil {
		return err
	}
	u := p.User
	return ok(c, http.StatusOK, meResp{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		FullName:  u.FullName(),
		Avatar:    u.Avatar,
		Roles:     names,
	})
}

// GrantRole links a role, given by name, to the user in the path.
func (h *AuthHandler) GrantRole(c echo.Context) error {
	var req grantRoleReq
	if err := bind(c, &req); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.auth.GrantRole(ctx, c.Param("id"), req.Role); err != nil {
		return err
	}
	return ok(c, http.StatusOK, message{Message: "Role granted"})
}

// ListRoles returns every role name.
func (h *AuthHandler) ListRoles(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	names, err := h.roles.Names(ctx)
	if err != nil {
		return err
	}
	return ok(c, http.StatusOK, rolesResp{Roles: names})
}

func (h *AuthHandler) setTokenCookies(c echo.Context, pair utils.TokenPair) {
	exp := time.Now().Add(cookieTTL)
	c.SetCookie(h.cookie(middleware.AccessCookie, pair.AccessToken, exp))
	c.SetCookie(h.cookie(middleware.RefreshCookie, pair.RefreshToken, exp))
}

func (h *AuthHandler) clearTokenCookies(c echo.Context) {
	for _, name := range []string{middleware.AccessCookie, middleware.RefreshCookie} {
		ck := h.cookie(name, "", time.Unix(0, 0))
		ck.MaxAge = -1
		c.SetCookie(ck)
	}
}

func (h *AuthHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// principal returns the caller stored by the JWT middleware.
func principal(c echo.Context) (service.Principal, error) {
	p, found := middleware.PrincipalFrom(c)
	if !found {
		return service.Principal{}, fmt.Errorf("%w: authentication required", service.ErrUnauthorized)
	}
	return p, nil
}
