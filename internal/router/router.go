// Package router registers the HTTP routes of the API.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/account-service/internal/config"
	"github.com/iliyamo/account-service/internal/handler"
	"github.com/iliyamo/account-service/internal/logger"
	"github.com/iliyamo/account-service/internal/middleware"
	"github.com/iliyamo/account-service/internal/model"
	"github.com/iliyamo/account-service/internal/service"
	"github.com/iliyamo/account-service/internal/utils"
)

// APIPrefix is prepended to every API route.
const APIPrefix = "/api/v1"

// Deps is everything the routes need.  Redis may be nil, in which case rate
// limiting and response caching are disabled.
type Deps struct {
	Auth        *handler.AuthHandler
	Projects    *handler.ProjectHandler
	AuthService *service.AuthService
	Issuer      *utils.Issuer
	Policy      middleware.Policy
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	Cache       config.CacheConfig
	Health      map[string]handler.Check
	Log         logger.Logger
}

// DefaultPolicy lists the roles required per operation.  Operations not
// listed only need a valid access token when they sit behind JWTAuth.
func DefaultPolicy() middleware.Policy {
	return middleware.Policy{
		middleware.Operation(http.MethodPost, APIPrefix+"/auth/logout"):          {model.RoleCustomer},
		middleware.Operation(http.MethodPost, APIPrefix+"/users/:id/roles"):      {model.RoleAdmin},
		middleware.Operation(http.MethodPost, APIPrefix+"/projects"):             {model.RoleManager, model.RoleAdmin},
		middleware.Operation(http.MethodPost, APIPrefix+"/projects/:id/members"): {model.RoleManager, model.RoleAdmin},
	}
}

// New builds the echo instance with the shared middleware, the error
// envelope and every route.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(d.Log)

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	e.Use(echomw.CORS())

	RegisterRoutes(e, d.Health)
	RegisterAuth(e, d)
	RegisterProjects(e, d)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// live outside the API prefix.
func RegisterRoutes(e *echo.Echo, checks map[string]handler.Check) {
	e.GET("/healthz", handler.Health(checks))
}

// RegisterAuth registers the auth and role routes.  Everything under
// /auth is rate limited.
func RegisterAuth(e *echo.Echo, d Deps) {
	authn := authenticated(d)

	g := e.Group(APIPrefix+"/auth", middleware.RateLimit(d.RateLimit, d.Redis, d.Log))
	g.POST("/register", d.Auth.Register)
	g.POST("/login", d.Auth.Login)
	g.POST("/refresh", d.Auth.Refresh)
	g.POST("/logout", d.Auth.Logout, authn...)
	g.GET("/me", d.Auth.Me, authn...)

	e.GET(APIPrefix+"/roles", d.Auth.ListRoles, middleware.ResponseCache(d.Cache, d.Redis, d.Log))
	e.POST(APIPrefix+"/users/:id/roles", d.Auth.GrantRole, authn...)
}

// authenticated is the JWT check followed by the role guard.
func authenticated(d Deps) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		middleware.JWTAuth(d.Issuer, d.AuthService),
		middleware.Guard(d.Policy, d.AuthService, d.Log),
	}
}
