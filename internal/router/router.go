package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ebank-backoffice/internal/config"
	"github.com/iliyamo/ebank-backoffice/internal/handler"
	"github.com/iliyamo/ebank-backoffice/internal/middleware"
	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// Deps carries everything the route table needs.  Redis may be nil, in
// which case the rate limiter and the response cache are skipped.
type Deps struct {
	Auth      *handler.AuthHandler
	Accounts  *handler.AccountHandler
	Customers *handler.CustomerHandler
	Tokens    middleware.TokenParser
	Health    []handler.Pinger

	Redis     *redis.Client
	Cache     config.CacheConfig
	RateLimit config.RateLimitConfig
}

// Register wires the whole API onto e.
func Register(e *echo.Echo, d Deps) {
	RegisterRoutes(e, d.Health...)
	RegisterAuth(e, d)
	RegisterAccounts(e, d)
	RegisterCustomers(e, d)
}

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo, pingers ...handler.Pinger) {
	e.GET("/healthz", handler.Health(pingers...))
}

// RegisterAuth registers token issuance and the identity endpoints.  POST
// /auth is public but rate limited per client IP; the rest need a token.
func RegisterAuth(e *echo.Echo, d Deps) {
	e.POST("/auth", d.Auth.Token, middleware.NewTokenBucket(d.RateLimit, d.Redis))

	authed := middleware.JWTAuth(d.Tokens)
	e.GET("/profile", d.Auth.Profile, authed)
	e.POST("/change-password", d.Auth.ChangePassword, authed)

	admin := []echo.MiddlewareFunc{authed, middleware.RequireScope(model.RoleAdmin)}
	e.POST("/accounts/admin", d.Auth.CreateAdmin, admin...)
	e.POST("/accounts/roles/add", d.Auth.AddRole, admin...)
}
