package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ebank-backoffice/internal/middleware"
	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// RegisterCustomers registers the customer endpoints.  Reads are served
// through the Redis response cache; every successful write clears it.
func RegisterCustomers(e *echo.Echo, d Deps) {
	h := d.Customers
	g := e.Group("/customers",
		middleware.JWTAuth(d.Tokens),
		middleware.RequireScope(model.RoleAdmin, model.RoleCustomer),
	)
	cached := middleware.NewRedisCache(d.Cache, d.Redis)
	g.GET("", h.List, cached)
	g.GET("/search", h.Search, cached)
	g.GET("/:id", h.Get, cached)

	write := []echo.MiddlewareFunc{
		middleware.RequireScope(model.RoleAdmin),
		middleware.InvalidateOnWrite(d.Cache, d.Redis),
	}
	g.POST("", h.Save, write...)
	g.PUT("/:customerId", h.Update, write...)
	g.DELETE("/:id", h.Delete, write...)
}
