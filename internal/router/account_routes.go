package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ebank-backoffice/internal/middleware"
	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// RegisterAccounts registers the bank account endpoints.  Reads and
// transfers are open to ADMIN and CUSTOMER; debit, credit and opening an
// account are ADMIN only.
func RegisterAccounts(e *echo.Echo, d Deps) {
	h := d.Accounts
	g := e.Group("/accounts",
		middleware.JWTAuth(d.Tokens),
		middleware.RequireScope(model.RoleAdmin, model.RoleCustomer),
	)
	adminOnly := middleware.RequireScope(model.RoleAdmin)

	g.GET("", h.List)
	g.GET("/:accountId", h.Get)
	g.GET("/:accountId/operations", h.Operations)
	g.GET("/:accountId/pageOperations", h.PageOperations)
	g.GET("/customer/:customerId", h.CustomerAccounts)

	g.POST("/transfer", h.Transfer)
	g.POST("/debit", h.Debit, adminOnly)
	g.POST("/credit", h.Credit, adminOnly)
	g.POST("/open", h.Open, adminOnly)
}
