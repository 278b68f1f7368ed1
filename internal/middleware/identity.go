package middleware

// identity.go holds accessors for the caller identity that JWTAuth puts in
// the Echo context.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ebank-backoffice/internal/model"
)

// Subject returns the authenticated username, or "" when none.
func Subject(c echo.Context) string {
    s, _ := c.Get(CtxSubject).(string)
    return s
}

// Claims returns the verified claim set of the request.
func Claims(c echo.Context) (model.ClaimSet, bool) {
    cs, ok := c.Get(CtxClaims).(model.ClaimSet)
    return cs, ok
}

// userID is the rate-limit identity of the caller: its username, or
// "guest" on unauthenticated routes.
func userID(c echo.Context) string {
    if s := Subject(c); s != "" {
        return s
    }
    return "guest"
}
