package middleware

import (
    "net/http"

    "github.com/labstack/echo/v4"
)

// RequireScope lets the request through when the token scope holds at
// least one of roles.  It must run after JWTAuth.
func RequireScope(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            scope, _ := c.Get(CtxScope).([]string)
            for _, s := range scope {
                if allowed[s] {
                    return next(c)
                }
            }
            return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
        }
    }
}
