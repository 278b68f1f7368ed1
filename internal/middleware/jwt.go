package middleware // reusable HTTP middleware for the back-office API

import (
    "net/http"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ebank-backoffice/internal/model"
)

// Context keys set by JWTAuth.
const (
    CtxSubject = "subject" // username the token was issued to
    CtxScope   = "scope"   // []string of role names
    CtxClaims  = "claims"  // the full model.ClaimSet
)

// TokenParser verifies a raw bearer token.  utils.JWTSigner implements it.
type TokenParser interface {
    Parse(raw string) (model.ClaimSet, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores its subject and scope in the request context.  The scope is taken
// from the token as issued; role changes made afterwards only apply to the
// next token.
func JWTAuth(parser TokenParser) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            claims, err := parser.Parse(raw)
            if err != nil || claims.Subject == "" {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
            }

            c.Set(CtxSubject, claims.Subject)
            c.Set(CtxScope, claims.Scopes())
            c.Set(CtxClaims, claims)
            return next(c)
        }
    }
}
