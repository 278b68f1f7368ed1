package handler

import (
    "context"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ebank-backoffice/internal/identity"
    "github.com/iliyamo/ebank-backoffice/internal/logger"
    "github.com/iliyamo/ebank-backoffice/internal/middleware"
    "github.com/iliyamo/ebank-backoffice/internal/model"
    "github.com/iliyamo/ebank-backoffice/internal/utils"
)

// requestTimeout bounds the store work of a single request.
const requestTimeout = 5 * time.Second

// TokenSigner turns a claim set into a bearer token.  utils.JWTSigner
// implements it.
type TokenSigner interface {
    Sign(cs model.ClaimSet) (string, error)
}

// AuthHandler bundles the identity engine and the token signer.
type AuthHandler struct {
    Identities *identity.Engine
    Signer     TokenSigner
}

func NewAuthHandler(identities *identity.Engine, signer TokenSigner) *AuthHandler {
    return &AuthHandler{Identities: identities, Signer: signer}
}

// ----- DTOs -----

type changePasswordReq struct {
    OldPassword string `json:"oldPassword"`
    NewPassword string `json:"newPassword"`
}

type identityResp struct {
    ID        int64     `json:"id"`
    Username  string    `json:"username"`
    Roles     []string  `json:"roles"`
    CreatedAt time.Time `json:"createdAt"`
}

type profileResp struct {
    Subject   string    `json:"subject"`
    Scope     []string  `json:"scope"`
    IssuedAt  time.Time `json:"issuedAt"`
    ExpiresAt time.Time `json:"expiresAt"`
}

func toIdentityResp(ident model.Identity) identityResp {
    return identityResp{
        ID:        ident.ID,
        Username:  ident.Username,
        Roles:     ident.RoleNames(),
        CreatedAt: ident.CreatedAt,
    }
}

// Token: POST /auth with form fields username and password.
func (h *AuthHandler) Token(c echo.Context) error {
    username := strings.TrimSpace(c.FormValue("username"))
    password := c.FormValue("password")
    if username == "" || password == "" {
        return badRequest(c, "username/password required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    claims, err := h.Identities.IssueToken(ctx, username, password)
    if err != nil {
        logger.Warn("authentication failed", logger.Fields{"username": username, "error": err.Error()})
        return fail(c, err)
    }
    token, err := h.Signer.Sign(claims)
    if err != nil {
        return fail(c, err)
    }
    logger.Info("token issued", logger.Fields{
        "username": username, "scope": claims.Scope, "expiresIn": utils.TokenLifetime(claims).String(),
    })
    return c.JSON(http.StatusOK, echo.Map{"access-token": token})
}

// Profile: claims of the caller.
func (h *AuthHandler) Profile(c echo.Context) error {
    cs, ok := middleware.Claims(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    return c.JSON(http.StatusOK, profileResp{
        Subject:   cs.Subject,
        Scope:     cs.Scopes(),
        IssuedAt:  cs.IssuedAt,
        ExpiresAt: cs.ExpiresAt,
    })
}

// ChangePassword changes the password of the caller.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
    var req changePasswordReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if err := h.Identities.ChangePassword(ctx, middleware.Subject(c), req.OldPassword, req.NewPassword); err != nil {
        return fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// CreateAdmin: POST /accounts/admin with form fields username and password.
func (h *AuthHandler) CreateAdmin(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    ident, err := h.Identities.AddNewAccount(ctx,
        strings.TrimSpace(c.FormValue("username")), c.FormValue("password"), model.RoleAdmin)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, toIdentityResp(ident))
}

// AddRole: POST /accounts/roles/add with form fields username and roleName.
func (h *AuthHandler) AddRole(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    ident, err := h.Identities.AddRoleToAccount(ctx,
        strings.TrimSpace(c.FormValue("username")), strings.TrimSpace(c.FormValue("roleName")))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toIdentityResp(ident))
}
