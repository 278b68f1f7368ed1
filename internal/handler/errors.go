package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ebank-backoffice/internal/customer"
    "github.com/iliyamo/ebank-backoffice/internal/identity"
    "github.com/iliyamo/ebank-backoffice/internal/ledger"
    "github.com/iliyamo/ebank-backoffice/internal/logger"
    "github.com/iliyamo/ebank-backoffice/internal/repository"
)

// statusOf maps a service error to the HTTP status reported to the client.
// Unknown errors are 500.
func statusOf(err error) int {
    switch {
    case errors.Is(err, identity.ErrAuthenticationFailed):
        return http.StatusUnauthorized
    case errors.Is(err, repository.ErrNotFound):
        return http.StatusNotFound
    case errors.Is(err, ledger.ErrInsufficientBalance),
        errors.Is(err, repository.ErrDuplicate):
        return http.StatusConflict
    case errors.Is(err, ledger.ErrInvalidAmount),
        errors.Is(err, ledger.ErrSameAccount),
        errors.Is(err, ledger.ErrInvalidPage),
        errors.Is(err, customer.ErrInvalidInput),
        errors.Is(err, identity.ErrInvalidCredential),
        errors.Is(err, identity.ErrIncorrectCredential):
        return http.StatusBadRequest
    case errors.Is(err, repository.ErrStoreUnavailable),
        errors.Is(err, repository.ErrConflict):
        return http.StatusServiceUnavailable
    }
    return http.StatusInternalServerError
}

// fail writes err as {"error": ...}.  Server-side failures are logged and
// their detail is not echoed back.
func fail(c echo.Context, err error) error {
    status := statusOf(err)
    if status >= http.StatusInternalServerError {
        logger.Error("request failed", err, logger.Fields{
            "method": c.Request().Method, "path": c.Path(), "status": status,
        })
        return c.JSON(status, echo.Map{"error": http.StatusText(status)})
    }
    return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
