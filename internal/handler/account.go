package handler

import (
    "context"
    "net/http"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ebank-backoffice/internal/customer"
    "github.com/iliyamo/ebank-backoffice/internal/ledger"
    "github.com/iliyamo/ebank-backoffice/internal/model"
)

// AccountHandler serves the bank account endpoints.  Every balance change
// goes through the ledger engine.
type AccountHandler struct {
    Ledger    *ledger.Engine
    History   *ledger.HistoryService
    Customers *customer.Service
}

func NewAccountHandler(l *ledger.Engine, h *ledger.HistoryService, cs *customer.Service) *AccountHandler {
    if l == nil || h == nil || cs == nil {
        panic("nil dependency passed to NewAccountHandler")
    }
    return &AccountHandler{Ledger: l, History: h, Customers: cs}
}

func (h *AccountHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    accs, err := h.Ledger.Accounts(ctx)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toAccountDTOs(accs))
}

func (h *AccountHandler) Get(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    acc, err := h.Ledger.Account(ctx, c.Param("accountId"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toAccountDTO(acc))
}

// Operations returns the full history of an account, oldest first.
func (h *AccountHandler) Operations(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    ops, err := h.History.History(ctx, c.Param("accountId"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toOperationDTOs(ops))
}

// PageOperations returns one page of history.  page defaults to 0 and size
// to 5.
func (h *AccountHandler) PageOperations(c echo.Context) error {
    page, ok := intQuery(c, "page", ledger.DefaultPage)
    if !ok {
        return badRequest(c, "invalid page")
    }
    size, ok := intQuery(c, "size", ledger.DefaultPageSize)
    if !ok {
        return badRequest(c, "invalid size")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    hist, err := h.History.PagedHistory(ctx, c.Param("accountId"), page, size)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toHistoryDTO(hist))
}

// CustomerAccounts lists the accounts owned by a customer.
func (h *AccountHandler) CustomerAccounts(c echo.Context) error {
    id, err := strconv.ParseInt(c.Param("customerId"), 10, 64)
    if err != nil || id <= 0 {
        return badRequest(c, "invalid customer id")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    accs, err := h.Customers.Accounts(ctx, id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toAccountDTOs(accs))
}

// Debit echoes the accepted request body.
func (h *AccountHandler) Debit(c echo.Context) error {
    var req movementReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if _, err := h.Ledger.Debit(ctx, req.AccountID, req.Amount, req.Description); err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, req)
}

func (h *AccountHandler) Credit(c echo.Context) error {
    var req movementReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if _, err := h.Ledger.Credit(ctx, req.AccountID, req.Amount, req.Description); err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, req)
}

func (h *AccountHandler) Transfer(c echo.Context) error {
    var req transferReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if err := h.Ledger.Transfer(ctx, req.AccountSource, req.AccountDestination, req.Amount); err != nil {
        return fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

// Open creates a current or saving account for a customer.
func (h *AccountHandler) Open(c echo.Context) error {
    var req openAccountReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    acc, err := h.Customers.OpenAccount(ctx, customer.OpenAccountInput{
        CustomerID:     req.CustomerID,
        Kind:           model.AccountKind(strings.ToUpper(strings.TrimSpace(req.Type))),
        InitialBalance: req.InitialBalance,
        Overdraft:      req.OverDraft,
        InterestRate:   req.InterestRate,
    })
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, toAccountDTO(acc))
}

// intQuery reads an integer query parameter, returning def when absent.
func intQuery(c echo.Context, name string, def int) (int, bool) {
    raw := strings.TrimSpace(c.QueryParam(name))
    if raw == "" {
        return def, true
    }
    n, err := strconv.Atoi(raw)
    if err != nil {
        return 0, false
    }
    return n, true
}
