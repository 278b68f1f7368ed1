package handler

import (
    "context"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/ebank-backoffice/internal/customer"
)

// CustomerHandler serves the customer endpoints.
type CustomerHandler struct {
    Customers *customer.Service
}

func NewCustomerHandler(cs *customer.Service) *CustomerHandler {
    if cs == nil {
        panic("nil customer service passed to NewCustomerHandler")
    }
    return &CustomerHandler{Customers: cs}
}

func (h *CustomerHandler) List(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    cs, err := h.Customers.List(ctx)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toCustomerDTOs(cs))
}

// Search: GET /customers/search?keyword=...; an empty keyword matches all.
func (h *CustomerHandler) Search(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    cs, err := h.Customers.Search(ctx, c.QueryParam("keyword"))
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toCustomerDTOs(cs))
}

func (h *CustomerHandler) Get(c echo.Context) error {
    id, ok := customerID(c, "id")
    if !ok {
        return badRequest(c, "invalid customer id")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    cust, err := h.Customers.Get(ctx, id)
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toCustomerDTO(cust))
}

func (h *CustomerHandler) Save(c echo.Context) error {
    var req customerReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    cust, err := h.Customers.Save(ctx, customer.Input{Name: req.Name, Email: req.Email, Password: req.Password})
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusCreated, toCustomerDTO(cust))
}

func (h *CustomerHandler) Update(c echo.Context) error {
    id, ok := customerID(c, "customerId")
    if !ok {
        return badRequest(c, "invalid customer id")
    }
    var req customerReq
    if err := c.Bind(&req); err != nil {
        return badRequest(c, "invalid body")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    cust, err := h.Customers.Update(ctx, id, customer.Input{Name: req.Name, Email: req.Email})
    if err != nil {
        return fail(c, err)
    }
    return c.JSON(http.StatusOK, toCustomerDTO(cust))
}

// Delete removes the customer together with its accounts and operations.
func (h *CustomerHandler) Delete(c echo.Context) error {
    id, ok := customerID(c, "id")
    if !ok {
        return badRequest(c, "invalid customer id")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), requestTimeout)
    defer cancel()

    if err := h.Customers.Delete(ctx, id); err != nil {
        return fail(c, err)
    }
    return c.NoContent(http.StatusNoContent)
}

func customerID(c echo.Context, param string) (int64, bool) {
    id, err := strconv.ParseInt(c.Param(param), 10, 64)
    if err != nil || id <= 0 {
        return 0, false
    }
    return id, true
}
