package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/ebank-backoffice/internal/customer"
	"github.com/iliyamo/ebank-backoffice/internal/handler"
	"github.com/iliyamo/ebank-backoffice/internal/identity"
	"github.com/iliyamo/ebank-backoffice/internal/ledger"
	"github.com/iliyamo/ebank-backoffice/internal/model"
	"github.com/iliyamo/ebank-backoffice/internal/repository/memory"
	"github.com/iliyamo/ebank-backoffice/internal/router"
	"github.com/iliyamo/ebank-backoffice/internal/utils"
)

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T, pingers ...handler.Pinger) api {
	t.Helper()
	store := memory.NewStore()
	ids := identity.NewEngine(store, store, utils.NewBcryptHasher(bcrypt.MinCost))
	eng := ledger.NewEngine(store, ledger.NewKeyedMutex())
	custSvc := customer.NewService(store, store, eng, ids)
	signer := utils.NewJWTSigner("test-secret")

	if _, err := ids.AddNewAccount(context.Background(), "admin", "secret", model.RoleAdmin); err != nil {
		t.Fatalf("bootstrap admin: %v", err)
	}

	e := echo.New()
	router.Register(e, router.Deps{
		Auth:      handler.NewAuthHandler(ids, signer),
		Accounts:  handler.NewAccountHandler(eng, ledger.NewHistoryService(store), custSvc),
		Customers: handler.NewCustomerHandler(custSvc),
		Tokens:    signer,
		Health:    pingers,
	})
	return api{t: t, e: e}
}

func (a api) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a api) json(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return a.serve(req)
}

func (a api) form(path, token string, vals url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(vals.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	return a.serve(req)
}

func (a api) login(username, password string) string {
	a.t.Helper()
	rec := a.form("/auth", "", url.Values{"username": {username}, "password": {password}})
	if rec.Code != http.StatusOK {
		a.t.Fatalf("login %s: status=%d body=%s", username, rec.Code, rec.Body)
	}
	var out map[string]string
	decode(a.t, rec, &out)
	if out["access-token"] == "" {
		a.t.Fatalf("login %s: no access-token in %s", username, rec.Body)
	}
	return out["access-token"]
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func expect(t *testing.T, rec *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status=%d want %d body=%s", rec.Code, status, rec.Body)
	}
}

type accountResp struct {
	ID           string           `json:"id"`
	Type         string           `json:"type"`
	Balance      decimal.Decimal  `json:"balance"`
	Status       string           `json:"status"`
	CustomerID   int64            `json:"customerId"`
	OverDraft    *decimal.Decimal `json:"overDraft"`
	InterestRate *decimal.Decimal `json:"interestRate"`
}

func (a api) openAccount(token string, customerID int64, initial string) accountResp {
	a.t.Helper()
	rec := a.json(http.MethodPost, "/accounts/open", token, map[string]any{
		"customerId": customerID, "type": "current", "initialBalance": initial, "overDraft": "500",
	})
	expect(a.t, rec, http.StatusCreated)
	var acc accountResp
	decode(a.t, rec, &acc)
	return acc
}

func (a api) createCustomer(token, name, email string) int64 {
	a.t.Helper()
	rec := a.json(http.MethodPost, "/customers", token, map[string]string{
		"name": name, "email": email, "password": "pw",
	})
	expect(a.t, rec, http.StatusCreated)
	var c struct {
		ID int64 `json:"id"`
	}
	decode(a.t, rec, &c)
	return c.ID
}

func TestHealth(t *testing.T) {
	rec := newAPI(t, pinger{}).json(http.MethodGet, "/healthz", "", nil)
	expect(t, rec, http.StatusOK)
	if rec.Body.String() != "ok" {
		t.Fatalf("body=%q", rec.Body)
	}

	rec = newAPI(t, pinger{err: errors.New("down")}).json(http.MethodGet, "/healthz", "", nil)
	expect(t, rec, http.StatusServiceUnavailable)
}

func TestAuthIssuesTokenWithScope(t *testing.T) {
	a := newAPI(t)

	expect(t, a.form("/auth", "", url.Values{"username": {"admin"}}), http.StatusBadRequest)
	expect(t, a.form("/auth", "", url.Values{"username": {"admin"}, "password": {"nope"}}), http.StatusUnauthorized)
	expect(t, a.form("/auth", "", url.Values{"username": {"ghost"}, "password": {"secret"}}), http.StatusUnauthorized)

	token := a.login("admin", "secret")
	rec := a.json(http.MethodGet, "/profile", token, nil)
	expect(t, rec, http.StatusOK)
	var p struct {
		Subject string   `json:"subject"`
		Scope   []string `json:"scope"`
	}
	decode(t, rec, &p)
	if p.Subject != "admin" || len(p.Scope) != 1 || p.Scope[0] != model.RoleAdmin {
		t.Fatalf("profile=%+v", p)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	a := newAPI(t)
	expect(t, a.json(http.MethodGet, "/profile", "", nil), http.StatusUnauthorized)
	expect(t, a.json(http.MethodGet, "/accounts", "garbage", nil), http.StatusUnauthorized)
	expect(t, a.json(http.MethodGet, "/customers", "", nil), http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	a := newAPI(t)
	token := a.login("admin", "secret")

	rec := a.json(http.MethodPost, "/change-password", token, map[string]string{
		"oldPassword": "wrong", "newPassword": "next",
	})
	expect(t, rec, http.StatusBadRequest)
	a.login("admin", "secret")

	rec = a.json(http.MethodPost, "/change-password", token, map[string]string{
		"oldPassword": "secret", "newPassword": "next",
	})
	expect(t, rec, http.StatusNoContent)
	expect(t, a.form("/auth", "", url.Values{"username": {"admin"}, "password": {"secret"}}), http.StatusUnauthorized)
	a.login("admin", "next")
}

func TestIdentityAdministration(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "secret")

	rec := a.form("/accounts/admin", admin, url.Values{"username": {"ops"}, "password": {"pw"}})
	expect(t, rec, http.StatusCreated)
	expect(t, a.form("/accounts/admin", admin, url.Values{"username": {"ops"}, "password": {"pw"}}), http.StatusConflict)

	rec = a.form("/accounts/roles/add", admin, url.Values{"username": {"ops"}, "roleName": {"AUDITOR"}})
	expect(t, rec, http.StatusOK)
	var ident struct {
		Roles []string `json:"roles"`
	}
	decode(t, rec, &ident)
	if len(ident.Roles) != 2 || ident.Roles[0] != model.RoleAdmin || ident.Roles[1] != "AUDITOR" {
		t.Fatalf("roles=%v", ident.Roles)
	}
	expect(t, a.form("/accounts/roles/add", admin, url.Values{"username": {"nobody"}, "roleName": {"X"}}), http.StatusNotFound)

	cid := a.createCustomer(admin, "Sara", "sara@example.com")
	if cid == 0 {
		t.Fatal("no customer id")
	}
	customerToken := a.login("sara@example.com", "pw")
	expect(t, a.form("/accounts/admin", customerToken, url.Values{"username": {"x"}, "password": {"y"}}), http.StatusForbidden)
}

func TestLedgerEndpoints(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "secret")
	cid := a.createCustomer(admin, "Sara", "sara@example.com")

	src := a.openAccount(admin, cid, "100")
	dst := a.openAccount(admin, cid, "0")
	if !src.Balance.Equal(decimal.NewFromInt(100)) || src.Status != string(model.AccountStatusCreated) || src.OverDraft == nil {
		t.Fatalf("opened account=%+v", src)
	}

	expect(t, a.json(http.MethodPost, "/accounts/credit", admin, map[string]any{
		"accountId": src.ID, "amount": 50, "description": "salary",
	}), http.StatusOK)
	expect(t, a.json(http.MethodPost, "/accounts/debit", admin, map[string]any{
		"accountId": src.ID, "amount": 30, "description": "rent",
	}), http.StatusOK)
	expect(t, a.json(http.MethodPost, "/accounts/debit", admin, map[string]any{
		"accountId": src.ID, "amount": 1000, "description": "too much",
	}), http.StatusConflict)
	expect(t, a.json(http.MethodPost, "/accounts/credit", admin, map[string]any{
		"accountId": src.ID, "amount": -5,
	}), http.StatusBadRequest)
	expect(t, a.json(http.MethodPost, "/accounts/credit", admin, map[string]any{
		"accountId": "missing", "amount": 5,
	}), http.StatusNotFound)

	customerToken := a.login("sara@example.com", "pw")
	expect(t, a.json(http.MethodPost, "/accounts/debit", customerToken, map[string]any{
		"accountId": src.ID, "amount": 1,
	}), http.StatusForbidden)
	expect(t, a.json(http.MethodPost, "/accounts/transfer", customerToken, map[string]any{
		"accountSource": src.ID, "accountDestination": dst.ID, "amount": 20,
	}), http.StatusNoContent)
	expect(t, a.json(http.MethodPost, "/accounts/transfer", customerToken, map[string]any{
		"accountSource": src.ID, "accountDestination": src.ID, "amount": 1,
	}), http.StatusBadRequest)

	rec := a.json(http.MethodGet, "/accounts/"+src.ID, customerToken, nil)
	expect(t, rec, http.StatusOK)
	var got accountResp
	decode(t, rec, &got)
	if !got.Balance.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance=%s want 100", got.Balance)
	}

	rec = a.json(http.MethodGet, "/accounts/"+src.ID+"/operations", customerToken, nil)
	expect(t, rec, http.StatusOK)
	var ops []struct {
		Type        string          `json:"type"`
		Amount      decimal.Decimal `json:"amount"`
		Description string          `json:"description"`
	}
	decode(t, rec, &ops)
	wantDesc := []string{customer.InitialDepositDescription, "salary", "rent", "Transfer to " + dst.ID}
	if len(ops) != len(wantDesc) {
		t.Fatalf("ops=%+v", ops)
	}
	for i, d := range wantDesc {
		if ops[i].Description != d {
			t.Fatalf("op %d description=%q want %q", i, ops[i].Description, d)
		}
	}
	// amounts are magnitudes, the type gives the direction
	if ops[2].Type != "DEBIT" || !ops[2].Amount.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("rent op=%+v", ops[2])
	}

	rec = a.json(http.MethodGet, "/accounts/"+src.ID+"/pageOperations?page=1&size=3", customerToken, nil)
	expect(t, rec, http.StatusOK)
	var page struct {
		AccountID   string            `json:"accountId"`
		CurrentPage int               `json:"currentPage"`
		PageSize    int               `json:"pageSize"`
		TotalPages  int               `json:"totalPages"`
		Operations  []json.RawMessage `json:"accountOperationDTOS"`
	}
	decode(t, rec, &page)
	if page.AccountID != src.ID || page.CurrentPage != 1 || page.PageSize != 3 || page.TotalPages != 2 || len(page.Operations) != 1 {
		t.Fatalf("page=%+v", page)
	}

	rec = a.json(http.MethodGet, "/accounts/"+src.ID+"/pageOperations", customerToken, nil)
	expect(t, rec, http.StatusOK)
	decode(t, rec, &page)
	if page.CurrentPage != 0 || page.PageSize != ledger.DefaultPageSize || len(page.Operations) != 4 {
		t.Fatalf("default page=%+v", page)
	}
	expect(t, a.json(http.MethodGet, "/accounts/"+src.ID+"/pageOperations?page=-1", customerToken, nil), http.StatusBadRequest)
	expect(t, a.json(http.MethodGet, "/accounts/"+src.ID+"/pageOperations?size=x", customerToken, nil), http.StatusBadRequest)

	rec = a.json(http.MethodGet, "/accounts", admin, nil)
	expect(t, rec, http.StatusOK)
	var all []accountResp
	decode(t, rec, &all)
	if len(all) != 2 {
		t.Fatalf("accounts=%d want 2", len(all))
	}
}

func TestCustomerEndpoints(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin", "secret")
	cid := a.createCustomer(admin, "Sara Idrissi", "sara@example.com")
	a.createCustomer(admin, "Omar", "omar@example.com")

	expect(t, a.json(http.MethodPost, "/customers", admin, map[string]string{
		"name": "Dup", "email": "sara@example.com", "password": "pw",
	}), http.StatusConflict)
	expect(t, a.json(http.MethodPost, "/customers", admin, map[string]string{
		"name": "", "email": "x@example.com", "password": "pw",
	}), http.StatusBadRequest)

	rec := a.json(http.MethodGet, "/customers/search?keyword=idri", admin, nil)
	expect(t, rec, http.StatusOK)
	var found []struct {
		ID       int64  `json:"id"`
		Password string `json:"password"`
	}
	decode(t, rec, &found)
	if len(found) != 1 || found[0].ID != cid || found[0].Password != "" {
		t.Fatalf("search=%+v", found)
	}

	rec = a.json(http.MethodPut, "/customers/"+itoa(cid), admin, map[string]string{
		"name": "Sara I.", "email": "sara.i@example.com",
	})
	expect(t, rec, http.StatusOK)
	var updated struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	decode(t, rec, &updated)
	if updated.Name != "Sara I." || updated.Email != "sara.i@example.com" {
		t.Fatalf("updated=%+v", updated)
	}

	acc := a.openAccount(admin, cid, "10")
	rec = a.json(http.MethodGet, "/accounts/customer/"+itoa(cid), admin, nil)
	expect(t, rec, http.StatusOK)
	var owned []accountResp
	decode(t, rec, &owned)
	if len(owned) != 1 || owned[0].ID != acc.ID {
		t.Fatalf("customer accounts=%+v", owned)
	}

	customerToken := a.login("sara@example.com", "pw")
	expect(t, a.json(http.MethodDelete, "/customers/"+itoa(cid), customerToken, nil), http.StatusForbidden)

	expect(t, a.json(http.MethodDelete, "/customers/"+itoa(cid), admin, nil), http.StatusNoContent)
	expect(t, a.json(http.MethodGet, "/customers/"+itoa(cid), admin, nil), http.StatusNotFound)
	expect(t, a.json(http.MethodGet, "/accounts/"+acc.ID, admin, nil), http.StatusNotFound)
	expect(t, a.json(http.MethodGet, "/customers/abc", admin, nil), http.StatusBadRequest)

	rec = a.json(http.MethodGet, "/customers", admin, nil)
	expect(t, rec, http.StatusOK)
	var rest []json.RawMessage
	decode(t, rec, &rest)
	if len(rest) != 1 {
		t.Fatalf("customers=%d want 1", len(rest))
	}
}

func itoa(n int64) string { return decimal.NewFromInt(n).String() }
