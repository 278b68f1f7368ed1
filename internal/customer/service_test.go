package customer_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/ebank-backoffice/internal/customer"
	"github.com/iliyamo/ebank-backoffice/internal/identity"
	"github.com/iliyamo/ebank-backoffice/internal/ledger"
	"github.com/iliyamo/ebank-backoffice/internal/model"
	"github.com/iliyamo/ebank-backoffice/internal/repository/memory"
	"github.com/iliyamo/ebank-backoffice/internal/utils"
)

type fixture struct {
	store    *memory.Store
	ids      *identity.Engine
	ledger   *ledger.Engine
	history  *ledger.HistoryService
	customer *customer.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memory.NewStore()
	ids := identity.NewEngine(store, store, utils.NewBcryptHasher(bcrypt.MinCost))
	eng := ledger.NewEngine(store, nil)
	return fixture{
		store:    store,
		ids:      ids,
		ledger:   eng,
		history:  ledger.NewHistoryService(store),
		customer: customer.NewService(store, store, eng, ids),
	}
}

func (f fixture) save(t *testing.T, name, email string) model.Customer {
	t.Helper()
	c, err := f.customer.Save(context.Background(), customer.Input{Name: name, Email: email, Password: "pw"})
	if err != nil {
		t.Fatalf("save %s: %v", email, err)
	}
	return c
}

func TestSaveProvisionsLogin(t *testing.T) {
	f := newFixture(t)
	c := f.save(t, "Hassan", " Hassan@Example.com ")

	if c.ID == 0 || c.Email != "hassan@example.com" || c.PasswordHash == "" || c.PasswordHash == "pw" {
		t.Fatalf("unexpected customer: %+v", c)
	}
	cs, err := f.ids.IssueToken(context.Background(), "hassan@example.com", "pw")
	if err != nil {
		t.Fatalf("customer cannot log in: %v", err)
	}
	if cs.Scope != model.RoleCustomer {
		t.Fatalf("scope=%q want CUSTOMER", cs.Scope)
	}
}

func TestSaveRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.save(t, "Hassan", "hassan@example.com")

	cases := map[string]customer.Input{
		"no name":     {Email: "a@b.c", Password: "pw"},
		"bad email":   {Name: "x", Email: "not-an-email", Password: "pw"},
		"no password": {Name: "x", Email: "x@example.com"},
	}
	for name, in := range cases {
		if _, err := f.customer.Save(ctx, in); !errors.Is(err, customer.ErrInvalidInput) {
			t.Fatalf("%s: want ErrInvalidInput, got %v", name, err)
		}
	}
	if _, err := f.customer.Save(ctx, customer.Input{Name: "Other", Email: "hassan@example.com", Password: "pw"}); !errors.Is(err, identity.ErrDuplicateIdentity) {
		t.Fatalf("want ErrDuplicateIdentity, got %v", err)
	}
}

func TestSearchAndGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.save(t, "Mohamed Ali", "mo@example.com")
	f.save(t, "Imane", "imane@example.com")

	got, err := f.customer.Search(ctx, "ali")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("search result %+v", got)
	}
	all, err := f.customer.List(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("list: %v %+v", err, all)
	}
	if _, err := f.customer.Get(ctx, 999); !errors.Is(err, customer.ErrCustomerNotFound) {
		t.Fatalf("want ErrCustomerNotFound, got %v", err)
	}
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.save(t, "Old", "old@example.com")
	f.save(t, "Taken", "taken@example.com")

	got, err := f.customer.Update(ctx, a.ID, customer.Input{Name: "New", Email: "new@example.com", Password: "ignored"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Name != "New" || got.Email != "new@example.com" || got.PasswordHash != a.PasswordHash {
		t.Fatalf("unexpected update result %+v", got)
	}
	if _, err := f.customer.Update(ctx, a.ID, customer.Input{Name: "x", Email: "taken@example.com"}); !errors.Is(err, customer.ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if _, err := f.customer.Update(ctx, 999, customer.Input{Name: "x", Email: "x@example.com"}); !errors.Is(err, customer.ErrCustomerNotFound) {
		t.Fatalf("want ErrCustomerNotFound, got %v", err)
	}
}

func TestSaveTakenEmailLeavesNoLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.save(t, "Hassan", "hassan@example.com")
	if _, err := f.customer.Update(ctx, a.ID, customer.Input{Name: "Hassan", Email: "h2@example.com"}); err != nil {
		t.Fatalf("update: %v", err)
	}

	// h2@ belongs to a customer row but has no login of its own yet.
	_, err := f.customer.Save(ctx, customer.Input{Name: "Other", Email: "h2@example.com", Password: "other-pw"})
	if !errors.Is(err, customer.ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}
	if _, err := f.ids.IssueToken(ctx, "h2@example.com", "other-pw"); !errors.Is(err, identity.ErrAuthenticationFailed) {
		t.Fatalf("rejected registration must not leave a working login, got %v", err)
	}
	if _, err := f.ids.LoadIdentity(ctx, "h2@example.com"); !errors.Is(err, identity.ErrIdentityNotFound) {
		t.Fatalf("want ErrIdentityNotFound, got %v", err)
	}
	if _, err := f.ids.IssueToken(ctx, "hassan@example.com", "pw"); err != nil {
		t.Fatalf("existing login broken: %v", err)
	}
}

func TestOpenAccountBooksInitialDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.save(t, "Hassan", "hassan@example.com")

	acc, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{
		CustomerID:     c.ID,
		Kind:           model.KindCurrent,
		InitialBalance: decimal.RequireFromString("250.50"),
		Overdraft:      decimal.RequireFromString("100"),
		InterestRate:   decimal.RequireFromString("3"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if acc.ID == "" || acc.Status != model.AccountStatusCreated || acc.CustomerID != c.ID {
		t.Fatalf("unexpected account %+v", acc)
	}
	if !acc.Balance.Equal(decimal.RequireFromString("250.50")) {
		t.Fatalf("balance=%s", acc.Balance)
	}
	if !acc.Overdraft.Equal(decimal.RequireFromString("100")) || !acc.InterestRate.IsZero() {
		t.Fatalf("current account attributes wrong: %+v", acc)
	}

	ops, err := f.history.History(ctx, acc.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(ops) != 1 || ops[0].Type != model.OperationCredit || ops[0].Description != customer.InitialDepositDescription {
		t.Fatalf("unexpected operations %+v", ops)
	}
}

func TestOpenSavingAccountWithoutDeposit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.save(t, "Hassan", "hassan@example.com")

	acc, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{
		CustomerID:   c.ID,
		Kind:         model.KindSaving,
		InterestRate: decimal.RequireFromString("5.5"),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !acc.Balance.IsZero() || !acc.InterestRate.Equal(decimal.RequireFromString("5.5")) {
		t.Fatalf("unexpected account %+v", acc)
	}
	ops, _ := f.history.History(ctx, acc.ID)
	if len(ops) != 0 {
		t.Fatalf("operations=%d want 0", len(ops))
	}
}

func TestOpenAccountRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.save(t, "Hassan", "hassan@example.com")

	if _, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{CustomerID: c.ID, Kind: "GOLD"}); !errors.Is(err, customer.ErrInvalidInput) {
		t.Fatalf("kind: want ErrInvalidInput, got %v", err)
	}
	if _, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{
		CustomerID: c.ID, Kind: model.KindCurrent, InitialBalance: decimal.RequireFromString("-1"),
	}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("negative: want ErrInvalidAmount, got %v", err)
	}
	if _, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{
		CustomerID: c.ID, Kind: model.KindCurrent, InitialBalance: decimal.RequireFromString("1.234"),
	}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("precision: want ErrInvalidAmount, got %v", err)
	}
	if _, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{CustomerID: 42, Kind: model.KindCurrent}); !errors.Is(err, customer.ErrCustomerNotFound) {
		t.Fatalf("owner: want ErrCustomerNotFound, got %v", err)
	}
	accs, _ := f.store.List(ctx)
	if len(accs) != 0 {
		t.Fatalf("rejected openings left %d accounts", len(accs))
	}
}

func TestDeleteCascades(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.save(t, "Hassan", "hassan@example.com")
	keep := f.save(t, "Imane", "imane@example.com")

	acc, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{
		CustomerID: c.ID, Kind: model.KindCurrent, InitialBalance: decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	other, err := f.customer.OpenAccount(ctx, customer.OpenAccountInput{
		CustomerID: keep.ID, Kind: model.KindSaving, InitialBalance: decimal.NewFromInt(5),
	})
	if err != nil {
		t.Fatalf("open other: %v", err)
	}

	if err := f.customer.Delete(ctx, c.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.customer.Get(ctx, c.ID); !errors.Is(err, customer.ErrCustomerNotFound) {
		t.Fatalf("customer still there: %v", err)
	}
	if _, err := f.history.History(ctx, acc.ID); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("account still there: %v", err)
	}
	if ops, _ := f.store.ListOperations(ctx, acc.ID); len(ops) != 0 {
		t.Fatalf("operations survived the cascade: %+v", ops)
	}
	if _, err := f.history.History(ctx, other.ID); err != nil {
		t.Fatalf("unrelated account removed: %v", err)
	}
	if err := f.customer.Delete(ctx, c.ID); !errors.Is(err, customer.ErrCustomerNotFound) {
		t.Fatalf("second delete: want ErrCustomerNotFound, got %v", err)
	}
	accs, err := f.customer.Accounts(ctx, keep.ID)
	if err != nil || len(accs) != 1 {
		t.Fatalf("accounts of remaining customer: %v %+v", err, accs)
	}
}
