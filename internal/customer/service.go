// Package customer manages bank customers and opens accounts on their
// behalf. Balances are never written here: an initial deposit goes
// through the ledger like any other credit.
package customer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/ebank-backoffice/internal/ledger"
	"github.com/iliyamo/ebank-backoffice/internal/logger"
	"github.com/iliyamo/ebank-backoffice/internal/model"
	"github.com/iliyamo/ebank-backoffice/internal/repository"
)

var (
	ErrCustomerNotFound = fmt.Errorf("customer %w", repository.ErrNotFound)
	ErrDuplicateEmail   = fmt.Errorf("customer email %w", repository.ErrDuplicate)
	ErrInvalidInput     = errors.New("invalid customer input")
)

// InitialDepositDescription labels the credit that funds a new account.
const InitialDepositDescription = "Initial deposit"

// Store persists customers. DeleteCustomer removes the customer's accounts
// and their operations in the same transaction.
type Store interface {
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	SearchCustomers(ctx context.Context, keyword string) ([]model.Customer, error)
	GetCustomer(ctx context.Context, id int64) (model.Customer, error)
	CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error)
	UpdateCustomer(ctx context.Context, c model.Customer) error
	DeleteCustomer(ctx context.Context, id int64) error
	AccountsOfCustomer(ctx context.Context, customerID int64) ([]model.BankAccount, error)
}

// AccountOpener stores a new, empty bank account.
type AccountOpener interface {
	Save(ctx context.Context, account model.BankAccount) error
	Load(ctx context.Context, id string) (model.BankAccount, error)
}

// Depositor books the opening balance. *ledger.Engine satisfies it.
type Depositor interface {
	Credit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (model.Operation, error)
}

// IdentityProvisioner creates the login of a new customer and removes it
// again when the customer row cannot be stored. *identity.Engine satisfies
// it.
type IdentityProvisioner interface {
	AddNewAccount(ctx context.Context, username, password, roleName string) (model.Identity, error)
	RemoveAccount(ctx context.Context, username string) error
}

type Service struct {
	store      Store
	accounts   AccountOpener
	depositor  Depositor
	identities IdentityProvisioner
	now        func() time.Time
	newID      func() string
}

func NewService(store Store, accounts AccountOpener, depositor Depositor, identities IdentityProvisioner) *Service {
	return &Service{
		store:      store,
		accounts:   accounts,
		depositor:  depositor,
		identities: identities,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}
}

// Input carries the writable fields of a customer. Password is only read
// by Save.
type Input struct {
	Name     string
	Email    string
	Password string
}

func (s *Service) List(ctx context.Context) ([]model.Customer, error) {
	return s.store.ListCustomers(ctx)
}

// Search matches keyword against customer names.
func (s *Service) Search(ctx context.Context, keyword string) ([]model.Customer, error) {
	return s.store.SearchCustomers(ctx, strings.TrimSpace(keyword))
}

func (s *Service) Get(ctx context.Context, id int64) (model.Customer, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return model.Customer{}, notFound(id, err)
	}
	return c, nil
}

// Save registers a customer together with a CUSTOMER login whose username
// is the email address.
func (s *Service) Save(ctx context.Context, in Input) (model.Customer, error) {
	in, err := normalise(in)
	if err != nil {
		return model.Customer{}, err
	}
	if in.Password == "" {
		return model.Customer{}, fmt.Errorf("%w: password is required", ErrInvalidInput)
	}

	ident, err := s.identities.AddNewAccount(ctx, in.Email, in.Password, model.RoleCustomer)
	if err != nil {
		return model.Customer{}, fmt.Errorf("provision login for %s: %w", in.Email, err)
	}
	c, err := s.store.CreateCustomer(ctx, model.Customer{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: ident.PasswordHash,
		CreatedAt:    s.now(),
	})
	if err != nil {
		s.dropLogin(ctx, in.Email)
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Customer{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, in.Email)
		}
		return model.Customer{}, err
	}
	logger.Info("customer created", logger.Fields{"customerId": c.ID, "email": c.Email})
	return c, nil
}

// dropLogin removes a login provisioned for a customer row that was never
// stored.
func (s *Service) dropLogin(ctx context.Context, username string) {
	if err := s.identities.RemoveAccount(context.WithoutCancel(ctx), username); err != nil {
		logger.Error("orphan customer login left behind", err, logger.Fields{"email": username})
		return
	}
	logger.Warn("customer login rolled back", logger.Fields{"email": username})
}

// Update changes name and email. Credentials change only through the
// identity engine.
func (s *Service) Update(ctx context.Context, id int64, in Input) (model.Customer, error) {
	in, err := normalise(in)
	if err != nil {
		return model.Customer{}, err
	}
	err = s.store.UpdateCustomer(ctx, model.Customer{ID: id, Name: in.Name, Email: in.Email})
	switch {
	case errors.Is(err, repository.ErrDuplicate):
		return model.Customer{}, fmt.Errorf("%w: %s", ErrDuplicateEmail, in.Email)
	case err != nil:
		return model.Customer{}, notFound(id, err)
	}
	logger.Info("customer updated", logger.Fields{"customerId": id})
	return s.Get(ctx, id)
}

// Delete removes the customer, its accounts and their operations. The
// customer's login is kept.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteCustomer(ctx, id); err != nil {
		return notFound(id, err)
	}
	logger.Info("customer deleted", logger.Fields{"customerId": id})
	return nil
}

// Accounts lists the bank accounts owned by the customer.
func (s *Service) Accounts(ctx context.Context, customerID int64) ([]model.BankAccount, error) {
	if _, err := s.Get(ctx, customerID); err != nil {
		return nil, err
	}
	return s.store.AccountsOfCustomer(ctx, customerID)
}

// OpenAccountInput describes a new current or saving account.
type OpenAccountInput struct {
	CustomerID     int64
	Kind           model.AccountKind
	InitialBalance decimal.Decimal
	Overdraft      decimal.Decimal // current accounts only
	InterestRate   decimal.Decimal // saving accounts only
}

// OpenAccount creates an empty account in status CREATED and credits the
// initial balance, if any, as an "Initial deposit" operation.
func (s *Service) OpenAccount(ctx context.Context, in OpenAccountInput) (model.BankAccount, error) {
	info, ok := in.Kind.Info()
	if !ok {
		return model.BankAccount{}, fmt.Errorf("%w: unknown account type %q", ErrInvalidInput, in.Kind)
	}
	if in.InitialBalance.IsNegative() {
		return model.BankAccount{}, fmt.Errorf("%w: initial balance must not be negative", ledger.ErrInvalidAmount)
	}
	if in.InitialBalance.IsPositive() {
		if err := ledger.ValidateAmount(in.InitialBalance); err != nil {
			return model.BankAccount{}, err
		}
	}
	if in.Overdraft.IsNegative() || in.InterestRate.IsNegative() {
		return model.BankAccount{}, fmt.Errorf("%w: overdraft and interest rate must not be negative", ErrInvalidInput)
	}
	if _, err := s.Get(ctx, in.CustomerID); err != nil {
		return model.BankAccount{}, err
	}

	acc := model.BankAccount{
		ID:         s.newID(),
		Balance:    decimal.Zero,
		Status:     model.AccountStatusCreated,
		CreatedAt:  s.now(),
		CustomerID: in.CustomerID,
		Kind:       in.Kind,
	}
	if info.UsesOverdraft {
		acc.Overdraft = in.Overdraft
	}
	if info.UsesInterest {
		acc.InterestRate = in.InterestRate
	}
	if err := s.accounts.Save(ctx, acc); err != nil {
		return model.BankAccount{}, fmt.Errorf("open account: %w", err)
	}
	logger.Info("bank account opened", logger.Fields{
		"accountId": acc.ID, "customerId": acc.CustomerID, "type": string(acc.Kind),
	})

	if in.InitialBalance.IsPositive() {
		if _, err := s.depositor.Credit(ctx, acc.ID, in.InitialBalance, InitialDepositDescription); err != nil {
			return model.BankAccount{}, fmt.Errorf("initial deposit on %s: %w", acc.ID, err)
		}
	}
	return s.accounts.Load(ctx, acc.ID)
}

func normalise(in Input) (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Name == "" {
		return in, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(in.Email)
	if err != nil || addr.Address != in.Email {
		return in, fmt.Errorf("%w: email %q is not valid", ErrInvalidInput, in.Email)
	}
	return in, nil
}

func notFound(id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrCustomerNotFound, id)
	}
	return err
}
