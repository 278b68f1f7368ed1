// Package memory keeps accounts, operations, customers, identities and
// roles in process memory. It honours the same contracts as the MySQL
// repositories (not-found, duplicate and version-conflict errors, atomic
// postings, cascade on customer delete) and backs tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ebank-backoffice/internal/model"
	"github.com/iliyamo/ebank-backoffice/internal/repository"
)

type Store struct {
	mu sync.RWMutex

	accounts   map[string]model.BankAccount
	operations map[string][]model.Operation
	customers  map[int64]model.Customer
	identities map[string]model.Identity
	roles      map[string]model.Role

	nextOperationID int64
	nextCustomerID  int64
	nextIdentityID  int64
	nextRoleID      int64
}

func NewStore() *Store {
	return &Store{
		accounts:   make(map[string]model.BankAccount),
		operations: make(map[string][]model.Operation),
		customers:  make(map[int64]model.Customer),
		identities: make(map[string]model.Identity),
		roles:      make(map[string]model.Role),
	}
}

// ----- accounts -----

func (s *Store) Load(ctx context.Context, id string) (model.BankAccount, error) {
	if err := ctx.Err(); err != nil {
		return model.BankAccount{}, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return model.BankAccount{}, fmt.Errorf("load account %s: %w", id, repository.ErrNotFound)
	}
	return acc, nil
}

func (s *Store) Save(ctx context.Context, account model.BankAccount) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.accounts[account.ID]; ok {
		cur.Status = account.Status
		cur.CustomerID = account.CustomerID
		cur.Kind = account.Kind
		cur.Overdraft = account.Overdraft
		cur.InterestRate = account.InterestRate
		s.accounts[account.ID] = cur
		return nil
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC()
	}
	account.Version = 0
	s.accounts[account.ID] = account
	return nil
}

func (s *Store) List(ctx context.Context) ([]model.BankAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.BankAccount, 0, len(s.accounts))
	for _, acc := range s.accounts {
		out = append(out, acc)
	}
	sortAccounts(out)
	return out, nil
}

func (s *Store) ListOperations(ctx context.Context, accountID string) ([]model.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := s.operations[accountID]
	out := make([]model.Operation, len(ops))
	copy(out, ops)
	return out, nil
}

func (s *Store) ListOperationsPage(ctx context.Context, accountID string, page, size int) ([]model.Operation, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := s.operations[accountID]
	start, end := repository.PageBounds(page, size, len(ops))
	out := make([]model.Operation, end-start)
	copy(out, ops[start:end])
	return out, len(ops), nil
}

// Post checks every posting before applying any of them, so a missing
// account or a stale version leaves the store untouched.
func (s *Store) Post(ctx context.Context, postings ...model.Posting) ([]model.Operation, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range postings {
		acc, ok := s.accounts[p.AccountID]
		if !ok {
			return nil, fmt.Errorf("post to %s: %w", p.AccountID, repository.ErrNotFound)
		}
		if acc.Version != p.ExpectedVersion {
			return nil, fmt.Errorf("post to %s: version %d, expected %d: %w",
				p.AccountID, acc.Version, p.ExpectedVersion, repository.ErrConflict)
		}
	}

	stored := make([]model.Operation, 0, len(postings))
	for _, p := range postings {
		acc := s.accounts[p.AccountID]
		acc.Balance = p.NewBalance
		acc.Version++
		s.accounts[p.AccountID] = acc

		s.nextOperationID++
		op := p.Operation
		op.ID = s.nextOperationID
		op.AccountID = p.AccountID
		s.operations[p.AccountID] = append(s.operations[p.AccountID], op)
		stored = append(stored, op)
	}
	return stored, nil
}

// ----- customers -----

func (s *Store) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return s.SearchCustomers(ctx, "")
}

// SearchCustomers matches keyword as a case-insensitive substring of the name.
func (s *Store) SearchCustomers(ctx context.Context, keyword string) ([]model.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	kw := strings.ToLower(keyword)
	out := make([]model.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if kw == "" || strings.Contains(strings.ToLower(c.Name), kw) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	if err := ctx.Err(); err != nil {
		return model.Customer{}, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.customers[id]
	if !ok {
		return model.Customer{}, fmt.Errorf("get customer %d: %w", id, repository.ErrNotFound)
	}
	return c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if err := ctx.Err(); err != nil {
		return model.Customer{}, unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.customers {
		if strings.EqualFold(existing.Email, c.Email) {
			return model.Customer{}, fmt.Errorf("create customer %s: %w", c.Email, repository.ErrDuplicate)
		}
	}
	s.nextCustomerID++
	c.ID = s.nextCustomerID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.customers[c.ID] = c
	return c, nil
}

func (s *Store) UpdateCustomer(ctx context.Context, c model.Customer) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.customers[c.ID]
	if !ok {
		return fmt.Errorf("update customer %d: %w", c.ID, repository.ErrNotFound)
	}
	for id, existing := range s.customers {
		if id != c.ID && strings.EqualFold(existing.Email, c.Email) {
			return fmt.Errorf("update customer %d: %w", c.ID, repository.ErrDuplicate)
		}
	}
	cur.Name = c.Name
	cur.Email = c.Email
	s.customers[c.ID] = cur
	return nil
}

// DeleteCustomer removes the customer together with its accounts and
// their operations.
func (s *Store) DeleteCustomer(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.customers[id]; !ok {
		return fmt.Errorf("delete customer %d: %w", id, repository.ErrNotFound)
	}
	for accID, acc := range s.accounts {
		if acc.CustomerID == id {
			delete(s.operations, accID)
			delete(s.accounts, accID)
		}
	}
	delete(s.customers, id)
	return nil
}

func (s *Store) AccountsOfCustomer(ctx context.Context, customerID int64) ([]model.BankAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.BankAccount{}
	for _, acc := range s.accounts {
		if acc.CustomerID == customerID {
			out = append(out, acc)
		}
	}
	sortAccounts(out)
	return out, nil
}

// ----- identities and roles -----

func (s *Store) FindByUsername(ctx context.Context, username string) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.identities[username]
	if !ok {
		return model.Identity{}, fmt.Errorf("find identity %s: %w", username, repository.ErrNotFound)
	}
	return cloneIdentity(id), nil
}

func (s *Store) CreateIdentity(ctx context.Context, identity model.Identity) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[identity.Username]; ok {
		return model.Identity{}, fmt.Errorf("create identity %s: %w", identity.Username, repository.ErrDuplicate)
	}
	s.nextIdentityID++
	identity.ID = s.nextIdentityID
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	identity = cloneIdentity(identity)
	s.identities[identity.Username] = identity
	return cloneIdentity(identity), nil
}

// SaveIdentity replaces the stored credential and role set.
func (s *Store) SaveIdentity(ctx context.Context, identity model.Identity) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.identities[identity.Username]
	if !ok {
		return fmt.Errorf("save identity %s: %w", identity.Username, repository.ErrNotFound)
	}
	for _, r := range identity.Roles {
		if _, ok := s.roles[r.Name]; !ok {
			return fmt.Errorf("save identity %s: role %s: %w", identity.Username, r.Name, repository.ErrNotFound)
		}
	}
	cur.PasswordHash = identity.PasswordHash
	cur.Roles = cloneIdentity(identity).Roles
	s.identities[identity.Username] = cur
	return nil
}

func (s *Store) DeleteIdentity(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.identities[username]; !ok {
		return fmt.Errorf("delete identity %s: %w", username, repository.ErrNotFound)
	}
	delete(s.identities, username)
	return nil
}

func (s *Store) FindByName(ctx context.Context, name string) (model.Role, error) {
	if err := ctx.Err(); err != nil {
		return model.Role{}, unavailable(err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[name]
	if !ok {
		return model.Role{}, fmt.Errorf("find role %s: %w", name, repository.ErrNotFound)
	}
	return r, nil
}

func (s *Store) SaveRole(ctx context.Context, role model.Role) (model.Role, error) {
	if err := ctx.Err(); err != nil {
		return model.Role{}, unavailable(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[role.Name]; ok {
		return model.Role{}, fmt.Errorf("save role %s: %w", role.Name, repository.ErrDuplicate)
	}
	s.nextRoleID++
	role.ID = s.nextRoleID
	s.roles[role.Name] = role
	return role, nil
}

func cloneIdentity(in model.Identity) model.Identity {
	out := in
	out.Roles = append([]model.Role(nil), in.Roles...)
	return out
}

func sortAccounts(accs []model.BankAccount) {
	sort.Slice(accs, func(i, j int) bool {
		if !accs[i].CreatedAt.Equal(accs[j].CreatedAt) {
			return accs[i].CreatedAt.Before(accs[j].CreatedAt)
		}
		return accs[i].ID < accs[j].ID
	})
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, err)
}
