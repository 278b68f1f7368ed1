package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// CustomerRepo stores customers in MySQL. Accounts reference customers
// with ON DELETE CASCADE, and operations reference accounts the same way,
// so deleting a customer removes everything it owns in one statement.
type CustomerRepo struct {
	db       *sql.DB
	accounts *AccountRepo
}

func NewCustomerRepo(db *sql.DB) *CustomerRepo {
	return &CustomerRepo{db: db, accounts: NewAccountRepo(db)}
}

const customerColumns = `id, name, email, password_hash, created_at`

func (r *CustomerRepo) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	return r.query(ctx, "list customers", `SELECT `+customerColumns+` FROM customers ORDER BY id`)
}

// SearchCustomers matches keyword anywhere in the customer name.
func (r *CustomerRepo) SearchCustomers(ctx context.Context, keyword string) ([]model.Customer, error) {
	pattern := "%" + escapeLike(keyword) + "%"
	return r.query(ctx, "search customers",
		`SELECT `+customerColumns+` FROM customers WHERE name LIKE ? ORDER BY id`, pattern)
}

func (r *CustomerRepo) GetCustomer(ctx context.Context, id int64) (model.Customer, error) {
	var c model.Customer
	err := r.db.QueryRowContext(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.CreatedAt)
	if err != nil {
		return model.Customer{}, classify(fmt.Sprintf("get customer %d", id), err)
	}
	return c, nil
}

func (r *CustomerRepo) CreateCustomer(ctx context.Context, c model.Customer) (model.Customer, error) {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO customers (name, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		c.Name, c.Email, c.PasswordHash, c.CreatedAt)
	if err != nil {
		return model.Customer{}, classify("create customer "+c.Email, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Customer{}, classify("create customer "+c.Email, err)
	}
	c.ID = id
	return c, nil
}

// UpdateCustomer rewrites name and email.
func (r *CustomerRepo) UpdateCustomer(ctx context.Context, c model.Customer) error {
	op := fmt.Sprintf("update customer %d", c.ID)
	var exists int
	if err := r.db.QueryRowContext(ctx, `SELECT 1 FROM customers WHERE id = ?`, c.ID).Scan(&exists); err != nil {
		return classify(op, err)
	}
	_, err := r.db.ExecContext(ctx, `UPDATE customers SET name = ?, email = ? WHERE id = ?`, c.Name, c.Email, c.ID)
	return classify(op, err)
}

func (r *CustomerRepo) DeleteCustomer(ctx context.Context, id int64) error {
	op := fmt.Sprintf("delete customer %d", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

func (r *CustomerRepo) AccountsOfCustomer(ctx context.Context, customerID int64) ([]model.BankAccount, error) {
	return r.accounts.AccountsOfCustomer(ctx, customerID)
}

func (r *CustomerRepo) query(ctx context.Context, op, q string, args ...any) ([]model.Customer, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	out := []model.Customer{}
	for rows.Next() {
		var c model.Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.PasswordHash, &c.CreatedAt); err != nil {
			return nil, classify(op, err)
		}
		out = append(out, c)
	}
	return out, classify(op, rows.Err())
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
