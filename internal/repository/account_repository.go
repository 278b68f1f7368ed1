package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// AccountRepo stores bank accounts and their operations in MySQL. Balances
// only change through Post, which writes every posting of a batch in one
// transaction guarded by the account version.
type AccountRepo struct {
	db *sql.DB
}

func NewAccountRepo(db *sql.DB) *AccountRepo { return &AccountRepo{db: db} }

const accountColumns = `id, type, balance, status, created_at, customer_id, overdraft, interest_rate, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (model.BankAccount, error) {
	var (
		acc        model.BankAccount
		code       string
		customerID sql.NullInt64
		overdraft  decimal.NullDecimal
		rate       decimal.NullDecimal
	)
	if err := row.Scan(&acc.ID, &code, &acc.Balance, &acc.Status, &acc.CreatedAt,
		&customerID, &overdraft, &rate, &acc.Version); err != nil {
		return model.BankAccount{}, err
	}
	kind, ok := model.KindFromDiscriminator(code)
	if !ok {
		return model.BankAccount{}, fmt.Errorf("account %s: unknown type %q", acc.ID, code)
	}
	acc.Kind = kind
	acc.CustomerID = customerID.Int64
	if overdraft.Valid {
		acc.Overdraft = overdraft.Decimal
	}
	if rate.Valid {
		acc.InterestRate = rate.Decimal
	}
	return acc, nil
}

func (r *AccountRepo) Load(ctx context.Context, id string) (model.BankAccount, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id = ?`, id)
	acc, err := scanAccount(row)
	if err != nil {
		return model.BankAccount{}, classify("load account "+id, err)
	}
	return acc, nil
}

// Save inserts a new account or updates the descriptive columns of an
// existing one. balance and version are left to Post.
func (r *AccountRepo) Save(ctx context.Context, acc model.BankAccount) error {
	info, ok := acc.Kind.Info()
	if !ok {
		return fmt.Errorf("save account %s: unknown kind %q", acc.ID, acc.Kind)
	}
	if acc.CreatedAt.IsZero() {
		acc.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO bank_accounts (id, type, balance, status, created_at, customer_id, overdraft, interest_rate, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)
ON DUPLICATE KEY UPDATE type = VALUES(type), status = VALUES(status), customer_id = VALUES(customer_id),
overdraft = VALUES(overdraft), interest_rate = VALUES(interest_rate)`
	_, err := r.db.ExecContext(ctx, q,
		acc.ID, info.Discriminator, acc.Balance, string(acc.Status), acc.CreatedAt,
		nullableID(acc.CustomerID), nullableDecimal(info.UsesOverdraft, acc.Overdraft),
		nullableDecimal(info.UsesInterest, acc.InterestRate))
	return classify("save account "+acc.ID, err)
}

func (r *AccountRepo) List(ctx context.Context) ([]model.BankAccount, error) {
	return r.queryAccounts(ctx, "list accounts",
		`SELECT `+accountColumns+` FROM bank_accounts ORDER BY created_at, id`)
}

func (r *AccountRepo) AccountsOfCustomer(ctx context.Context, customerID int64) ([]model.BankAccount, error) {
	return r.queryAccounts(ctx, "list customer accounts",
		`SELECT `+accountColumns+` FROM bank_accounts WHERE customer_id = ? ORDER BY created_at, id`, customerID)
}

func (r *AccountRepo) queryAccounts(ctx context.Context, op, q string, args ...any) ([]model.BankAccount, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	out := []model.BankAccount{}
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, acc)
	}
	return out, classify(op, rows.Err())
}

const operationColumns = `id, operation_date, amount, type, description, bank_account_id`

// ListOperations returns the account's operations oldest first.
func (r *AccountRepo) ListOperations(ctx context.Context, accountID string) ([]model.Operation, error) {
	return r.queryOperations(ctx, "list operations",
		`SELECT `+operationColumns+` FROM account_operations WHERE bank_account_id = ? ORDER BY id`, accountID)
}

// ListOperationsPage returns one window of the account's operations and the
// total count. Windows outside the log are empty.
func (r *AccountRepo) ListOperationsPage(ctx context.Context, accountID string, page, size int) ([]model.Operation, int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_operations WHERE bank_account_id = ?`, accountID).Scan(&total)
	if err != nil {
		return nil, 0, classify("count operations", err)
	}
	start, end := PageBounds(page, size, total)
	if start == end {
		return []model.Operation{}, total, nil
	}
	ops, err := r.queryOperations(ctx, "page operations",
		`SELECT `+operationColumns+` FROM account_operations WHERE bank_account_id = ? ORDER BY id LIMIT ? OFFSET ?`,
		accountID, end-start, start)
	if err != nil {
		return nil, 0, err
	}
	return ops, total, nil
}

func (r *AccountRepo) queryOperations(ctx context.Context, op, q string, args ...any) ([]model.Operation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()
	out := []model.Operation{}
	for rows.Next() {
		var (
			o    model.Operation
			desc sql.NullString
		)
		if err := rows.Scan(&o.ID, &o.Date, &o.Amount, &o.Type, &desc, &o.AccountID); err != nil {
			return nil, classify(op, err)
		}
		o.Description = desc.String
		out = append(out, o)
	}
	return out, classify(op, rows.Err())
}

// Post applies the postings in a single transaction. A posting whose
// account moved past ExpectedVersion aborts the batch with ErrConflict; a
// missing account aborts it with ErrNotFound.
func (r *AccountRepo) Post(ctx context.Context, postings ...model.Posting) ([]model.Operation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin posting", err)
	}
	defer tx.Rollback() // no-op after Commit

	stored := make([]model.Operation, 0, len(postings))
	for _, p := range postings {
		res, err := tx.ExecContext(ctx,
			`UPDATE bank_accounts SET balance = ?, version = version + 1 WHERE id = ? AND version = ?`,
			p.NewBalance, p.AccountID, p.ExpectedVersion)
		if err != nil {
			return nil, classify("post balance "+p.AccountID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, classify("post balance "+p.AccountID, err)
		}
		if n == 0 {
			return nil, r.missOrConflict(ctx, tx, p)
		}

		op := p.Operation
		op.AccountID = p.AccountID
		res, err = tx.ExecContext(ctx,
			`INSERT INTO account_operations (operation_date, amount, type, description, bank_account_id) VALUES (?, ?, ?, ?, ?)`,
			op.Date, op.Amount, string(op.Type), op.Description, op.AccountID)
		if err != nil {
			return nil, classify("post operation "+p.AccountID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, classify("post operation "+p.AccountID, err)
		}
		op.ID = id
		stored = append(stored, op)
	}
	if err := tx.Commit(); err != nil {
		return nil, classify("commit posting", err)
	}
	return stored, nil
}

func (r *AccountRepo) missOrConflict(ctx context.Context, tx *sql.Tx, p model.Posting) error {
	var version int64
	err := tx.QueryRowContext(ctx, `SELECT version FROM bank_accounts WHERE id = ?`, p.AccountID).Scan(&version)
	if err != nil {
		return classify("post to "+p.AccountID, err)
	}
	return fmt.Errorf("post to %s: version %d, expected %d: %w", p.AccountID, version, p.ExpectedVersion, ErrConflict)
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func nullableDecimal(used bool, d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: used}
}
