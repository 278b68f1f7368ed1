// Package ledger owns every balance mutation. Debit, credit and transfer
// run under a per-account lock and hand their postings to the store as a
// single transaction, so a balance always equals the sum of its account's
// operations.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/ebank-backoffice/internal/logger"
	"github.com/iliyamo/ebank-backoffice/internal/model"
	"github.com/iliyamo/ebank-backoffice/internal/repository"
)

// minorUnitDigits is the number of fractional digits of the currency.
const minorUnitDigits = 2

const defaultMaxAttempts = 3

// Engine performs debit, credit and transfer against an AccountStore.
type Engine struct {
	store       AccountStore
	locker      Locker
	publisher   EventPublisher
	now         func() time.Time
	maxAttempts int
}

// Option customises an Engine.
type Option func(*Engine)

// WithPublisher sends every committed operation to p.
func WithPublisher(p EventPublisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxAttempts bounds how many times a mutation is retried after losing
// an optimistic concurrency race in the store.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// NewEngine builds an Engine. A nil locker falls back to an in-process
// KeyedMutex.
func NewEngine(store AccountStore, locker Locker, opts ...Option) *Engine {
	if locker == nil {
		locker = NewKeyedMutex()
	}
	e := &Engine{
		store:       store,
		locker:      locker,
		now:         func() time.Time { return time.Now().UTC() },
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Account returns one bank account.
func (e *Engine) Account(ctx context.Context, id string) (model.BankAccount, error) {
	return e.load(ctx, id)
}

// Accounts lists every bank account.
func (e *Engine) Accounts(ctx context.Context) ([]model.BankAccount, error) {
	return e.store.List(ctx)
}

// Debit takes amount out of the account and records a DEBIT operation.
// The amount is validated before the account is looked up. Locks are
// released before the operation is published.
func (e *Engine) Debit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (model.Operation, error) {
	if err := ValidateAmount(amount); err != nil {
		return model.Operation{}, err
	}
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return model.Operation{}, fmt.Errorf("debit: %w", err)
	}
	defer unlock()

	var stored []model.Operation
	err = e.retry(ctx, func() error {
		acc, err := e.load(ctx, accountID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(acc.Balance) {
			return fmt.Errorf("%w: account %s", ErrInsufficientBalance, accountID)
		}
		stored, err = e.store.Post(ctx, e.posting(acc, model.OperationDebit, amount, description))
		return err
	})
	if err != nil {
		e.logFailure("ledger debit rejected", err, logger.Fields{"accountId": accountID, "amount": amount.String()})
		return model.Operation{}, err
	}
	unlock()
	e.publish(ctx, stored)
	logger.Info("ledger debit", logger.Fields{"accountId": accountID, "amount": amount.String()})
	return stored[0], nil
}

// Credit adds amount to the account and records a CREDIT operation. Like
// Debit it validates the amount before the lookup.
func (e *Engine) Credit(ctx context.Context, accountID string, amount decimal.Decimal, description string) (model.Operation, error) {
	if err := ValidateAmount(amount); err != nil {
		return model.Operation{}, err
	}
	unlock, err := e.locker.Lock(ctx, accountID)
	if err != nil {
		return model.Operation{}, fmt.Errorf("credit: %w", err)
	}
	defer unlock()

	var stored []model.Operation
	err = e.retry(ctx, func() error {
		acc, err := e.load(ctx, accountID)
		if err != nil {
			return err
		}
		stored, err = e.store.Post(ctx, e.posting(acc, model.OperationCredit, amount, description))
		return err
	})
	if err != nil {
		e.logFailure("ledger credit rejected", err, logger.Fields{"accountId": accountID, "amount": amount.String()})
		return model.Operation{}, err
	}
	unlock()
	e.publish(ctx, stored)
	logger.Info("ledger credit", logger.Fields{"accountId": accountID, "amount": amount.String()})
	return stored[0], nil
}

// Transfer moves amount from sourceID to destID. The debit and the credit
// are committed in the same store transaction: either both accounts change
// or neither does. An invalid amount is reported before either account is
// looked up.
func (e *Engine) Transfer(ctx context.Context, sourceID, destID string, amount decimal.Decimal) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}
	if sourceID == destID {
		return ErrSameAccount
	}
	unlock, err := e.locker.Lock(ctx, sourceID, destID)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	defer unlock()

	var stored []model.Operation
	err = e.retry(ctx, func() error {
		src, err := e.load(ctx, sourceID)
		if err != nil {
			return err
		}
		dst, err := e.load(ctx, destID)
		if err != nil {
			return err
		}
		if amount.GreaterThan(src.Balance) {
			return fmt.Errorf("%w: account %s", ErrInsufficientBalance, sourceID)
		}
		stored, err = e.store.Post(ctx,
			e.posting(src, model.OperationDebit, amount, "Transfer to "+destID),
			e.posting(dst, model.OperationCredit, amount, "Transfer from "+sourceID),
		)
		return err
	})
	if err != nil {
		e.logFailure("ledger transfer rejected", err, logger.Fields{
			"source": sourceID, "destination": destID, "amount": amount.String(),
		})
		return err
	}
	unlock()
	e.publish(ctx, stored)
	logger.Info("ledger transfer", logger.Fields{"source": sourceID, "destination": destID, "amount": amount.String()})
	return nil
}

// ValidateAmount accepts strictly positive amounts expressed in whole
// minor units.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero", ErrInvalidAmount, amount.String())
	}
	if !amount.Equal(amount.Truncate(minorUnitDigits)) {
		return fmt.Errorf("%w: %s has more than %d decimals", ErrInvalidAmount, amount.String(), minorUnitDigits)
	}
	return nil
}

func (e *Engine) load(ctx context.Context, id string) (model.BankAccount, error) {
	acc, err := e.store.Load(ctx, id)
	if err != nil {
		return model.BankAccount{}, notFound(id, err)
	}
	return acc, nil
}

func (e *Engine) posting(acc model.BankAccount, typ model.OperationType, amount decimal.Decimal, description string) model.Posting {
	op := model.Operation{
		Date:        e.now(),
		Amount:      amount,
		Type:        typ,
		Description: description,
		AccountID:   acc.ID,
	}
	return model.Posting{
		AccountID:       acc.ID,
		ExpectedVersion: acc.Version,
		NewBalance:      acc.Balance.Add(op.SignedAmount()),
		Operation:       op,
	}
}

// retry re-runs fn while the store reports a version conflict. Any other
// outcome, success or failure, is final.
func (e *Engine) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, repository.ErrConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %w", repository.ErrStoreUnavailable, ctxErr)
		}
		logger.Debug("ledger retry after version conflict", logger.Fields{"attempt": attempt})
	}
	return err
}

func (e *Engine) publish(ctx context.Context, ops []model.Operation) {
	if e.publisher == nil {
		return
	}
	for _, op := range ops {
		if err := e.publisher.PublishOperation(ctx, op); err != nil {
			logger.Error("publish operation event failed", err, logger.Fields{
				"operationId": op.ID, "accountId": op.AccountID,
			})
		}
	}
}

func (e *Engine) logFailure(message string, err error, fields logger.Fields) {
	if isDomainError(err) {
		fields["reason"] = err.Error()
		logger.Info(message, fields)
		return
	}
	logger.Error(message, err, fields)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrSameAccount)
}
