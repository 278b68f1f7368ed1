package ledger

import (
	"errors"
	"fmt"

	"github.com/iliyamo/ebank-backoffice/internal/repository"
)

// Domain rejections of the ledger. None of them is retried: repeating the
// call with the same input yields the same answer.
var (
	// ErrAccountNotFound wraps repository.ErrNotFound so callers may test
	// for either.
	ErrAccountNotFound = fmt.Errorf("bank account %w", repository.ErrNotFound)

	// ErrInvalidAmount rejects non-positive amounts and amounts finer than
	// the currency minor unit.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance rejects a debit larger than the balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrSameAccount rejects a transfer whose source and destination match.
	ErrSameAccount = errors.New("source and destination accounts are the same")

	// ErrInvalidPage rejects a negative page index or page size.
	ErrInvalidPage = errors.New("invalid page request")
)

// notFound turns a store miss into ErrAccountNotFound naming the account.
func notFound(id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return err
}
