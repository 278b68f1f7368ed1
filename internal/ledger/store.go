package ledger

import (
	"context"

	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// AccountStore is the persistence the ledger needs. Implementations must
// report a missing account with repository.ErrNotFound, a stale
// ExpectedVersion with repository.ErrConflict and I/O trouble with
// repository.ErrStoreUnavailable.
type AccountStore interface {
	Load(ctx context.Context, id string) (model.BankAccount, error)
	// Save inserts a new account or updates its descriptive fields. The
	// balance of an existing account only changes through Post.
	Save(ctx context.Context, account model.BankAccount) error
	List(ctx context.Context) ([]model.BankAccount, error)
	// ListOperations returns the account's operations in insertion order.
	ListOperations(ctx context.Context, accountID string) ([]model.Operation, error)
	// ListOperationsPage returns the page-th window of size operations in
	// insertion order together with the total number of operations.
	ListOperationsPage(ctx context.Context, accountID string, page, size int) ([]model.Operation, int, error)
	// Post applies every posting in one transaction and returns the stored
	// operations with their assigned IDs. Either all postings are applied
	// or none.
	Post(ctx context.Context, postings ...model.Posting) ([]model.Operation, error)
}

// EventPublisher receives every operation after it has been committed.
type EventPublisher interface {
	PublishOperation(ctx context.Context, op model.Operation) error
}

// Locker serialises mutators of the same accounts. Lock blocks until every
// id is held or ctx is done; the returned func releases all of them and is
// safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, ids ...string) (unlock func(), err error)
}
