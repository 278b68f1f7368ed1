package ledger

import (
	"context"
	"fmt"

	"github.com/iliyamo/ebank-backoffice/internal/model"
)

// Defaults applied by the API layer when page or size are not supplied.
const (
	DefaultPage     = 0
	DefaultPageSize = 5
)

// HistoryService is the read side of the ledger. Operations are always
// returned in insertion order, oldest first.
type HistoryService struct {
	store AccountStore
}

func NewHistoryService(store AccountStore) *HistoryService {
	return &HistoryService{store: store}
}

// History returns every operation of the account.
func (h *HistoryService) History(ctx context.Context, accountID string) ([]model.Operation, error) {
	if _, err := h.account(ctx, accountID); err != nil {
		return nil, err
	}
	ops, err := h.store.ListOperations(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("history of %s: %w", accountID, err)
	}
	if ops == nil {
		ops = []model.Operation{}
	}
	return ops, nil
}

// PagedHistory returns the page-th window of size operations. A window past
// the end, or a zero size, is empty but still carries the totals.
func (h *HistoryService) PagedHistory(ctx context.Context, accountID string, page, size int) (model.AccountHistory, error) {
	if page < 0 || size < 0 {
		return model.AccountHistory{}, fmt.Errorf("%w: page=%d size=%d", ErrInvalidPage, page, size)
	}
	acc, err := h.account(ctx, accountID)
	if err != nil {
		return model.AccountHistory{}, err
	}
	ops, total, err := h.store.ListOperationsPage(ctx, accountID, page, size)
	if err != nil {
		return model.AccountHistory{}, fmt.Errorf("history page of %s: %w", accountID, err)
	}
	if ops == nil {
		ops = []model.Operation{}
	}
	return model.AccountHistory{
		AccountID:       acc.ID,
		Balance:         acc.Balance,
		Page:            page,
		Size:            size,
		TotalOperations: total,
		TotalPages:      totalPages(total, size),
		Operations:      ops,
	}, nil
}

func (h *HistoryService) account(ctx context.Context, id string) (model.BankAccount, error) {
	acc, err := h.store.Load(ctx, id)
	if err != nil {
		return model.BankAccount{}, notFound(id, err)
	}
	return acc, nil
}

func totalPages(total, size int) int {
	if size <= 0 {
		return 0
	}
	return (total + size - 1) / size
}
