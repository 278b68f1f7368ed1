package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// OperationType distinguishes money leaving an account from money entering it.
type OperationType string

const (
    OperationDebit  OperationType = "DEBIT"
    OperationCredit OperationType = "CREDIT"
)

// Operation models an entry in the `account_operations` table.  Amount is
// the positive magnitude; the sign comes from Type.
type Operation struct {
    ID          int64           // account_operations.id, assigned by the store
    Date        time.Time       // account_operations.operation_date (UTC)
    Amount      decimal.Decimal // account_operations.amount
    Type        OperationType   // account_operations.type
    Description string          // account_operations.description
    AccountID   string          // account_operations.bank_account_id
}

// SignedAmount returns the amount with its ledger sign: positive for
// credits, negative for debits.
func (o Operation) SignedAmount() decimal.Decimal {
    if o.Type == OperationDebit {
        return o.Amount.Neg()
    }
    return o.Amount
}

// Posting is one balance write plus the operation explaining it.  A store
// commits a batch of postings in a single transaction.  ExpectedVersion is
// the account version the new balance was computed from; the store rejects
// the whole batch when it no longer matches.
type Posting struct {
    AccountID       string
    ExpectedVersion int64
    NewBalance      decimal.Decimal
    Operation       Operation
}

// AccountHistory is one page of an account's operation log together with
// the totals needed to render a pager.
type AccountHistory struct {
    AccountID       string
    Balance         decimal.Decimal
    Page            int
    Size            int
    TotalOperations int
    TotalPages      int
    Operations      []Operation
}
