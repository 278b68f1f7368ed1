package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// AccountStatus is the lifecycle state of a bank account.  New accounts
// start in CREATED; the other states are set by back-office staff.
type AccountStatus string

const (
    AccountStatusCreated   AccountStatus = "CREATED"
    AccountStatusActivated AccountStatus = "ACTIVATED"
    AccountStatusSuspended AccountStatus = "SUSPENDED"
)

// Valid reports whether s is one of the known statuses.
func (s AccountStatus) Valid() bool {
    switch s {
    case AccountStatusCreated, AccountStatusActivated, AccountStatusSuspended:
        return true
    }
    return false
}

// AccountKind tags the subtype of a bank account.  Each kind carries one
// kind-specific attribute (see KindInfo).
type AccountKind string

const (
    KindCurrent AccountKind = "CURRENT"
    KindSaving  AccountKind = "SAVING"
)

// KindInfo describes how a kind is persisted and which attribute it uses.
//
// Fields:
//  Discriminator – short code stored in bank_accounts.type.
//  Label         – human readable name.
//  UsesOverdraft – the kind carries an overdraft limit.
//  UsesInterest  – the kind carries an interest rate.
type KindInfo struct {
    Discriminator string
    Label         string
    UsesOverdraft bool
    UsesInterest  bool
}

// kinds is the behaviour table for every AccountKind.
var kinds = map[AccountKind]KindInfo{
    KindCurrent: {Discriminator: "CA", Label: "Current account", UsesOverdraft: true},
    KindSaving:  {Discriminator: "SA", Label: "Saving account", UsesInterest: true},
}

// Info returns the behaviour table entry for k.  ok is false for unknown kinds.
func (k AccountKind) Info() (KindInfo, bool) {
    info, ok := kinds[k]
    return info, ok
}

// KindFromDiscriminator maps a stored discriminator back to its kind.
func KindFromDiscriminator(code string) (AccountKind, bool) {
    for k, info := range kinds {
        if info.Discriminator == code {
            return k, true
        }
    }
    return "", false
}

// BankAccount represents a row in the `bank_accounts` table.  Operations
// belong to the account but are not embedded here; they are read through
// the history service on demand.
//
// Fields:
//  ID           – stable identifier (UUID when generated).
//  Balance      – current balance; always the sum of the account's operations.
//  Status       – lifecycle status.
//  CreatedAt    – creation timestamp (UTC).
//  CustomerID   – owning customer (weak reference).
//  Kind         – CURRENT or SAVING.
//  Overdraft    – overdraft limit of current accounts; informational only,
//                 a debit never drives the balance below zero.
//  InterestRate – rate of saving accounts.
//  Version      – optimistic concurrency token maintained by the store.
type BankAccount struct {
    ID           string
    Balance      decimal.Decimal
    Status       AccountStatus
    CreatedAt    time.Time
    CustomerID   int64
    Kind         AccountKind
    Overdraft    decimal.Decimal
    InterestRate decimal.Decimal
    Version      int64
}
