// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// ledger, the identity engine and the handlers to distinguish between
// different failure scenarios. ErrNotFound signals a missing row,
// ErrDuplicate a unique key violation, ErrConflict a lost optimistic
// concurrency race and ErrStoreUnavailable an I/O failure talking to the
// database.
package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrConflict is returned when a write cannot be applied because the row
// changed since it was read (the stored version no longer matches). The
// whole transaction is rolled back; callers may reload and retry.
var ErrConflict = errors.New("conflict")

// ErrStoreUnavailable wraps failures of the underlying database such as
// lost connections or timeouts. It is the only class of error a caller may
// retry on its own.
var ErrStoreUnavailable = errors.New("store unavailable")

// MySQL error numbers classify understands.
const (
    mysqlDuplicateEntry  = 1062 // unique key violation
    mysqlNoReferencedRow = 1452 // foreign key points at a missing row
)

// classify maps a raw database/sql error to one of the sentinels above.
// op names the failing operation and is kept in the error message.
func classify(op string, err error) error {
    switch {
    case err == nil:
        return nil
    case errors.Is(err, sql.ErrNoRows):
        return fmt.Errorf("%s: %w", op, ErrNotFound)
    case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
        errors.Is(err, ErrDuplicate), errors.Is(err, ErrStoreUnavailable):
        return err
    }
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        switch me.Number {
        case mysqlDuplicateEntry:
            return fmt.Errorf("%s: %w", op, ErrDuplicate)
        case mysqlNoReferencedRow:
            return fmt.Errorf("%s: %w", op, ErrNotFound)
        }
    }
    if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
        return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
    }
    return fmt.Errorf("%s: %w: %v", op, ErrStoreUnavailable, err)
}
