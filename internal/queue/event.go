// Package queue carries ledger operation events from RabbitMQ into an
// audit sink.
package queue

import (
    "fmt"
    "time"

    "github.com/iliyamo/ebank-backoffice/internal/model"
)

// OperationQueueName is the durable queue operation events travel on.
const OperationQueueName = "ledger.operation.recorded"

// OperationRecordedEvent is published once per committed operation.  A
// transfer therefore yields two events, one per leg.  Amount is a decimal
// string so no precision is lost on the wire.
type OperationRecordedEvent struct {
    OperationID int64  `json:"operation_id" bson:"operation_id"`
    AccountID   string `json:"account_id" bson:"account_id"`
    Type        string `json:"type" bson:"type"`
    Amount      string `json:"amount" bson:"amount"`
    Description string `json:"description" bson:"description"`
    Date        string `json:"date" bson:"date"`
}

// NewOperationRecordedEvent builds the event for a stored operation.
func NewOperationRecordedEvent(op model.Operation) OperationRecordedEvent {
    return OperationRecordedEvent{
        OperationID: op.ID,
        AccountID:   op.AccountID,
        Type:        string(op.Type),
        Amount:      op.Amount.StringFixed(2),
        Description: op.Description,
        Date:        op.Date.UTC().Format(time.RFC3339Nano),
    }
}

// Line renders the event as one human readable log line.
func (ev OperationRecordedEvent) Line() string {
    return fmt.Sprintf("[%s] %s | operation_id=%d | account_id=%s | amount=%s | description=%q\n",
        ev.Date, ev.Type, ev.OperationID, ev.AccountID, ev.Amount, ev.Description)
}
