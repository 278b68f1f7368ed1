package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/ebank-backoffice/internal/logger"
)

// Sink stores consumed events.  Record must be idempotent per operation id
// because RabbitMQ may redeliver.
type Sink interface {
    Record(ctx context.Context, ev OperationRecordedEvent) error
}

// StartOperationConsumer connects to RabbitMQ, declares the operation
// queue and hands every message to sink.  It reconnects with exponential
// backoff until ctx is cancelled, then returns ctx.Err().  A message the
// sink rejects is nacked without requeue so one bad payload cannot stall
// the queue.
func StartOperationConsumer(ctx context.Context, url string, sink Sink) error {
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            logger.Warn("operation consumer: dial failed", logger.Fields{"error": err.Error(), "retryIn": backoff.String()})
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, sink)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        logger.Warn("operation consumer: consume loop ended, reconnecting", logger.Fields{"error": err.Error()})
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, sink Sink) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        logger.Warn("operation consumer: set QoS failed", logger.Fields{"error": err.Error()})
    }
    if _, err := ch.QueueDeclare(OperationQueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(OperationQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := handleMessage(ctx, d.Body, sink); err != nil {
                logger.Error("operation consumer: handle message failed", err, nil)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func handleMessage(ctx context.Context, body []byte, sink Sink) error {
    var ev OperationRecordedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.OperationID == 0 || ev.AccountID == "" {
        return fmt.Errorf("incomplete event: %s", body)
    }
    return sink.Record(ctx, ev)
}

// sleep waits for d or until ctx is done.  It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
