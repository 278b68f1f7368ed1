// Package service holds outbound adapters the domain packages publish
// through.
package service

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/ebank-backoffice/internal/model"
    "github.com/iliyamo/ebank-backoffice/internal/queue"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
    QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
    PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
    Close() error
}

// dialFunc opens a connection and a channel on it.  close releases both.
type dialFunc func(url string) (ch channel, close func(), err error)

func dialAMQP(url string) (channel, func(), error) {
    conn, err := amqp.Dial(url)
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    return ch, func() { _ = ch.Close(); _ = conn.Close() }, nil
}

// OperationPublisher sends OperationRecordedEvents to RabbitMQ.  It keeps
// one channel open between calls and redials after any failure.
type OperationPublisher struct {
    url  string
    dial dialFunc

    mu    sync.Mutex
    ch    channel
    close func()
}

func NewOperationPublisher(url string) *OperationPublisher {
    return &OperationPublisher{url: url, dial: dialAMQP}
}

// PublishOperation publishes one persistent message on the operation
// queue.  Errors are returned; the ledger logs them and carries on.
func (p *OperationPublisher) PublishOperation(ctx context.Context, op model.Operation) error {
    body, err := json.Marshal(queue.NewOperationRecordedEvent(op))
    if err != nil {
        return fmt.Errorf("marshal operation event: %w", err)
    }

    p.mu.Lock()
    defer p.mu.Unlock()
    if p.ch == nil {
        if err := p.connect(); err != nil {
            return err
        }
    }
    err = p.ch.PublishWithContext(ctx, "", queue.OperationQueueName, false, false, amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    })
    if err != nil {
        p.reset()
        return fmt.Errorf("rabbitmq publish: %w", err)
    }
    return nil
}

// Close releases the broker connection.
func (p *OperationPublisher) Close() {
    p.mu.Lock()
    defer p.mu.Unlock()
    p.reset()
}

// connect must be called with p.mu held.
func (p *OperationPublisher) connect() error {
    ch, closeFn, err := p.dial(p.url)
    if err != nil {
        return fmt.Errorf("rabbitmq dial: %w", err)
    }
    if _, err := ch.QueueDeclare(queue.OperationQueueName, true, false, false, false, nil); err != nil {
        closeFn()
        return fmt.Errorf("rabbitmq queue declare: %w", err)
    }
    p.ch, p.close = ch, closeFn
    return nil
}

func (p *OperationPublisher) reset() {
    if p.close != nil {
        p.close()
    }
    p.ch, p.close = nil, nil
}
