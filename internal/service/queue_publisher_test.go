package service

import (
    "context"
    "encoding/json"
    "errors"
    "testing"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "github.com/shopspring/decimal"

    "github.com/iliyamo/ebank-backoffice/internal/model"
    "github.com/iliyamo/ebank-backoffice/internal/queue"
)

type fakeChannel struct {
    declared   []string
    published  []amqp.Publishing
    publishErr error
    closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
    f.declared = append(f.declared, name)
    return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
    if f.publishErr != nil {
        return f.publishErr
    }
    if key != queue.OperationQueueName {
        return errors.New("wrong routing key " + key)
    }
    f.published = append(f.published, msg)
    return nil
}

func (f *fakeChannel) Close() error { f.closed = true; return nil }

func testPublisher(chans ...*fakeChannel) (*OperationPublisher, *int) {
    dials := 0
    p := NewOperationPublisher("amqp://test")
    p.dial = func(string) (channel, func(), error) {
        if dials >= len(chans) {
            return nil, nil, errors.New("broker unreachable")
        }
        ch := chans[dials]
        dials++
        return ch, func() { _ = ch.Close() }, nil
    }
    return p, &dials
}

func op() model.Operation {
    return model.Operation{
        ID: 7, AccountID: "A", Type: model.OperationCredit,
        Amount: decimal.NewFromInt(5), Description: "Initial deposit", Date: time.Now().UTC(),
    }
}

func TestPublishReusesChannel(t *testing.T) {
    ch := &fakeChannel{}
    p, dials := testPublisher(ch)

    for i := 0; i < 3; i++ {
        if err := p.PublishOperation(context.Background(), op()); err != nil {
            t.Fatalf("publish: %v", err)
        }
    }
    if *dials != 1 || len(ch.declared) != 1 || len(ch.published) != 3 {
        t.Fatalf("dials=%d declared=%d published=%d", *dials, len(ch.declared), len(ch.published))
    }
    msg := ch.published[0]
    if msg.DeliveryMode != amqp.Persistent || msg.ContentType != "application/json" {
        t.Fatalf("unexpected publishing %+v", msg)
    }
    var ev queue.OperationRecordedEvent
    if err := json.Unmarshal(msg.Body, &ev); err != nil || ev.OperationID != 7 || ev.Amount != "5.00" {
        t.Fatalf("unexpected body %s (%v)", msg.Body, err)
    }
}

func TestPublishRedialsAfterFailure(t *testing.T) {
    broken := &fakeChannel{publishErr: errors.New("channel closed")}
    healthy := &fakeChannel{}
    p, dials := testPublisher(broken, healthy)

    if err := p.PublishOperation(context.Background(), op()); err == nil {
        t.Fatal("expected publish error")
    }
    if !broken.closed {
        t.Fatal("broken channel not closed")
    }
    if err := p.PublishOperation(context.Background(), op()); err != nil {
        t.Fatalf("publish after redial: %v", err)
    }
    if *dials != 2 || len(healthy.published) != 1 {
        t.Fatalf("dials=%d published=%d", *dials, len(healthy.published))
    }
}

func TestPublishDialFailure(t *testing.T) {
    p, _ := testPublisher()
    if err := p.PublishOperation(context.Background(), op()); err == nil {
        t.Fatal("expected dial error")
    }
    p.Close()
}
