package queue

import (
    "context"
    "fmt"
    "os"
    "path/filepath"
    "sync"
    "time"

    "go.mongodb.org/mongo-driver/bson"
    "go.mongodb.org/mongo-driver/mongo"
    "go.mongodb.org/mongo-driver/mongo/options"
)

// FileSink appends one line per event to a log file.  The directory is
// created on first use.
type FileSink struct {
    path string
    mu   sync.Mutex
}

func NewFileSink(path string) *FileSink { return &FileSink{path: path} }

func (s *FileSink) Record(_ context.Context, ev OperationRecordedEvent) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(ev.Line()); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// MongoSink stores events as documents, one per operation id.  A
// redelivered event hits the unique index and is treated as recorded.
type MongoSink struct {
    coll *mongo.Collection
}

func NewMongoSink(coll *mongo.Collection) *MongoSink { return &MongoSink{coll: coll} }

// ConnectMongoSink dials MongoDB, ensures the audit indexes and returns the
// sink with a function that disconnects the client.
func ConnectMongoSink(ctx context.Context, uri, dbName, collName string) (*MongoSink, func(context.Context) error, error) {
    ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
    defer cancel()

    client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
    if err != nil {
        return nil, nil, fmt.Errorf("connect mongodb: %w", err)
    }
    if err := client.Ping(ctx, nil); err != nil {
        _ = client.Disconnect(context.Background())
        return nil, nil, fmt.Errorf("ping mongodb: %w", err)
    }
    coll := client.Database(dbName).Collection(collName)
    _, err = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
        {Keys: bson.D{{Key: "operation_id", Value: 1}}, Options: options.Index().SetUnique(true)},
        {Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "date", Value: 1}}},
    })
    if err != nil {
        _ = client.Disconnect(context.Background())
        return nil, nil, fmt.Errorf("create audit indexes: %w", err)
    }
    return NewMongoSink(coll), client.Disconnect, nil
}

func (s *MongoSink) Record(ctx context.Context, ev OperationRecordedEvent) error {
    doc := bson.M{
        "operation_id": ev.OperationID,
        "account_id":   ev.AccountID,
        "type":         ev.Type,
        "amount":       ev.Amount,
        "description":  ev.Description,
        "date":         ev.Date,
        "recorded_at":  time.Now().UTC(),
    }
    if _, err := s.coll.InsertOne(ctx, doc); err != nil {
        if mongo.IsDuplicateKeyError(err) {
            return nil
        }
        return fmt.Errorf("insert audit event %d: %w", ev.OperationID, err)
    }
    return nil
}
