package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/db"
)

// stateDocument is one storage key in the support_state collection.
type stateDocument struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Mongo stores each key as a single document.
type Mongo struct {
	client *db.Client
	coll   *mongo.Collection
}

var _ Backend = (*Mongo)(nil)

// NewMongo wraps an already connected client.
func NewMongo(client *db.Client) *Mongo {
	return &Mongo{client: client, coll: client.StateCollection()}
}

func (m *Mongo) Get(ctx context.Context, key string) ([]byte, error) {
	var doc stateDocument
	err := m.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return []byte(doc.Value), nil
}

// Set replaces the whole document; there is no merge with a concurrent writer.
func (m *Mongo) Set(ctx context.Context, key string, value []byte) error {
	doc := stateDocument{Key: key, Value: string(value), UpdatedAt: time.Now().UTC()}
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	return err
}

func (m *Mongo) Delete(ctx context.Context, key string) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": key})
	return err
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx)
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Close(ctx)
}
