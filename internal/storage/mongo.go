package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type record struct {
	Key       string    `bson:"_id"`
	Value     string    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoStorage stores one document per record, keyed by the namespaced key.
type MongoStorage struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}

func NewMongoStorage(db *mongo.Database, collection string, ttl time.Duration) *MongoStorage {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MongoStorage{
		collection: db.Collection(collection),
		ttl:        ttl,
	}
}

// CreateIndexes installs the TTL index that expires abandoned records.
func (m *MongoStorage) CreateIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: "updated_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(m.ttl.Seconds())),
	}
	if _, err := m.collection.Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create ttl index: %w", err)
	}
	return nil
}

func (m *MongoStorage) Get(ctx context.Context, origin, key string) (string, error) {
	var rec record
	err := m.collection.FindOne(ctx, bson.M{"_id": recordKey(origin, key)}).Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get record: %w", err)
	}
	return rec.Value, nil
}

func (m *MongoStorage) Set(ctx context.Context, origin, key, value string) error {
	id := recordKey(origin, key)
	update := bson.M{"$set": bson.M{"value": value, "updated_at": time.Now()}}
	opts := options.Update().SetUpsert(true)

	if _, err := m.collection.UpdateOne(ctx, bson.M{"_id": id}, update, opts); err != nil {
		return fmt.Errorf("failed to upsert record: %w", err)
	}
	return nil
}

func (m *MongoStorage) Delete(ctx context.Context, origin, key string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": recordKey(origin, key)}); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}
