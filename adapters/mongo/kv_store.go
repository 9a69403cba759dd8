package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/drishti/domain"
	"github.com/satriahrh/drishti/domain/repositories"
)

const kvCollection = "kv"

type kvDocument struct {
	Namespace string    `bson:"namespace"`
	Key       string    `bson:"key"`
	Value     []byte    `bson:"value"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// KeyValueStore implements repositories.KeyValueStore on a single collection
// keyed by (namespace, key).
type KeyValueStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.KeyValueStore = (*KeyValueStore)(nil)

// NewKeyValueStore creates the store and ensures its unique index
func NewKeyValueStore(ctx context.Context, db *mongo.Database, logger *zap.Logger) (*KeyValueStore, error) {
	collection := db.Collection(kvCollection)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "namespace", Value: 1},
			{Key: "key", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kv index: %w", err)
	}
	logger.Info("KV indexes created successfully")

	return &KeyValueStore{collection: collection, logger: logger}, nil
}

// Get implements repositories.KeyValueStore
func (s *KeyValueStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var doc kvDocument
	err := s.collection.FindOne(ctx, bson.M{"namespace": namespace, "key": key}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("key %s/%s: %w", namespace, key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key %s/%s: %w", namespace, key, err)
	}
	return doc.Value, nil
}

// Set implements repositories.KeyValueStore
func (s *KeyValueStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	if namespace == "" || key == "" {
		return fmt.Errorf("namespace and key are required: %w", domain.ErrInvalidInput)
	}

	filter := bson.M{"namespace": namespace, "key": key}
	update := bson.M{"$set": bson.M{
		"value":      value,
		"updated_at": time.Now(),
	}}
	_, err := s.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to set key %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys implements repositories.KeyValueStore
func (s *KeyValueStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"key": 1}).
		SetSort(bson.D{{Key: "key", Value: 1}})

	cursor, err := s.collection.Find(ctx, bson.M{"namespace": namespace}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list namespace %s: %w", namespace, err)
	}
	defer cursor.Close(ctx)

	keys := []string{}
	for cursor.Next(ctx) {
		var doc kvDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode key: %w", err)
		}
		keys = append(keys, doc.Key)
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to list namespace %s: %w", namespace, err)
	}
	return keys, nil
}

// Clear implements repositories.KeyValueStore
func (s *KeyValueStore) Clear(ctx context.Context, namespace string) error {
	result, err := s.collection.DeleteMany(ctx, bson.M{"namespace": namespace})
	if err != nil {
		return fmt.Errorf("failed to clear namespace %s: %w", namespace, err)
	}
	s.logger.Debug("Cleared namespace",
		zap.String("namespace", namespace),
		zap.Int64("deleted", result.DeletedCount))
	return nil
}
