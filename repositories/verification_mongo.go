// repositories/verification_mongo.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hsalloum/veriflow_backend/models"
)

// MongoVerificationStore keeps pending verifications in a Mongo collection
// with a unique index on identityKey and a TTL index on expiresAt. All
// mutations ride single findOneAnd* commands so they stay atomic per key.
type MongoVerificationStore struct {
	collection *mongo.Collection
}

// NewMongoVerificationStore creates a Mongo-backed verification store.
func NewMongoVerificationStore(db *mongo.Database) *MongoVerificationStore {
	return &MongoVerificationStore{
		collection: db.Collection("verifications"),
	}
}

// Upsert stores a fresh record, replacing any pending one for the key.
func (s *MongoVerificationStore) Upsert(ctx context.Context, identityKey, code string, ttl time.Duration) error {
	now := time.Now()
	filter := bson.M{"identityKey": identityKey}
	update := bson.M{
		"$set": bson.M{
			"code":      code,
			"attempts":  0,
			"createdAt": now,
			"expiresAt": now.Add(ttl),
		},
	}

	opts := options.FindOneAndUpdate().SetUpsert(true)
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Err()
	if err != nil && err != mongo.ErrNoDocuments {
		return fmt.Errorf("failed to store verification record: %w", err)
	}
	return nil
}

// Get returns the pending record for the key, or ErrRecordNotFound.
func (s *MongoVerificationStore) Get(ctx context.Context, identityKey string) (*models.VerificationRecord, error) {
	var record models.VerificationRecord
	err := s.collection.FindOne(ctx, bson.M{"identityKey": identityKey}).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to read verification record: %w", err)
	}
	return &record, nil
}

// IncrementAttempts atomically bumps the attempt counter via $inc.
func (s *MongoVerificationStore) IncrementAttempts(ctx context.Context, identityKey string) (int, error) {
	filter := bson.M{"identityKey": identityKey}
	update := bson.M{"$inc": bson.M{"attempts": 1}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var record models.VerificationRecord
	err := s.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&record)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, ErrRecordNotFound
		}
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	return record.Attempts, nil
}

// Take deletes the record if and only if the code matches; the filter makes
// the compare-and-delete a single atomic command.
func (s *MongoVerificationStore) Take(ctx context.Context, identityKey, code string) (bool, error) {
	filter := bson.M{"identityKey": identityKey, "code": code}
	err := s.collection.FindOneAndDelete(ctx, filter).Err()
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return false, nil
		}
		return false, fmt.Errorf("failed to take verification record: %w", err)
	}
	return true, nil
}

// Delete removes the record; absent records are fine.
func (s *MongoVerificationStore) Delete(ctx context.Context, identityKey string) error {
	_, err := s.collection.DeleteOne(ctx, bson.M{"identityKey": identityKey})
	if err != nil {
		return fmt.Errorf("failed to delete verification record: %w", err)
	}
	return nil
}
