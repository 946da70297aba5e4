// repositories/verification_redis.go
package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/hsalloum/veriflow_backend/models"
)

const verificationKeyPrefix = "verification:"

// takeScript deletes the record only when the stored code matches the
// submitted one, so two concurrent correct submissions cannot both win.
var takeScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], "code") == ARGV[1] then
	redis.call("DEL", KEYS[1])
	return 1
end
return 0
`)

// incrScript refuses to resurrect a deleted record; HINCRBY alone would
// create a stray hash when racing a delete.
var incrScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return redis.call("HINCRBY", KEYS[1], "attempts", 1)
end
return -1
`)

// RedisVerificationStore keeps pending verifications as Redis hashes. The key
// TTL is set past the logical expiry so the engine can still observe and
// report an expired record before Redis reaps it.
type RedisVerificationStore struct {
	client *redis.Client
}

// NewRedisVerificationStore creates a Redis-backed verification store.
func NewRedisVerificationStore(client *redis.Client) *RedisVerificationStore {
	return &RedisVerificationStore{client: client}
}

func (s *RedisVerificationStore) key(identityKey string) string {
	return verificationKeyPrefix + identityKey
}

// Upsert stores a fresh record, replacing any pending one for the key.
func (s *RedisVerificationStore) Upsert(ctx context.Context, identityKey, code string, ttl time.Duration) error {
	now := time.Now()
	key := s.key(identityKey)

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, map[string]interface{}{
		"code":      code,
		"attempts":  0,
		"createdAt": now.UnixMilli(),
		"expiresAt": now.Add(ttl).UnixMilli(),
	})
	pipe.PExpire(ctx, key, 2*ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store verification record: %w", err)
	}
	return nil
}

// Get returns the pending record for the key, or ErrRecordNotFound.
func (s *RedisVerificationStore) Get(ctx context.Context, identityKey string) (*models.VerificationRecord, error) {
	fields, err := s.client.HGetAll(ctx, s.key(identityKey)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read verification record: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrRecordNotFound
	}
	return decodeHashRecord(identityKey, fields)
}

// IncrementAttempts atomically bumps the attempt counter.
func (s *RedisVerificationStore) IncrementAttempts(ctx context.Context, identityKey string) (int, error) {
	n, err := incrScript.Run(ctx, s.client, []string{s.key(identityKey)}).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	if n < 0 {
		return 0, ErrRecordNotFound
	}
	return n, nil
}

// Take deletes the record if and only if the code matches.
func (s *RedisVerificationStore) Take(ctx context.Context, identityKey, code string) (bool, error) {
	n, err := takeScript.Run(ctx, s.client, []string{s.key(identityKey)}, code).Int()
	if err != nil {
		return false, fmt.Errorf("failed to take verification record: %w", err)
	}
	return n == 1, nil
}

// Delete removes the record; absent records are fine.
func (s *RedisVerificationStore) Delete(ctx context.Context, identityKey string) error {
	if err := s.client.Del(ctx, s.key(identityKey)).Err(); err != nil {
		return fmt.Errorf("failed to delete verification record: %w", err)
	}
	return nil
}

func decodeHashRecord(identityKey string, fields map[string]string) (*models.VerificationRecord, error) {
	record := &models.VerificationRecord{IdentityKey: identityKey, Code: fields["code"]}

	var attempts int
	if _, err := fmt.Sscanf(fields["attempts"], "%d", &attempts); err != nil {
		return nil, fmt.Errorf("corrupt verification record for %s: bad attempts", identityKey)
	}
	record.Attempts = attempts

	var createdAt, expiresAt int64
	if _, err := fmt.Sscanf(fields["createdAt"], "%d", &createdAt); err != nil {
		return nil, fmt.Errorf("corrupt verification record for %s: bad createdAt", identityKey)
	}
	if _, err := fmt.Sscanf(fields["expiresAt"], "%d", &expiresAt); err != nil {
		return nil, fmt.Errorf("corrupt verification record for %s: bad expiresAt", identityKey)
	}
	record.CreatedAt = time.UnixMilli(createdAt)
	record.ExpiresAt = time.UnixMilli(expiresAt)

	return record, nil
}
