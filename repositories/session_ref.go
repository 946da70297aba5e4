// repositories/session_ref.go
package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const sessionRefKeyPrefix = "sessionref:"

// SessionRef links an opaque reference handed to the client back to the
// identity key and flow that requested a verification code. It lives in
// Redis rather than process memory so any instance can resolve it.
type SessionRef struct {
	IdentityKey string `json:"identityKey"`
	Purpose     string `json:"purpose"`
}

// SessionRefStore issues and resolves verification session references.
type SessionRefStore struct {
	client *redis.Client
}

// NewSessionRefStore creates a Redis-backed session reference store.
func NewSessionRefStore(client *redis.Client) *SessionRefStore {
	return &SessionRefStore{client: client}
}

func (s *SessionRefStore) key(ref string) string {
	return sessionRefKeyPrefix + ref
}

// Create issues a fresh reference for the identity key, valid for ttl.
func (s *SessionRefStore) Create(ctx context.Context, identityKey, purpose string, ttl time.Duration) (string, error) {
	ref := uuid.NewString()

	data, err := json.Marshal(SessionRef{IdentityKey: identityKey, Purpose: purpose})
	if err != nil {
		return "", err
	}

	if err := s.client.Set(ctx, s.key(ref), data, ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store session reference: %w", err)
	}
	return ref, nil
}

// Resolve returns the session bound to a reference, or ErrRecordNotFound.
func (s *SessionRefStore) Resolve(ctx context.Context, ref string) (*SessionRef, error) {
	data, err := s.client.Get(ctx, s.key(ref)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to resolve session reference: %w", err)
	}

	var session SessionRef
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("corrupt session reference %s", ref)
	}
	return &session, nil
}

// Delete removes a reference once its verification is redeemed.
func (s *SessionRefStore) Delete(ctx context.Context, ref string) error {
	if err := s.client.Del(ctx, s.key(ref)).Err(); err != nil {
		return fmt.Errorf("failed to delete session reference: %w", err)
	}
	return nil
}
