// repositories/verification_store.go
package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/hsalloum/veriflow_backend/models"
)

// ErrRecordNotFound is returned when no pending verification exists for an
// identity key.
var ErrRecordNotFound = errors.New("verification record not found")

// VerificationStore persists at most one pending verification per identity
// key. Implementations must make IncrementAttempts and Take atomic at the
// storage layer so concurrent verify attempts cannot lose an increment or
// redeem the same code twice.
type VerificationStore interface {
	// Upsert stores a fresh record for the key, unconditionally replacing
	// any existing one and resetting the attempt counter.
	Upsert(ctx context.Context, identityKey, code string, ttl time.Duration) error

	// Get returns the pending record, or ErrRecordNotFound.
	Get(ctx context.Context, identityKey string) (*models.VerificationRecord, error)

	// IncrementAttempts atomically bumps the attempt counter and returns the
	// new value. Returns ErrRecordNotFound if the record vanished.
	IncrementAttempts(ctx context.Context, identityKey string) (int, error)

	// Take deletes the record only if its code matches, in a single atomic
	// step. Returns true when this caller won the record.
	Take(ctx context.Context, identityKey, code string) (bool, error)

	// Delete removes the record. Deleting an absent record is not an error.
	Delete(ctx context.Context, identityKey string) error
}
