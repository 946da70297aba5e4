// models/verification.go
package models

import (
	"time"
)

// VerificationRecord is the single pending verification for an identity key.
// At most one live record exists per key; requesting a new code replaces it.
type VerificationRecord struct {
	IdentityKey string    `bson:"identityKey"`
	Code        string    `bson:"code"`
	Attempts    int       `bson:"attempts"`
	ExpiresAt   time.Time `bson:"expiresAt"`
	CreatedAt   time.Time `bson:"createdAt"`
}

// Expired reports whether the record is past its validity window.
func (r *VerificationRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
