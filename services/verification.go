// services/verification.go
package services

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/hsalloum/veriflow_backend/repositories"
	"github.com/hsalloum/veriflow_backend/utils"
)

const (
	// DefaultCodeTTL is how long a verification code stays redeemable.
	DefaultCodeTTL = 10 * time.Minute
	// DefaultAttemptCap is the number of wrong submissions tolerated before
	// the pending verification is invalidated.
	DefaultAttemptCap = 3
)

// VerifyOutcome classifies the result of a code submission.
type VerifyOutcome string

const (
	// OutcomeSuccess: the code matched and this caller consumed the record.
	OutcomeSuccess VerifyOutcome = "success"
	// OutcomeMismatch: wrong code; the record stays live with one more
	// attempt burned.
	OutcomeMismatch VerifyOutcome = "mismatch"
	// OutcomeExpired: the record outlived its validity window and was removed.
	OutcomeExpired VerifyOutcome = "expired"
	// OutcomeAttemptsExceeded: too many submissions; the record was removed.
	OutcomeAttemptsExceeded VerifyOutcome = "attempts_exceeded"
	// OutcomeNotFound: no pending verification, or another caller already
	// consumed it.
	OutcomeNotFound VerifyOutcome = "not_found"
)

// VerifyResult is the engine's answer to a code submission.
type VerifyResult struct {
	Outcome      VerifyOutcome
	IdentityKey  string
	AttemptsLeft int
}

// VerificationEngine drives the pending-verification state machine:
// NoRecord -> Pending -> {Verified, Expired, AttemptsExceeded}, where the
// terminal states are record absence plus the outcome reported to the
// caller. All atomicity requirements live in the store.
type VerificationEngine struct {
	store      repositories.VerificationStore
	codeTTL    time.Duration
	attemptCap int
	logger     *log.Logger
}

// NewVerificationEngine creates an engine with the default code TTL and
// attempt cap.
func NewVerificationEngine(store repositories.VerificationStore) *VerificationEngine {
	return &VerificationEngine{
		store:      store,
		codeTTL:    DefaultCodeTTL,
		attemptCap: DefaultAttemptCap,
		logger:     log.New(os.Stdout, "[VERIFY] ", log.LstdFlags),
	}
}

// CodeTTL returns the validity window applied to issued codes.
func (e *VerificationEngine) CodeTTL() time.Duration {
	return e.codeTTL
}

// RequestCode issues a fresh code for the identity key, unconditionally
// replacing any pending one. A new request always grants a fresh attempt
// budget; any in-flight verify against the old code simply stops matching.
// Preconditions such as "user must not already exist" belong to the caller.
func (e *VerificationEngine) RequestCode(ctx context.Context, identityKey string) (string, error) {
	code, err := utils.GenerateCode()
	if err != nil {
		return "", err
	}

	if err := e.store.Upsert(ctx, identityKey, code, e.codeTTL); err != nil {
		return "", err
	}

	e.logger.Printf("issued verification code for %s", identityKey)
	return code, nil
}

// Verify applies a submitted code to the pending verification. The checks
// run in a fixed order: expiry, then attempt cap, then code equality. A
// record that is both expired and over the cap reports expired; a correct
// code on an exhausted record reports attempts exceeded, never success.
//
// Every submission increments the attempt counter before the equality check,
// including the one that succeeds, so the cap counts submissions rather than
// failures.
func (e *VerificationEngine) Verify(ctx context.Context, identityKey, submittedCode string) (*VerifyResult, error) {
	record, err := e.store.Get(ctx, identityKey)
	if err != nil {
		if err == repositories.ErrRecordNotFound {
			return &VerifyResult{Outcome: OutcomeNotFound, IdentityKey: identityKey}, nil
		}
		return nil, err
	}

	now := time.Now()
	if record.Expired(now) {
		if err := e.store.Delete(ctx, identityKey); err != nil {
			return nil, err
		}
		return &VerifyResult{Outcome: OutcomeExpired, IdentityKey: identityKey}, nil
	}

	if record.Attempts+1 > e.attemptCap {
		if err := e.store.Delete(ctx, identityKey); err != nil {
			return nil, err
		}
		return &VerifyResult{Outcome: OutcomeAttemptsExceeded, IdentityKey: identityKey}, nil
	}

	attempts, err := e.store.IncrementAttempts(ctx, identityKey)
	if err != nil {
		if err == repositories.ErrRecordNotFound {
			// Raced a delete or a replacement between Get and the increment.
			return &VerifyResult{Outcome: OutcomeNotFound, IdentityKey: identityKey}, nil
		}
		return nil, err
	}

	// Concurrent submissions may have pushed the counter past the cap
	// between Get and the atomic increment; the counter is authoritative.
	if attempts > e.attemptCap {
		if err := e.store.Delete(ctx, identityKey); err != nil {
			return nil, err
		}
		return &VerifyResult{Outcome: OutcomeAttemptsExceeded, IdentityKey: identityKey}, nil
	}

	attemptsLeft := e.attemptCap - attempts

	if submittedCode != record.Code {
		return &VerifyResult{
			Outcome:      OutcomeMismatch,
			IdentityKey:  identityKey,
			AttemptsLeft: attemptsLeft,
		}, nil
	}

	taken, err := e.store.Take(ctx, identityKey, submittedCode)
	if err != nil {
		return nil, err
	}
	if !taken {
		// Another caller consumed the record, or a newer code replaced it.
		// At most one concurrent correct submission may observe success.
		return &VerifyResult{Outcome: OutcomeNotFound, IdentityKey: identityKey}, nil
	}

	e.logger.Printf("verification succeeded for %s", identityKey)
	return &VerifyResult{
		Outcome:      OutcomeSuccess,
		IdentityKey:  identityKey,
		AttemptsLeft: attemptsLeft,
	}, nil
}

// Invalidate cancels any pending verification for the identity key.
func (e *VerificationEngine) Invalidate(ctx context.Context, identityKey string) error {
	return e.store.Delete(ctx, identityKey)
}
