package services

import (
	"context"
	"log"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsalloum/veriflow_backend/repositories"
)

func newTestEngine(t *testing.T) (*VerificationEngine, *repositories.RedisVerificationStore, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis.Run failed")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := repositories.NewRedisVerificationStore(client)
	engine := NewVerificationEngine(store)
	engine.logger = log.New(os.Stdout, "[VERIFY-TEST] ", log.LstdFlags)

	return engine, store, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestRequestCodeIssuesSixDigits(t *testing.T) {
	engine, store, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	code, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code must be numeric, got %q", code)
	}

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, code, record.Code)
	assert.Equal(t, 0, record.Attempts)
}

func TestVerifyCorrectCodeSucceedsOnce(t *testing.T) {
	engine, store, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	code, err := engine.RequestCode(ctx, "+96170123456")
	require.NoError(t, err)

	result, err := engine.Verify(ctx, "+96170123456", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)

	// The record is consumed; a replay of the same correct code fails.
	_, err = store.Get(ctx, "+96170123456")
	assert.Equal(t, repositories.ErrRecordNotFound, err)

	result, err = engine.Verify(ctx, "+96170123456", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestVerifyUnknownKeyReportsNotFound(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()

	result, err := engine.Verify(context.Background(), "nobody@example.com", "123456")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestVerifyWrongCodeBurnsAttempt(t *testing.T) {
	engine, store, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	code, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	result, err := engine.Verify(ctx, "user@example.com", wrong)
	require.NoError(t, err)
	assert.Equal(t, OutcomeMismatch, result.Outcome)
	assert.Equal(t, 2, result.AttemptsLeft)

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, record.Attempts)

	// The record stays redeemable after a mismatch.
	result, err = engine.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestVerifyAttemptCap(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	code, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)
	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}

	for i, wantLeft := range []int{2, 1, 0} {
		result, err := engine.Verify(ctx, "user@example.com", wrong)
		require.NoError(t, err)
		assert.Equal(t, OutcomeMismatch, result.Outcome, "submission %d", i+1)
		assert.Equal(t, wantLeft, result.AttemptsLeft, "submission %d", i+1)
	}

	// The budget is spent; even the correct code no longer succeeds.
	result, err := engine.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAttemptsExceeded, result.Outcome)

	// The record was removed along with the cap report.
	result, err = engine.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestVerifySuccessSpendsAttempt(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	code, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)

	result, err := engine.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	require.Equal(t, OutcomeSuccess, result.Outcome)
	assert.Equal(t, 2, result.AttemptsLeft)
}

func TestVerifyExpiredCode(t *testing.T) {
	engine, store, done := newTestEngine(t)
	defer done()
	engine.codeTTL = time.Millisecond
	ctx := context.Background()

	code, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	result, err := engine.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeExpired, result.Outcome)

	// Expiry wins over the cap check and removes the record.
	_, err = store.Get(ctx, "user@example.com")
	assert.Equal(t, repositories.ErrRecordNotFound, err)

	result, err = engine.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}

func TestRequestCodeReplacesPendingAndResetsBudget(t *testing.T) {
	engine, store, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	first, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)

	wrong := "000000"
	if wrong == first {
		wrong = "000001"
	}
	for i := 0; i < 3; i++ {
		_, err = engine.Verify(ctx, "user@example.com", wrong)
		require.NoError(t, err)
	}

	second, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, record.Attempts)

	// The old code stops matching once replaced.
	if first != second {
		result, err := engine.Verify(ctx, "user@example.com", first)
		require.NoError(t, err)
		assert.Equal(t, OutcomeMismatch, result.Outcome)
	}

	result, err := engine.Verify(ctx, "user@example.com", second)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, result.Outcome)
}

func TestVerifyConcurrentRedemptionIsExactlyOnce(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	// Up to attemptCap concurrent submissions stay under the budget, so the
	// atomic take is the only arbiter and exactly one caller wins.
	const callers = DefaultAttemptCap
	for round := 0; round < 10; round++ {
		code, err := engine.RequestCode(ctx, "user@example.com")
		require.NoError(t, err)

		var wg sync.WaitGroup
		outcomes := make([]VerifyOutcome, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				result, err := engine.Verify(ctx, "user@example.com", code)
				if err != nil {
					t.Errorf("concurrent verify failed: %v", err)
					return
				}
				outcomes[i] = result.Outcome
			}(i)
		}
		wg.Wait()

		successes := 0
		for _, outcome := range outcomes {
			if outcome == OutcomeSuccess {
				successes++
			}
		}
		assert.Equal(t, 1, successes, "round %d: exactly one caller may redeem", round)
	}
}

func TestInvalidateRemovesPending(t *testing.T) {
	engine, _, done := newTestEngine(t)
	defer done()
	ctx := context.Background()

	code, err := engine.RequestCode(ctx, "user@example.com")
	require.NoError(t, err)

	require.NoError(t, engine.Invalidate(ctx, "user@example.com"))

	result, err := engine.Verify(ctx, "user@example.com", code)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, result.Outcome)
}
