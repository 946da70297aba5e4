package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisVerificationStore, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis.Run failed")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisVerificationStore(client)

	return store, mr, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestRedisStoreUpsertAndGet(t *testing.T) {
	store, _, done := newTestRedisStore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user@example.com", "123456", 10*time.Minute))

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", record.IdentityKey)
	assert.Equal(t, "123456", record.Code)
	assert.Equal(t, 0, record.Attempts)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), record.ExpiresAt, 2*time.Second)
}

func TestRedisStoreGetMissing(t *testing.T) {
	store, _, done := newTestRedisStore(t)
	defer done()

	_, err := store.Get(context.Background(), "nobody@example.com")
	assert.Equal(t, ErrRecordNotFound, err)
}

func TestRedisStoreUpsertReplacesRecord(t *testing.T) {
	store, _, done := newTestRedisStore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user@example.com", "111111", 10*time.Minute))
	_, err := store.IncrementAttempts(ctx, "user@example.com")
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, "user@example.com", "222222", 10*time.Minute))

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "222222", record.Code)
	assert.Equal(t, 0, record.Attempts)
}

func TestRedisStoreIncrementAttempts(t *testing.T) {
	store, _, done := newTestRedisStore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user@example.com", "123456", 10*time.Minute))

	for want := 1; want <= 3; want++ {
		n, err := store.IncrementAttempts(ctx, "user@example.com")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
}

func TestRedisStoreIncrementMissingRecord(t *testing.T) {
	store, mr, done := newTestRedisStore(t)
	defer done()
	ctx := context.Background()

	_, err := store.IncrementAttempts(ctx, "nobody@example.com")
	assert.Equal(t, ErrRecordNotFound, err)

	// The guarded increment must not create a stray hash.
	assert.False(t, mr.Exists("verification:nobody@example.com"))
}

func TestRedisStoreTake(t *testing.T) {
	store, _, done := newTestRedisStore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user@example.com", "123456", 10*time.Minute))

	// Wrong code does not consume the record.
	taken, err := store.Take(ctx, "user@example.com", "654321")
	require.NoError(t, err)
	assert.False(t, taken)

	record, err := store.Get(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "123456", record.Code)

	// Matching code consumes it exactly once.
	taken, err = store.Take(ctx, "user@example.com", "123456")
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = store.Take(ctx, "user@example.com", "123456")
	require.NoError(t, err)
	assert.False(t, taken)

	_, err = store.Get(ctx, "user@example.com")
	assert.Equal(t, ErrRecordNotFound, err)
}

func TestRedisStoreDeleteIsIdempotent(t *testing.T) {
	store, _, done := newTestRedisStore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user@example.com", "123456", 10*time.Minute))
	require.NoError(t, store.Delete(ctx, "user@example.com"))
	require.NoError(t, store.Delete(ctx, "user@example.com"))
}

func TestRedisStoreKeyTTLOutlivesLogicalExpiry(t *testing.T) {
	store, mr, done := newTestRedisStore(t)
	defer done()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "user@example.com", "123456", 10*time.Minute))

	// The key must survive past the logical expiry so an expired record can
	// still be observed and reported before Redis reaps it.
	ttl := mr.TTL("verification:user@example.com")
	assert.Greater(t, ttl, 10*time.Minute)
}

func TestSessionRefRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	refs := NewSessionRefStore(client)
	ctx := context.Background()

	ref, err := refs.Create(ctx, "user@example.com", "registration-continuation", 10*time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	session, err := refs.Resolve(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", session.IdentityKey)
	assert.Equal(t, "registration-continuation", session.Purpose)

	require.NoError(t, refs.Delete(ctx, ref))

	_, err = refs.Resolve(ctx, ref)
	assert.Equal(t, ErrRecordNotFound, err)
}

func TestSessionRefExpires(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	refs := NewSessionRefStore(client)
	ctx := context.Background()

	ref, err := refs.Create(ctx, "user@example.com", "password-reset", 10*time.Minute)
	require.NoError(t, err)

	mr.FastForward(11 * time.Minute)

	_, err = refs.Resolve(ctx, ref)
	assert.Equal(t, ErrRecordNotFound, err)
}
