package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCodeFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "code must be numeric, got %q", code)
		}
	}
}

func TestGenerateCodeVaries(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		seen[code] = true
	}
	// 50 draws from a million values colliding down to a handful would mean
	// a broken generator.
	assert.Greater(t, len(seen), 40)
}

func TestHashPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-password", hash)

	assert.NoError(t, CheckPassword("s3cret-password", hash))
	assert.Error(t, CheckPassword("wrong-password", hash))
}
