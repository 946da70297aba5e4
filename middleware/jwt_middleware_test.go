package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsalloum/veriflow_backend/services"
)

func runProtected(t *testing.T, tokens *services.TokenService, authHeader string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotUserID string
	handler := JWTMiddleware(tokens)(func(c echo.Context) error {
		gotUserID, _ = ExtractUserID(c)
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))

	return rec, gotUserID
}

func TestJWTMiddlewareAcceptsSessionToken(t *testing.T) {
	tokens := services.NewTokenService("test-secret")
	token, err := tokens.IssueSessionToken("6507f1f77bcf86cd79943901", "user@example.com")
	require.NoError(t, err)

	rec, userID := runProtected(t, tokens, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "6507f1f77bcf86cd79943901", userID)
}

func TestJWTMiddlewareRejectsMissingHeader(t *testing.T) {
	tokens := services.NewTokenService("test-secret")

	rec, _ := runProtected(t, tokens, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = runProtected(t, tokens, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareRejectsExpiredToken(t *testing.T) {
	tokens := services.NewTokenService("test-secret")
	tokens.SessionTTL = -time.Minute
	token, err := tokens.IssueSessionToken("6507f1f77bcf86cd79943901", "user@example.com")
	require.NoError(t, err)

	tokens.SessionTTL = 30 * 24 * time.Hour
	rec, _ := runProtected(t, tokens, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTMiddlewareOperationTokenCarriesNoUser(t *testing.T) {
	tokens := services.NewTokenService("test-secret")
	token, err := tokens.IssueOperationToken("user@example.com", services.PurposeRegistration)
	require.NoError(t, err)

	// An operation token parses as session claims but carries no user ID,
	// so the handler sees no authenticated user.
	rec, userID := runProtected(t, tokens, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, userID)
}
