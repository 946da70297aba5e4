// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/models"
	"github.com/hsalloum/veriflow_backend/services"
)

const (
	// ContextUserID is the context key holding the authenticated user ID.
	ContextUserID = "userId"
	// ContextIdentityKey is the context key holding the authenticated
	// identity key.
	ContextIdentityKey = "identityKey"
)

// JWTMiddleware authenticates requests with a bearer session token and puts
// the claims into the request context.
func JWTMiddleware(tokens *services.TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := BearerToken(c)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: "Missing or malformed authorization header",
				})
			}

			claims, err := tokens.VerifySessionToken(tokenString)
			if err != nil {
				message := "Invalid token"
				if err == services.ErrExpiredToken {
					message = "Token has expired"
				}
				return c.JSON(http.StatusUnauthorized, models.Response{
					Status:  http.StatusUnauthorized,
					Message: message,
				})
			}

			c.Set(ContextUserID, claims.UserID)
			c.Set(ContextIdentityKey, claims.IdentityKey)
			return next(c)
		}
	}
}

// BearerToken extracts the token from the Authorization header.
func BearerToken(c echo.Context) (string, error) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if header == "" {
		return "", errors.New("no authorization header provided")
	}
	if len(header) < 8 || !strings.EqualFold(header[:7], "Bearer ") {
		return "", errors.New("invalid authorization header format")
	}
	return header[7:], nil
}

// ErrNoAuthenticatedUser is returned when a handler runs without the JWT
// middleware having set a user.
var ErrNoAuthenticatedUser = errors.New("no authenticated user in context")

// ExtractUserID returns the authenticated user ID from the context.
func ExtractUserID(c echo.Context) (string, error) {
	userID, ok := c.Get(ContextUserID).(string)
	if !ok || userID == "" {
		return "", ErrNoAuthenticatedUser
	}
	return userID, nil
}
