// services/token.go
package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt"
)

// Operation token purposes. A token minted for one flow never authorizes the
// other.
const (
	PurposeRegistration  = "registration-continuation"
	PurposePasswordReset = "password-reset"
)

var (
	// ErrInvalidToken is returned for malformed, tampered or mis-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned for well-formed tokens past their expiry.
	ErrExpiredToken = errors.New("token has expired")
	// ErrWrongPurpose is returned when an operation token is presented to a
	// flow it was not minted for.
	ErrWrongPurpose = errors.New("token purpose mismatch")
)

// OperationClaims authorize continuation of a multi-step flow after code
// verification. Validity is signature plus timestamps only; the verification
// record is already gone by the time the token is used.
type OperationClaims struct {
	IdentityKey string `json:"identityKey"`
	Purpose     string `json:"purpose"`
	jwt.StandardClaims
}

// SessionClaims authorize ongoing API access after login.
type SessionClaims struct {
	UserID      string `json:"userId"`
	IdentityKey string `json:"identityKey"`
	jwt.StandardClaims
}

// TokenService mints and checks the signed tokens used by the auth flows.
// It keeps no state beyond the signing key; tokens become invalid only by
// expiring.
type TokenService struct {
	secret []byte

	RegistrationTTL time.Duration
	ResetTTL        time.Duration
	SessionTTL      time.Duration
}

// NewTokenService creates a token service with the standard lifetimes:
// 1 hour for registration continuation, 15 minutes for password reset,
// 30 days for sessions.
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret:          []byte(secret),
		RegistrationTTL: time.Hour,
		ResetTTL:        15 * time.Minute,
		SessionTTL:      30 * 24 * time.Hour,
	}
}

// IssueOperationToken mints a short-lived token scoped to an identity key
// and flow.
func (t *TokenService) IssueOperationToken(identityKey, purpose string) (string, error) {
	ttl := t.RegistrationTTL
	if purpose == PurposePasswordReset {
		ttl = t.ResetTTL
	}

	now := time.Now()
	claims := &OperationClaims{
		IdentityKey: identityKey,
		Purpose:     purpose,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// IssueSessionToken mints a fresh session token. Every successful login gets
// a new one; old tokens stay valid until they expire.
func (t *TokenService) IssueSessionToken(userID, identityKey string) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID:      userID,
		IdentityKey: identityKey,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(t.SessionTTL).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// VerifyOperationToken checks signature, expiry and purpose of an operation
// token and returns its claims.
func (t *TokenService) VerifyOperationToken(tokenString, purpose string) (*OperationClaims, error) {
	claims := &OperationClaims{}
	if err := t.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose
	}
	return claims, nil
}

// VerifySessionToken checks signature and expiry of a session token and
// returns its claims.
func (t *TokenService) VerifySessionToken(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := t.parse(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (t *TokenService) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return t.secret, nil
	})
	if err != nil {
		if ve, ok := err.(*jwt.ValidationError); ok && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
