// controllers/common.go
package controllers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/models"
	"github.com/hsalloum/veriflow_backend/services"
	"github.com/hsalloum/veriflow_backend/utils"
)

var (
	errMissingSessionTarget = errors.New("session reference or identity key is required")
	errInvalidIdentityKey   = errors.New("identity key is not a valid phone number or email")
)

// resolveSession maps a verify request to the identity key and flow it
// targets, preferring the session reference when both are present.
func (ac *AuthController) resolveSession(ctx context.Context, req *models.VerifyCodeRequest) (string, string, error) {
	if req.SessionRef != "" {
		session, err := ac.Refs.Resolve(ctx, req.SessionRef)
		if err != nil {
			return "", "", err
		}
		return session.IdentityKey, session.Purpose, nil
	}

	if req.IdentityKey == "" {
		return "", "", errMissingSessionTarget
	}
	identityKey, err := utils.NormalizeIdentityKey(req.IdentityKey)
	if err != nil {
		return "", "", errInvalidIdentityKey
	}
	return identityKey, services.PurposeRegistration, nil
}

// verifyOutcomeResponse maps non-success engine outcomes to HTTP responses.
func verifyOutcomeResponse(c echo.Context, result *services.VerifyResult) error {
	switch result.Outcome {
	case services.OutcomeNotFound:
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Verification code not found or already used",
		})
	case services.OutcomeExpired:
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Verification code has expired. Please request a new code",
		})
	case services.OutcomeAttemptsExceeded:
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Too many attempts. Please request a new code",
		})
	case services.OutcomeMismatch:
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid verification code",
			Data:    map[string]interface{}{"attemptsLeft": result.AttemptsLeft},
		})
	default:
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Server error",
		})
	}
}

// tokenErrorResponse maps token service errors to 401 responses.
func tokenErrorResponse(c echo.Context, err error) error {
	message := "Invalid token"
	switch err {
	case services.ErrExpiredToken:
		message = "Token has expired"
	case services.ErrWrongPurpose:
		message = "Token was issued for a different operation"
	}
	return c.JSON(http.StatusUnauthorized, models.Response{
		Status:  http.StatusUnauthorized,
		Message: message,
	})
}

// profileData renders the client-facing profile, with a signed avatar URL
// when one is set.
func profileData(user *models.User, blob services.BlobStore, urlTTL time.Duration) *models.User {
	profile := *user
	profile.Password = ""
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	if profile.AvatarKey != "" && blob != nil {
		url, err := blob.SignedURL(profile.AvatarKey, urlTTL)
		if err != nil {
			log.Printf("failed to sign avatar URL for %s: %v", profile.ID.Hex(), err)
		} else {
			profile.AvatarURL = url
		}
	}
	return &profile
}
