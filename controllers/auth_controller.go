// controllers/auth_controller.go
package controllers

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/config"
	"github.com/hsalloum/veriflow_backend/middleware"
	"github.com/hsalloum/veriflow_backend/models"
	"github.com/hsalloum/veriflow_backend/repositories"
	"github.com/hsalloum/veriflow_backend/services"
	"github.com/hsalloum/veriflow_backend/utils"
)

// AuthController handles registration, verification and login.
type AuthController struct {
	Cfg    *config.Config
	Users  repositories.UserStore
	Engine *services.VerificationEngine
	Tokens *services.TokenService
	Refs   *repositories.SessionRefStore
	Sender services.CodeSender
	Blob   services.BlobStore
	logger *log.Logger
}

// NewAuthController creates a new auth controller.
func NewAuthController(cfg *config.Config, users repositories.UserStore, engine *services.VerificationEngine,
	tokens *services.TokenService, refs *repositories.SessionRefStore, sender services.CodeSender,
	blob services.BlobStore) *AuthController {
	return &AuthController{
		Cfg:    cfg,
		Users:  users,
		Engine: engine,
		Tokens: tokens,
		Refs:   refs,
		Sender: sender,
		Blob:   blob,
		logger: log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
	}
}

// RequestVerification starts registration by issuing a code for an identity
// key that has no account yet.
func (ac *AuthController) RequestVerification(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.RequestVerificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	identityKey, err := utils.NormalizeIdentityKey(req.IdentityKey)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A valid phone number or email is required",
		})
	}

	// Registration precondition: the identity key must be unclaimed.
	_, err = ac.Users.FindByIdentityKey(ctx, identityKey)
	if err == nil {
		return c.JSON(http.StatusConflict, models.Response{
			Status:  http.StatusConflict,
			Message: "User with this identity key already exists",
		})
	}
	if err != repositories.ErrUserNotFound {
		ac.logger.Printf("user lookup failed: %v", err)
		return ac.internalError(c, err)
	}

	return ac.issueCode(c, ctx, identityKey, services.PurposeRegistration)
}

// ResendCode re-issues a code for an existing verification session. The
// upsert replaces the old code and resets the attempt budget.
func (ac *AuthController) ResendCode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req struct {
		SessionRef string `json:"sessionRef"`
	}
	if err := c.Bind(&req); err != nil || req.SessionRef == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Session reference is required",
		})
	}

	session, err := ac.Refs.Resolve(ctx, req.SessionRef)
	if err != nil {
		if err == repositories.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Verification session not found or expired",
			})
		}
		return ac.internalError(c, err)
	}

	return ac.issueCode(c, ctx, session.IdentityKey, session.Purpose)
}

// VerifyCode checks a submitted code and, on success, returns the operation
// token for the flow the code was issued for.
func (ac *AuthController) VerifyCode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.Code == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Verification code is required",
		})
	}

	identityKey, purpose, err := ac.resolveSession(ctx, &req)
	if err != nil {
		if err == repositories.ErrRecordNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "Verification session not found or expired",
			})
		}
		if err == errMissingSessionTarget {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Session reference or identity key is required",
			})
		}
		if err == errInvalidIdentityKey {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "A valid phone number or email is required",
			})
		}
		return ac.internalError(c, err)
	}

	result, err := ac.Engine.Verify(ctx, identityKey, req.Code)
	if err != nil {
		ac.logger.Printf("verify failed for %s: %v", identityKey, err)
		return ac.internalError(c, err)
	}

	if result.Outcome != services.OutcomeSuccess {
		return verifyOutcomeResponse(c, result)
	}

	if req.SessionRef != "" {
		if err := ac.Refs.Delete(ctx, req.SessionRef); err != nil {
			ac.logger.Printf("failed to delete session reference: %v", err)
		}
	}

	tempToken, err := ac.Tokens.IssueOperationToken(identityKey, purpose)
	if err != nil {
		return ac.internalError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Verification successful",
		Data: map[string]interface{}{
			"tempToken":   tempToken,
			"identityKey": identityKey,
			"purpose":     purpose,
		},
	})
}

// Register completes registration with an operation token from VerifyCode.
func (ac *AuthController) Register(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.IdentityKey == "" || req.Password == "" || req.OperationToken == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Identity key, password, and operation token are required",
		})
	}
	if len(req.Password) < 8 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 8 characters long",
		})
	}

	identityKey, err := utils.NormalizeIdentityKey(req.IdentityKey)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A valid phone number or email is required",
		})
	}

	claims, err := ac.Tokens.VerifyOperationToken(req.OperationToken, services.PurposeRegistration)
	if err != nil {
		return tokenErrorResponse(c, err)
	}
	if claims.IdentityKey != identityKey {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Operation token does not match the identity key",
		})
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		return ac.internalError(c, err)
	}

	fields := models.UserFields{
		IdentityKey: identityKey,
		Password:    hashedPassword,
	}
	if req.FullName != "" {
		fields.FullName = &req.FullName
	}
	if req.DateOfBirth != "" {
		fields.DateOfBirth = &req.DateOfBirth
	}
	if req.Gender != "" {
		fields.Gender = &req.Gender
	}

	user, err := ac.Users.Create(ctx, fields)
	if err != nil {
		if err == repositories.ErrDuplicateUser {
			return c.JSON(http.StatusConflict, models.Response{
				Status:  http.StatusConflict,
				Message: "User with this identity key already exists",
			})
		}
		return ac.internalError(c, err)
	}

	sessionToken, err := ac.Tokens.IssueSessionToken(user.ID.Hex(), user.IdentityKey)
	if err != nil {
		return ac.internalError(c, err)
	}

	ac.logger.Printf("registered user %s", user.ID.Hex())
	return c.JSON(http.StatusCreated, models.Response{
		Status:  http.StatusCreated,
		Message: "User registered successfully",
		Data: map[string]interface{}{
			"sessionToken": sessionToken,
			"profile":      profileData(user, ac.Blob, ac.Cfg.SignedURLTTL),
		},
	})
}

// Login authenticates with identity key and password and mints a fresh
// session token.
func (ac *AuthController) Login(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.IdentityKey == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Identity key and password are required",
		})
	}

	identityKey, err := utils.NormalizeIdentityKey(req.IdentityKey)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A valid phone number or email is required",
		})
	}

	user, err := ac.Users.FindByIdentityKey(ctx, identityKey)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "Invalid credentials",
			})
		}
		return ac.internalError(c, err)
	}

	if err := utils.CheckPassword(req.Password, user.Password); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Invalid credentials",
		})
	}

	sessionToken, err := ac.Tokens.IssueSessionToken(user.ID.Hex(), user.IdentityKey)
	if err != nil {
		return ac.internalError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Login successful",
		Data: map[string]interface{}{
			"sessionToken": sessionToken,
			"profile":      profileData(user, ac.Blob, ac.Cfg.SignedURLTTL),
		},
	})
}

// CheckExists reports whether an identity key already has an account.
func (ac *AuthController) CheckExists(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.RequestVerificationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	identityKey, err := utils.NormalizeIdentityKey(req.IdentityKey)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "A valid phone number or email is required",
		})
	}

	exists := true
	if _, err := ac.Users.FindByIdentityKey(ctx, identityKey); err != nil {
		if err != repositories.ErrUserNotFound {
			return ac.internalError(c, err)
		}
		exists = false
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Lookup complete",
		Data:    map[string]interface{}{"exists": exists},
	})
}

// ValidateToken introspects the bearer session token.
func (ac *AuthController) ValidateToken(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	tokenString, err := middleware.BearerToken(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Missing or malformed authorization header",
		})
	}

	claims, err := ac.Tokens.VerifySessionToken(tokenString)
	if err != nil {
		return tokenErrorResponse(c, err)
	}

	user, err := ac.Users.FindByID(ctx, claims.UserID)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return c.JSON(http.StatusUnauthorized, models.Response{
				Status:  http.StatusUnauthorized,
				Message: "User not found",
			})
		}
		return ac.internalError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Token is valid",
		Data: map[string]interface{}{
			"profile":   profileData(user, ac.Blob, ac.Cfg.SignedURLTTL),
			"expiresAt": time.Unix(claims.ExpiresAt, 0),
		},
	})
}

// issueCode runs the shared code-issuance path: engine upsert, session
// reference, out-of-band delivery.
func (ac *AuthController) issueCode(c echo.Context, ctx context.Context, identityKey, purpose string) error {
	code, err := ac.Engine.RequestCode(ctx, identityKey)
	if err != nil {
		ac.logger.Printf("code issuance failed for %s: %v", identityKey, err)
		return ac.internalError(c, err)
	}

	sessionRef, err := ac.Refs.Create(ctx, identityKey, purpose, ac.Engine.CodeTTL())
	if err != nil {
		return ac.internalError(c, err)
	}

	data := map[string]interface{}{
		"sessionRef":  sessionRef,
		"identityKey": identityKey,
	}

	if err := ac.Sender.Send(ctx, identityKey, code); err != nil {
		if err != services.ErrDeliveryDisabled {
			ac.logger.Printf("code delivery failed for %s: %v", identityKey, err)
			return ac.internalError(c, err)
		}
		if !ac.Cfg.ExposeVerificationCodes {
			return c.JSON(http.StatusServiceUnavailable, models.Response{
				Status:  http.StatusServiceUnavailable,
				Message: "Code delivery is not available",
			})
		}
		// Development-only escape hatch; Load() rejects this flag in
		// production.
		data["verificationCode"] = code
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Verification code sent successfully",
		Data:    data,
	})
}

func (ac *AuthController) internalError(c echo.Context, err error) error {
	resp := models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Server error",
	}
	if !ac.Cfg.IsProduction() {
		resp.Data = map[string]interface{}{"error": err.Error()}
	}
	return c.JSON(http.StatusInternalServerError, resp)
}
