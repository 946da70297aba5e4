// controllers/password_controller.go
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

// PasswordController handles the password reset and change flows.
type PasswordController struct {
	Cfg    *config.Config
	Users  repositories.UserStore
	Engine *services.VerificationEngine
	Tokens *services.TokenService
	Refs   *repositories.SessionRefStore
	Sender services.CodeSender
	logger *log.Logger
}

// NewPasswordController creates a new password controller.
func NewPasswordController(cfg *config.Config, users repositories.UserStore, engine *services.VerificationEngine,
	tokens *services.TokenService, refs *repositories.SessionRefStore, sender services.CodeSender) *PasswordController {
	return &PasswordController{
		Cfg:    cfg,
		Users:  users,
		Engine: engine,
		Tokens: tokens,
		Refs:   refs,
		Sender: sender,
		logger: log.New(os.Stdout, "[PASSWORD] ", log.LstdFlags),
	}
}

// RequestPasswordReset issues a reset code for an existing account.
func (pc *PasswordController) RequestPasswordReset(c echo.Context) error {
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

	// Reset precondition: the account must exist.
	if _, err := pc.Users.FindByIdentityKey(ctx, identityKey); err != nil {
		if err == repositories.ErrUserNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "No account associated with this identity key",
			})
		}
		return pc.internalError(c, err)
	}

	code, err := pc.Engine.RequestCode(ctx, identityKey)
	if err != nil {
		pc.logger.Printf("reset code issuance failed for %s: %v", identityKey, err)
		return pc.internalError(c, err)
	}

	sessionRef, err := pc.Refs.Create(ctx, identityKey, services.PurposePasswordReset, pc.Engine.CodeTTL())
	if err != nil {
		return pc.internalError(c, err)
	}

	data := map[string]interface{}{"sessionRef": sessionRef}

	if err := pc.Sender.Send(ctx, identityKey, code); err != nil {
		if err != services.ErrDeliveryDisabled {
			pc.logger.Printf("reset code delivery failed for %s: %v", identityKey, err)
			return pc.internalError(c, err)
		}
		if !pc.Cfg.ExposeVerificationCodes {
			return c.JSON(http.StatusServiceUnavailable, models.Response{
				Status:  http.StatusServiceUnavailable,
				Message: "Code delivery is not available",
			})
		}
		data["verificationCode"] = code
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password reset code sent successfully",
		Data:    data,
	})
}

// VerifyResetCode checks a reset code and returns the reset token on success.
func (pc *PasswordController) VerifyResetCode(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.Code == "" || (req.SessionRef == "" && req.IdentityKey == "") {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Session reference (or identity key) and code are required",
		})
	}

	identityKey := ""
	if req.SessionRef != "" {
		session, err := pc.Refs.Resolve(ctx, req.SessionRef)
		if err != nil {
			if err == repositories.ErrRecordNotFound {
				return c.JSON(http.StatusNotFound, models.Response{
					Status:  http.StatusNotFound,
					Message: "Verification session not found or expired",
				})
			}
			return pc.internalError(c, err)
		}
		if session.Purpose != services.PurposePasswordReset {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Session was not issued for a password reset",
			})
		}
		identityKey = session.IdentityKey
	} else {
		key, err := utils.NormalizeIdentityKey(req.IdentityKey)
		if err != nil {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "A valid phone number or email is required",
			})
		}
		identityKey = key
	}

	result, err := pc.Engine.Verify(ctx, identityKey, req.Code)
	if err != nil {
		pc.logger.Printf("reset verify failed for %s: %v", identityKey, err)
		return pc.internalError(c, err)
	}
	if result.Outcome != services.OutcomeSuccess {
		return verifyOutcomeResponse(c, result)
	}

	if req.SessionRef != "" {
		if err := pc.Refs.Delete(ctx, req.SessionRef); err != nil {
			pc.logger.Printf("failed to delete session reference: %v", err)
		}
	}

	resetToken, err := pc.Tokens.IssueOperationToken(identityKey, services.PurposePasswordReset)
	if err != nil {
		return pc.internalError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Reset code verified successfully",
		Data:    map[string]interface{}{"resetToken": resetToken},
	})
}

// CompletePasswordReset sets a new password using a reset token. Validity is
// the token's signature and expiry alone; the verification record is long
// gone by now.
func (pc *PasswordController) CompletePasswordReset(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.ResetToken == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Reset token and new password are required",
		})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 8 characters long",
		})
	}

	claims, err := pc.Tokens.VerifyOperationToken(req.ResetToken, services.PurposePasswordReset)
	if err != nil {
		return tokenErrorResponse(c, err)
	}

	user, err := pc.Users.FindByIdentityKey(ctx, claims.IdentityKey)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "User not found",
			})
		}
		return pc.internalError(c, err)
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return pc.internalError(c, err)
	}

	if _, err := pc.Users.Update(ctx, user.ID.Hex(), models.UserFields{Password: hashedPassword}); err != nil {
		return pc.internalError(c, err)
	}

	pc.logger.Printf("password reset completed for user %s", user.ID.Hex())
	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password reset successfully",
	})
}

// ChangePassword changes the password of the authenticated user.
func (pc *PasswordController) ChangePassword(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}

	var req models.ChangePasswordRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Current and new passwords are required",
		})
	}
	if len(req.NewPassword) < 8 {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Password must be at least 8 characters long",
		})
	}

	user, err := pc.Users.FindByID(ctx, userID)
	if err != nil {
		if err == repositories.ErrUserNotFound {
			return c.JSON(http.StatusNotFound, models.Response{
				Status:  http.StatusNotFound,
				Message: "User not found",
			})
		}
		return pc.internalError(c, err)
	}

	if err := utils.CheckPassword(req.CurrentPassword, user.Password); err != nil {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Current password is incorrect",
		})
	}

	hashedPassword, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return pc.internalError(c, err)
	}

	if _, err := pc.Users.Update(ctx, user.ID.Hex(), models.UserFields{Password: hashedPassword}); err != nil {
		return pc.internalError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Password changed successfully",
	})
}

func (pc *PasswordController) internalError(c echo.Context, err error) error {
	resp := models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Server error",
	}
	if !pc.Cfg.IsProduction() {
		resp.Data = map[string]interface{}{"error": err.Error()}
	}
	return c.JSON(http.StatusInternalServerError, resp)
}
