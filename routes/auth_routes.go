package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/controllers"
)

// RegisterAuthRoutes sets up the public authentication routes
func RegisterAuthRoutes(e *echo.Echo, authController *controllers.AuthController, passwordController *controllers.PasswordController) {
	// Registration flow
	e.POST("/api/auth/request-verification", authController.RequestVerification)
	e.POST("/api/auth/resend-code", authController.ResendCode)
	e.POST("/api/auth/verify", authController.VerifyCode)
	e.POST("/api/auth/register", authController.Register)

	// Login and token introspection
	e.POST("/api/auth/login", authController.Login)
	e.POST("/api/auth/check-exists", authController.CheckExists)
	e.GET("/api/auth/validate-token", authController.ValidateToken)

	// Password reset flow
	e.POST("/api/auth/request-password-reset", passwordController.RequestPasswordReset)
	e.POST("/api/auth/verify-reset-code", passwordController.VerifyResetCode)
	e.POST("/api/auth/complete-password-reset", passwordController.CompletePasswordReset)
}
