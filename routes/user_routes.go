package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/controllers"
	"github.com/hsalloum/veriflow_backend/middleware"
	"github.com/hsalloum/veriflow_backend/services"
)

// RegisterUserRoutes sets up the authenticated profile routes
func RegisterUserRoutes(e *echo.Echo, tokens *services.TokenService, userController *controllers.UserController, passwordController *controllers.PasswordController) {
	users := e.Group("/api/users")
	users.Use(middleware.JWTMiddleware(tokens))

	users.GET("/me", userController.GetProfile)
	users.PUT("/me", userController.UpdateProfile)
	users.PUT("/me/password", passwordController.ChangePassword)

	users.POST("/me/avatar", userController.UploadAvatar)
	users.POST("/me/avatar/presign", userController.PresignAvatarUpload)
	users.POST("/me/avatar/confirm", userController.ConfirmAvatarUpload)
	users.DELETE("/me/avatar", userController.DeleteAvatar)
}
