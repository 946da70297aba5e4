package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/controllers"
)

// RegisterFileRoutes exposes signed blob downloads and presigned uploads
func RegisterFileRoutes(e *echo.Echo, fileController *controllers.FileController) {
	e.GET("/files/*", fileController.ServeObject)
	e.PUT("/files/*", fileController.AcceptUpload)
}
