// controllers/file_controller.go
package controllers

import (
	"io"
	"log"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/models"
	"github.com/hsalloum/veriflow_backend/services"
)

const maxPresignedUploadBytes = 5 * 1024 * 1024

// FileController serves and accepts blob objects through signed URLs. It
// needs the concrete local store for signature checks and raw writes.
type FileController struct {
	Blob   *services.LocalBlobStore
	logger *log.Logger
}

// NewFileController creates a new file controller.
func NewFileController(blob *services.LocalBlobStore) *FileController {
	return &FileController{
		Blob:   blob,
		logger: log.New(os.Stdout, "[FILES] ", log.LstdFlags),
	}
}

// ServeObject serves an object for a valid GET signature.
func (fc *FileController) ServeObject(c echo.Context) error {
	objectKey := c.Param("*")
	exp := c.QueryParam("exp")
	sig := c.QueryParam("sig")

	if !fc.Blob.VerifySignature(http.MethodGet, objectKey, exp, sig) {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Invalid or expired URL signature",
		})
	}

	path, err := fc.Blob.ObjectPath(objectKey)
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid object key",
		})
	}
	if _, err := os.Stat(path); err != nil {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Object not found",
		})
	}

	return c.File(path)
}

// AcceptUpload stores the body of a presigned PUT.
func (fc *FileController) AcceptUpload(c echo.Context) error {
	objectKey := c.Param("*")
	exp := c.QueryParam("exp")
	sig := c.QueryParam("sig")

	if !fc.Blob.VerifySignature(http.MethodPut, objectKey, exp, sig) {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Invalid or expired URL signature",
		})
	}

	data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxPresignedUploadBytes+1))
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Failed to read upload body",
		})
	}
	if len(data) > maxPresignedUploadBytes {
		return c.JSON(http.StatusRequestEntityTooLarge, models.Response{
			Status:  http.StatusRequestEntityTooLarge,
			Message: "File too large",
		})
	}

	if err := fc.Blob.SaveRaw(objectKey, data); err != nil {
		if err == services.ErrUnsupportedMediaType {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Unsupported image format",
			})
		}
		fc.logger.Printf("presigned upload failed for %s: %v", objectKey, err)
		return c.JSON(http.StatusInternalServerError, models.Response{
			Status:  http.StatusInternalServerError,
			Message: "Server error",
		})
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Object stored successfully",
		Data:    map[string]interface{}{"objectKey": objectKey},
	})
}
