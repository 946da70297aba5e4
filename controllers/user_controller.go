// controllers/user_controller.go
package controllers

import (
	"context"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hsalloum/veriflow_backend/config"
	"github.com/hsalloum/veriflow_backend/middleware"
	"github.com/hsalloum/veriflow_backend/models"
	"github.com/hsalloum/veriflow_backend/repositories"
	"github.com/hsalloum/veriflow_backend/services"
	"github.com/hsalloum/veriflow_backend/utils"
)

// UserController handles profile and avatar management.
type UserController struct {
	Cfg    *config.Config
	Users  repositories.UserStore
	Blob   services.BlobStore
	logger *log.Logger
}

// NewUserController creates a new user controller.
func NewUserController(cfg *config.Config, users repositories.UserStore, blob services.BlobStore) *UserController {
	return &UserController{
		Cfg:    cfg,
		Users:  users,
		Blob:   blob,
		logger: log.New(os.Stdout, "[USER] ", log.LstdFlags),
	}
}

// GetProfile returns the authenticated user's profile.
func (uc *UserController) GetProfile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := uc.currentUser(ctx, c)
	if err != nil {
		return uc.userError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile retrieved successfully",
		Data:    map[string]interface{}{"profile": profileData(user, uc.Blob, uc.Cfg.SignedURLTTL)},
	})
}

// UpdateProfile applies the editable profile fields.
func (uc *UserController) UpdateProfile(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return uc.userError(c, err)
	}

	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Invalid request body",
		})
	}

	fields := models.UserFields{}
	if req.FullName != nil {
		name := utils.SanitizeInput(*req.FullName)
		fields.FullName = &name
	}
	if req.DateOfBirth != nil {
		dob := utils.SanitizeInput(*req.DateOfBirth)
		fields.DateOfBirth = &dob
	}
	if req.Gender != nil {
		gender := utils.SanitizeInput(*req.Gender)
		fields.Gender = &gender
	}

	user, err := uc.Users.Update(ctx, userID, fields)
	if err != nil {
		return uc.userError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Profile updated successfully",
		Data:    map[string]interface{}{"profile": profileData(user, uc.Blob, uc.Cfg.SignedURLTTL)},
	})
}

// UploadAvatar stores a new avatar from a multipart form and points the
// profile at it. The previous avatar object is removed afterwards; a failed
// removal only costs an orphaned blob, never the profile update.
func (uc *UserController) UploadAvatar(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := uc.currentUser(ctx, c)
	if err != nil {
		return uc.userError(c, err)
	}

	fileHeader, err := c.FormFile("avatar")
	if err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Avatar file is required",
		})
	}

	if err := utils.ValidateImageFile(fileHeader.Filename, fileHeader.Size); err != nil {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: err.Error(),
		})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return uc.internalError(c, err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return uc.internalError(c, err)
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	objectKey, err := uc.Blob.Upload(ctx, user.ID.Hex(), data, mimeType)
	if err != nil {
		if err == services.ErrUnsupportedMediaType {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Unsupported image format",
			})
		}
		return uc.internalError(c, err)
	}

	previousKey := user.AvatarKey
	updated, err := uc.Users.Update(ctx, user.ID.Hex(), models.UserFields{AvatarKey: &objectKey})
	if err != nil {
		return uc.userError(c, err)
	}

	uc.removeOldAvatar(ctx, previousKey)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Avatar uploaded successfully",
		Data:    map[string]interface{}{"profile": profileData(updated, uc.Blob, uc.Cfg.SignedURLTTL)},
	})
}

// PresignAvatarUpload mints a presigned upload URL the client can PUT the
// image bytes to, and the object key to confirm afterwards. The profile is
// not touched here: until ConfirmAvatarUpload runs, the current avatar stays
// intact and an abandoned upload URL costs nothing.
func (uc *UserController) PresignAvatarUpload(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := uc.currentUser(ctx, c)
	if err != nil {
		return uc.userError(c, err)
	}

	var req struct {
		MimeType string `json:"mimeType"`
	}
	if err := c.Bind(&req); err != nil || req.MimeType == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "MIME type is required",
		})
	}

	uploadURL, objectKey, err := uc.Blob.PresignUpload(user.ID.Hex(), req.MimeType)
	if err != nil {
		if err == services.ErrUnsupportedMediaType {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Unsupported image format",
			})
		}
		return uc.internalError(c, err)
	}

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Upload URL issued successfully",
		Data: map[string]interface{}{
			"uploadUrl": uploadURL,
			"objectKey": objectKey,
		},
	})
}

// ConfirmAvatarUpload points the profile at an object uploaded through a
// presigned URL. The key must have been minted for this user and the bytes
// must already be stored; only then is the previous avatar replaced.
func (uc *UserController) ConfirmAvatarUpload(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := uc.currentUser(ctx, c)
	if err != nil {
		return uc.userError(c, err)
	}

	var req struct {
		ObjectKey string `json:"objectKey"`
	}
	if err := c.Bind(&req); err != nil || req.ObjectKey == "" {
		return c.JSON(http.StatusBadRequest, models.Response{
			Status:  http.StatusBadRequest,
			Message: "Object key is required",
		})
	}

	if !strings.HasPrefix(req.ObjectKey, "avatars/"+user.ID.Hex()+"_") {
		return c.JSON(http.StatusForbidden, models.Response{
			Status:  http.StatusForbidden,
			Message: "Object key was not issued for this user",
		})
	}

	exists, err := uc.Blob.Exists(ctx, req.ObjectKey)
	if err != nil {
		if err == services.ErrInvalidObjectKey {
			return c.JSON(http.StatusBadRequest, models.Response{
				Status:  http.StatusBadRequest,
				Message: "Invalid object key",
			})
		}
		return uc.internalError(c, err)
	}
	if !exists {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "Object has not been uploaded",
		})
	}

	previousKey := user.AvatarKey
	updated, err := uc.Users.Update(ctx, user.ID.Hex(), models.UserFields{AvatarKey: &req.ObjectKey})
	if err != nil {
		return uc.userError(c, err)
	}

	uc.removeOldAvatar(ctx, previousKey)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Avatar updated successfully",
		Data:    map[string]interface{}{"profile": profileData(updated, uc.Blob, uc.Cfg.SignedURLTTL)},
	})
}

// DeleteAvatar removes the avatar from the profile and the blob store.
func (uc *UserController) DeleteAvatar(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	user, err := uc.currentUser(ctx, c)
	if err != nil {
		return uc.userError(c, err)
	}

	if user.AvatarKey == "" {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "No avatar set",
		})
	}

	empty := ""
	if _, err := uc.Users.Update(ctx, user.ID.Hex(), models.UserFields{AvatarKey: &empty}); err != nil {
		return uc.userError(c, err)
	}

	uc.removeOldAvatar(ctx, user.AvatarKey)

	return c.JSON(http.StatusOK, models.Response{
		Status:  http.StatusOK,
		Message: "Avatar deleted successfully",
	})
}

func (uc *UserController) currentUser(ctx context.Context, c echo.Context) (*models.User, error) {
	userID, err := middleware.ExtractUserID(c)
	if err != nil {
		return nil, err
	}
	return uc.Users.FindByID(ctx, userID)
}

func (uc *UserController) removeOldAvatar(ctx context.Context, objectKey string) {
	if objectKey == "" {
		return
	}
	if err := uc.Blob.Delete(ctx, objectKey); err != nil {
		// Orphaned blobs are acceptable; a missing profile update is not.
		uc.logger.Printf("failed to delete old avatar %s: %v", objectKey, err)
	}
}

func (uc *UserController) userError(c echo.Context, err error) error {
	if err == repositories.ErrUserNotFound {
		return c.JSON(http.StatusNotFound, models.Response{
			Status:  http.StatusNotFound,
			Message: "User not found",
		})
	}
	if err == middleware.ErrNoAuthenticatedUser {
		return c.JSON(http.StatusUnauthorized, models.Response{
			Status:  http.StatusUnauthorized,
			Message: "Unauthorized",
		})
	}
	return uc.internalError(c, err)
}

func (uc *UserController) internalError(c echo.Context, err error) error {
	resp := models.Response{
		Status:  http.StatusInternalServerError,
		Message: "Server error",
	}
	if !uc.Cfg.IsProduction() {
		resp.Data = map[string]interface{}{"error": err.Error()}
	}
	return c.JSON(http.StatusInternalServerError, resp)
}
