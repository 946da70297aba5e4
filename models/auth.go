// models/auth.go

package models

// RequestVerificationRequest starts the registration flow for an identity key
// (phone number or email).
type RequestVerificationRequest struct {
	IdentityKey string `json:"identityKey" validate:"required"`
}

// VerifyCodeRequest submits a code for a pending verification. Clients may
// address the pending verification either by the session reference returned
// from the request call or by the raw identity key.
type VerifyCodeRequest struct {
	SessionRef  string `json:"sessionRef,omitempty"`
	IdentityKey string `json:"identityKey,omitempty"`
	Code        string `json:"code" validate:"required"`
}

// RegisterRequest completes registration after code verification.
type RegisterRequest struct {
	IdentityKey    string `json:"identityKey" validate:"required"`
	Password       string `json:"password" validate:"required,min=8"`
	OperationToken string `json:"operationToken" validate:"required"`
	FullName       string `json:"fullName,omitempty"`
	DateOfBirth    string `json:"dateOfBirth,omitempty"`
	Gender         string `json:"gender,omitempty"`
}

// LoginRequest authenticates with identity key and password.
type LoginRequest struct {
	IdentityKey string `json:"identityKey" validate:"required"`
	Password    string `json:"password" validate:"required"`
}

// ResetPasswordRequest completes the password reset flow.
type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// ChangePasswordRequest changes the password of an authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

// UpdateProfileRequest carries the editable profile fields.
type UpdateProfileRequest struct {
	FullName    *string `json:"fullName,omitempty"`
	DateOfBirth *string `json:"dateOfBirth,omitempty"`
	Gender      *string `json:"gender,omitempty"`
}
