// utils/valid.go
package utils

import (
	"errors"
	"html"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonPhoneRunes = regexp.MustCompile(`[^\d+]`)
)

// SanitizeInput sanitizes user input to prevent XSS and injection attacks
func SanitizeInput(input string) string {
	// Trim spaces
	input = strings.TrimSpace(input)

	// HTML escape
	input = html.EscapeString(input)

	// Remove control characters
	input = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	return input
}

// SanitizeEmail sanitizes and validates an email address
func SanitizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	email = strings.ToLower(email)

	if !emailRegex.MatchString(email) {
		return "", errors.New("invalid email format")
	}

	return email, nil
}

// SanitizePhone sanitizes and validates a phone number, returning it in
// +<digits> form.
func SanitizePhone(phone string) (string, error) {
	phone = nonPhoneRunes.ReplaceAllString(strings.TrimSpace(phone), "")

	if !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}

	// Basic validation for international phone number
	if len(phone) < 8 || len(phone) > 16 {
		return "", errors.New("invalid phone number length")
	}

	return phone, nil
}

// IsEmailKey reports whether an identity key looks like an email address
// rather than a phone number.
func IsEmailKey(identityKey string) bool {
	return strings.Contains(identityKey, "@")
}

// NormalizeIdentityKey canonicalizes an identity key: lowercased email or
// E.164-style phone number. Invalid keys return an error.
func NormalizeIdentityKey(identityKey string) (string, error) {
	if strings.TrimSpace(identityKey) == "" {
		return "", errors.New("identity key is required")
	}
	if IsEmailKey(identityKey) {
		return SanitizeEmail(identityKey)
	}
	return SanitizePhone(identityKey)
}

// ValidateImageFile validates avatar file size and extension
func ValidateImageFile(filename string, size int64) error {
	// 5MB limit
	if size > 5*1024*1024 {
		return errors.New("file too large")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	allowedExts := map[string]bool{
		".jpg":  true,
		".jpeg": true,
		".png":  true,
		".gif":  true,
	}

	if !allowedExts[ext] {
		return errors.New("invalid file type")
	}

	return nil
}
