// services/blob.go
package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

const (
	avatarMaxDimension = 512
	avatarJPEGQuality  = 85
)

// ErrInvalidObjectKey is returned for malformed or traversal-attempting keys.
var ErrInvalidObjectKey = errors.New("invalid object key")

// ErrUnsupportedMediaType is returned for non-image uploads.
var ErrUnsupportedMediaType = errors.New("unsupported media type")

// BlobStore stores avatar blobs and issues expiring signed URLs for them.
type BlobStore interface {
	// Upload normalizes and stores image bytes, returning the object key.
	Upload(ctx context.Context, ownerID string, data []byte, mimeType string) (string, error)

	// SignedURL returns a GET URL for the object, valid for ttl.
	SignedURL(objectKey string, ttl time.Duration) (string, error)

	// PresignUpload mints an object key and a PUT URL the client can push
	// the image bytes to directly.
	PresignUpload(ownerID, mimeType string) (uploadURL, objectKey string, err error)

	// Exists reports whether the object has been stored.
	Exists(ctx context.Context, objectKey string) (bool, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, objectKey string) error
}

var allowedImageMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// LocalBlobStore keeps avatar objects on local disk and secures access with
// HMAC-signed expiring URLs served by the file routes. It stands in for a
// cloud object store behind the same interface.
type LocalBlobStore struct {
	baseDir string
	baseURL string
	secret  []byte
	logger  *log.Logger
}

// NewLocalBlobStore creates a disk-backed blob store rooted at baseDir.
func NewLocalBlobStore(baseDir, baseURL, secret string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "avatars"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalBlobStore{
		baseDir: baseDir,
		baseURL: baseURL,
		secret:  []byte(secret),
		logger:  log.New(os.Stdout, "[BLOB] ", log.LstdFlags),
	}, nil
}

// Upload normalizes the image (bounded to 512px, re-encoded as JPEG) and
// writes it under a fresh object key.
func (s *LocalBlobStore) Upload(ctx context.Context, ownerID string, data []byte, mimeType string) (string, error) {
	if !allowedImageMimeTypes[mimeType] {
		return "", ErrUnsupportedMediaType
	}

	normalized, err := normalizeAvatar(data)
	if err != nil {
		return "", err
	}

	objectKey := avatarObjectKey(ownerID)
	if err := s.writeObject(objectKey, normalized); err != nil {
		return "", err
	}
	return objectKey, nil
}

// SaveRaw accepts bytes pushed through a presigned upload URL and runs them
// through the same normalization as a direct upload.
func (s *LocalBlobStore) SaveRaw(objectKey string, data []byte) error {
	if _, err := s.objectPath(objectKey); err != nil {
		return err
	}

	normalized, err := normalizeAvatar(data)
	if err != nil {
		return err
	}
	return s.writeObject(objectKey, normalized)
}

// SignedURL returns a GET URL valid for ttl.
func (s *LocalBlobStore) SignedURL(objectKey string, ttl time.Duration) (string, error) {
	if _, err := s.objectPath(objectKey); err != nil {
		return "", err
	}
	return s.signURL("GET", objectKey, time.Now().Add(ttl)), nil
}

// PresignUpload mints a fresh object key and a PUT URL for it, valid for
// 15 minutes.
func (s *LocalBlobStore) PresignUpload(ownerID, mimeType string) (string, string, error) {
	if !allowedImageMimeTypes[mimeType] {
		return "", "", ErrUnsupportedMediaType
	}

	objectKey := avatarObjectKey(ownerID)
	uploadURL := s.signURL("PUT", objectKey, time.Now().Add(15*time.Minute))
	return uploadURL, objectKey, nil
}

// Exists reports whether the object is present on disk.
func (s *LocalBlobStore) Exists(ctx context.Context, objectKey string) (bool, error) {
	path, err := s.objectPath(objectKey)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat object %s: %w", objectKey, err)
	}
	return true, nil
}

// Delete removes the object from disk. Orphaned blobs are acceptable, so
// callers may treat failures as log-only.
func (s *LocalBlobStore) Delete(ctx context.Context, objectKey string) error {
	path, err := s.objectPath(objectKey)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object %s: %w", objectKey, err)
	}
	return nil
}

// VerifySignature checks an exp/sig pair for a method and object key. Used
// by the file routes before serving or accepting bytes.
func (s *LocalBlobStore) VerifySignature(method, objectKey, expStr, sig string) bool {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return false
	}
	if time.Now().Unix() > exp {
		return false
	}
	expected := s.signature(method, objectKey, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// ObjectPath resolves an object key to its on-disk path, rejecting
// traversal attempts.
func (s *LocalBlobStore) ObjectPath(objectKey string) (string, error) {
	return s.objectPath(objectKey)
}

func (s *LocalBlobStore) objectPath(objectKey string) (string, error) {
	if objectKey == "" || strings.Contains(objectKey, "..") || strings.HasPrefix(objectKey, "/") {
		return "", ErrInvalidObjectKey
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(objectKey)), nil
}

func (s *LocalBlobStore) writeObject(objectKey string, data []byte) error {
	path, err := s.objectPath(objectKey)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write object %s: %w", objectKey, err)
	}
	s.logger.Printf("stored object %s (%d bytes)", objectKey, len(data))
	return nil
}

func (s *LocalBlobStore) signURL(method, objectKey string, expiry time.Time) string {
	exp := expiry.Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.signature(method, objectKey, exp))
	return fmt.Sprintf("%s/files/%s?%s", s.baseURL, objectKey, q.Encode())
}

func (s *LocalBlobStore) signature(method, objectKey string, exp int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s\n%s\n%d", method, objectKey, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

func avatarObjectKey(ownerID string) string {
	return fmt.Sprintf("avatars/%s_%s.jpg", ownerID, uuid.NewString())
}

func normalizeAvatar(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrUnsupportedMediaType
	}

	img = imaging.Fit(img, avatarMaxDimension, avatarMaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(avatarJPEGQuality)); err != nil {
		return nil, fmt.Errorf("failed to encode avatar: %w", err)
	}
	return buf.Bytes(), nil
}
