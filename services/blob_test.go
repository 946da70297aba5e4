package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestBlobStore(t *testing.T) *LocalBlobStore {
	t.Helper()

	store, err := NewLocalBlobStore(t.TempDir(), "http://localhost:8080", "file-secret")
	require.NoError(t, err)
	return store
}

func TestUploadNormalizesToBoundedJPEG(t *testing.T) {
	store := newTestBlobStore(t)

	objectKey, err := store.Upload(context.Background(), "owner1", pngBytes(t, 1024, 768), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(objectKey, "avatars/owner1_"))
	assert.True(t, strings.HasSuffix(objectKey, ".jpg"))

	path, err := store.ObjectPath(objectKey)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	bounds := img.Bounds()
	assert.LessOrEqual(t, bounds.Dx(), 512)
	assert.LessOrEqual(t, bounds.Dy(), 512)
}

func TestUploadRejectsNonImage(t *testing.T) {
	store := newTestBlobStore(t)

	_, err := store.Upload(context.Background(), "owner1", []byte("plain text"), "text/plain")
	assert.Equal(t, ErrUnsupportedMediaType, err)

	// Image mime type with non-image bytes fails at decode.
	_, err = store.Upload(context.Background(), "owner1", []byte("not an image"), "image/png")
	assert.Equal(t, ErrUnsupportedMediaType, err)
}

func TestSignedURLVerifies(t *testing.T) {
	store := newTestBlobStore(t)

	objectKey, err := store.Upload(context.Background(), "owner1", pngBytes(t, 64, 64), "image/png")
	require.NoError(t, err)

	signed, err := store.SignedURL(objectKey, 15*time.Minute)
	require.NoError(t, err)

	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	q := parsed.Query()
	assert.True(t, store.VerifySignature("GET", objectKey, q.Get("exp"), q.Get("sig")))

	// Signature is method-bound and key-bound.
	assert.False(t, store.VerifySignature("PUT", objectKey, q.Get("exp"), q.Get("sig")))
	assert.False(t, store.VerifySignature("GET", "avatars/other.jpg", q.Get("exp"), q.Get("sig")))
	assert.False(t, store.VerifySignature("GET", objectKey, "9999999999", q.Get("sig")))
}

func TestExpiredSignatureRejected(t *testing.T) {
	store := newTestBlobStore(t)

	objectKey, err := store.Upload(context.Background(), "owner1", pngBytes(t, 64, 64), "image/png")
	require.NoError(t, err)

	signed, err := store.SignedURL(objectKey, -time.Minute)
	require.NoError(t, err)

	parsed, err := url.Parse(signed)
	require.NoError(t, err)
	q := parsed.Query()
	assert.False(t, store.VerifySignature("GET", objectKey, q.Get("exp"), q.Get("sig")))
}

func TestObjectPathRejectsTraversal(t *testing.T) {
	store := newTestBlobStore(t)

	for _, key := range []string{"", "../etc/passwd", "avatars/../../etc/passwd", "/etc/passwd"} {
		_, err := store.ObjectPath(key)
		assert.Equal(t, ErrInvalidObjectKey, err, "key %q", key)
	}
}

func TestPresignUploadAndSaveRaw(t *testing.T) {
	store := newTestBlobStore(t)

	uploadURL, objectKey, err := store.PresignUpload("owner1", "image/jpeg")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(objectKey, "avatars/owner1_"))

	parsed, err := url.Parse(uploadURL)
	require.NoError(t, err)
	q := parsed.Query()
	assert.True(t, store.VerifySignature("PUT", objectKey, q.Get("exp"), q.Get("sig")))

	require.NoError(t, store.SaveRaw(objectKey, pngBytes(t, 64, 64)))

	path, err := store.ObjectPath(objectKey)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := newTestBlobStore(t)
	ctx := context.Background()

	objectKey, err := store.Upload(ctx, "owner1", pngBytes(t, 64, 64), "image/png")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, objectKey))
	require.NoError(t, store.Delete(ctx, objectKey))

	path, err := store.ObjectPath(objectKey)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
