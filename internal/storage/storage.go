// Package storage defines the provider contract for image object storage:
// issuing capability URLs, object lifecycle, and the shared key and
// content-type policy every backend follows.
package storage

import (
	"context"
	"errors"
	"path"
	"strings"
	"time"
)

var (
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrFileTooLarge       = errors.New("file size exceeds limit")
	ErrInvalidKey         = errors.New("invalid object key")
	ErrObjectNotFound     = errors.New("object not found")
	ErrUnsupportedBackend = errors.New("unsupported storage backend")
)

// DefaultMaxImageSize caps the declared size accepted at issuance time.
const DefaultMaxImageSize = 10 << 20 // 10 MiB

type UploadGrant struct {
	URL       string
	Key       string
	ExpiresAt time.Time
}

type DownloadGrant struct {
	URL       string
	ExpiresAt time.Time
}

// Provider issues capability URLs and manages object lifecycle. Keys
// returned by a provider are opaque to callers: a URL redeemed before its
// expiry performs exactly the declared operation on exactly the declared
// key, and nothing after expiry.
type Provider interface {
	GenerateUploadURL(ctx context.Context, roomID, userID, filename, mimeType string, sizeBytes int64) (UploadGrant, error)
	GenerateDownloadURL(ctx context.Context, key string) (DownloadGrant, error)
	// DeleteImage is idempotent: deleting a missing key is not an error.
	DeleteImage(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// BlobStore is the byte-level capability the transfer gateway redeems
// tokens against. Backends that hand bytes off elsewhere (presigned S3)
// do not implement it, which keeps the gateway wiring a compile-time
// decision rather than a runtime type check.
type BlobStore interface {
	SaveFile(ctx context.Context, key string, data []byte) error
	ReadFile(ctx context.Context, key string) ([]byte, error)
}

var extForMime = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var mimeForExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func ExtForMime(m string) (string, bool) {
	ext, ok := extForMime[m]
	return ext, ok
}

func IsAllowedContentType(m string) bool {
	_, ok := extForMime[m]
	return ok
}

// MimeForKey maps a key's extension back to a content type for serving.
// Unrecognized extensions fall back to a generic binary type.
func MimeForKey(key string) string {
	if m, ok := mimeForExt[strings.ToLower(path.Ext(key))]; ok {
		return m
	}
	return "application/octet-stream"
}

// ValidateKey accepts only the {roomId}/{file} shape providers generate.
func ValidateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	parts := strings.Split(key, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return ErrInvalidKey
	}
	return nil
}

// RoomIDFromKey returns the room namespace segment of a valid key.
func RoomIDFromKey(key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key[:strings.IndexByte(key, '/')], nil
}
