// Package fs is the filesystem-backed storage provider. It generates
// object keys, signs capability tokens for the transfer gateway, and
// performs the byte-level reads and writes under a local root directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kgellert/hodatay-images/internal/storage"
	"github.com/kgellert/hodatay-images/internal/token"
)

const (
	defaultUploadTTL   = 5 * time.Minute
	defaultDownloadTTL = time.Hour

	randomSuffixLen = 12
)

type Config struct {
	Root         string
	BaseURL      string
	MaxImageSize int64
	UploadTTL    time.Duration
	DownloadTTL  time.Duration
}

type Storage struct {
	root         string
	baseURL      string
	codec        *token.Codec
	maxImageSize int64
	uploadTTL    time.Duration
	downloadTTL  time.Duration
	now          func() time.Time
}

func New(cfg Config, codec *token.Codec) *Storage {
	s := &Storage{
		root:         cfg.Root,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		codec:        codec,
		maxImageSize: cfg.MaxImageSize,
		uploadTTL:    cfg.UploadTTL,
		downloadTTL:  cfg.DownloadTTL,
		now:          time.Now,
	}
	if s.maxImageSize <= 0 {
		s.maxImageSize = storage.DefaultMaxImageSize
	}
	if s.uploadTTL <= 0 {
		s.uploadTTL = defaultUploadTTL
	}
	if s.downloadTTL <= 0 {
		s.downloadTTL = defaultDownloadTTL
	}
	return s
}

func (s *Storage) GenerateUploadURL(ctx context.Context, roomID, userID, filename, mimeType string, sizeBytes int64) (storage.UploadGrant, error) {
	const op = "storage.fs.GenerateUploadURL"

	if err := validateRoomID(roomID); err != nil {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	ext, ok := storage.ExtForMime(mimeType)
	if !ok {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidContentType)
	}
	if err := checkFilenameExt(filename, mimeType); err != nil {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	if sizeBytes > s.maxImageSize {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, storage.ErrFileTooLarge)
	}

	now := s.now()
	key := buildKey(roomID, now, ext)
	expiresAt := now.Add(s.uploadTTL)

	tok, err := s.codec.Create(token.UploadPayload{
		Operation: token.OpUpload,
		Key:       key,
		RoomID:    roomID,
		UserID:    userID,
		MimeType:  mimeType,
		MaxSize:   sizeBytes,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	return storage.UploadGrant{
		URL:       s.baseURL + "/images/upload/" + tok,
		Key:       key,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Storage) GenerateDownloadURL(ctx context.Context, key string) (storage.DownloadGrant, error) {
	const op = "storage.fs.GenerateDownloadURL"

	roomID, err := storage.RoomIDFromKey(key)
	if err != nil {
		return storage.DownloadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	expiresAt := s.now().Add(s.downloadTTL)

	tok, err := s.codec.Create(token.DownloadPayload{
		Operation: token.OpDownload,
		Key:       key,
		RoomID:    roomID,
		ExpiresAt: expiresAt.Unix(),
	})
	if err != nil {
		return storage.DownloadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	return storage.DownloadGrant{
		URL:       s.baseURL + "/images/download/" + tok,
		ExpiresAt: expiresAt,
	}, nil
}

// SaveFile writes the full buffer under the key, creating the room
// directory on first use. Writes to the same key are last-write-wins;
// keys are never legitimately reused, so no locking is done.
func (s *Storage) SaveFile(ctx context.Context, key string, data []byte) error {
	const op = "storage.fs.SaveFile"

	path, err := s.objectPath(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%s: mkdir: %w", op, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("%s: write: %w", op, err)
	}

	return nil
}

func (s *Storage) ReadFile(ctx context.Context, key string) ([]byte, error) {
	const op = "storage.fs.ReadFile"

	path, err := s.objectPath(key)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", op, storage.ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read: %w", op, err)
	}

	return data, nil
}

func (s *Storage) DeleteImage(ctx context.Context, key string) error {
	const op = "storage.fs.DeleteImage"

	path, err := s.objectPath(key)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: remove: %w", op, err)
	}

	return nil
}

func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	const op = "storage.fs.Exists"

	path, err := s.objectPath(key)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("%s: stat: %w", op, err)
	}

	return true, nil
}

func (s *Storage) objectPath(key string) (string, error) {
	if err := storage.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// buildKey produces {roomId}/{millis}_{random12}.{ext}. The timestamp plus
// random suffix make collisions practically impossible even within one
// millisecond.
func buildKey(roomID string, now time.Time, ext string) string {
	return fmt.Sprintf("%s/%d_%s%s", roomID, now.UnixMilli(), randomSuffix(), ext)
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:randomSuffixLen]
}

// validateRoomID keeps the room usable as a single directory segment.
func validateRoomID(roomID string) error {
	if roomID == "" {
		return storage.ErrInvalidKey
	}
	if strings.ContainsAny(roomID, `/\`) || strings.Contains(roomID, "..") {
		return storage.ErrInvalidKey
	}
	return nil
}

// checkFilenameExt rejects a client filename whose extension contradicts
// the declared content type. The extension on the generated key always
// comes from the content type, never from the filename.
func checkFilenameExt(filename, mimeType string) error {
	if filename == "" {
		return nil
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return nil
	}
	if storage.MimeForKey(filename) != mimeType {
		return storage.ErrInvalidContentType
	}
	return nil
}
