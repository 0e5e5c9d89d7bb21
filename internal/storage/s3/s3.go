// Package s3 is the S3-backed storage provider. Capability URLs are
// presigned by S3 itself, so redemption bypasses the transfer gateway
// entirely; the package deliberately does not implement storage.BlobStore.
package s3

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/kgellert/hodatay-images/internal/storage"
)

const (
	defaultUploadTTL   = 5 * time.Minute
	defaultDownloadTTL = time.Hour
)

type Config struct {
	Bucket       string
	MaxImageSize int64
	UploadTTL    time.Duration
	DownloadTTL  time.Duration
}

type Storage struct {
	bucket       string
	presigner    *awss3.PresignClient
	client       *awss3.Client
	maxImageSize int64
	uploadTTL    time.Duration
	downloadTTL  time.Duration
	now          func() time.Time
}

func New(cfg Config, client *awss3.Client, presigner *awss3.PresignClient) *Storage {
	s := &Storage{
		bucket:       cfg.Bucket,
		presigner:    presigner,
		client:       client,
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
	const op = "storage.s3.GenerateUploadURL"

	if roomID == "" || strings.ContainsAny(roomID, `/\`) || strings.Contains(roomID, "..") {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidKey)
	}

	ext, ok := storage.ExtForMime(mimeType)
	if !ok {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, storage.ErrInvalidContentType)
	}
	if sizeBytes > s.maxImageSize {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, storage.ErrFileTooLarge)
	}

	now := s.now()
	key := fmt.Sprintf("%s/%d_%s%s", roomID, now.UnixMilli(),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:12], ext)

	req := &awss3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(mimeType),
		Metadata: map[string]string{
			"original-filename": filename,
		},
	}

	ps, err := s.presigner.PresignPutObject(ctx, req, func(po *awss3.PresignOptions) {
		po.Expires = s.uploadTTL
	})
	if err != nil {
		return storage.UploadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	return storage.UploadGrant{
		URL:       ps.URL,
		Key:       key,
		ExpiresAt: now.Add(s.uploadTTL),
	}, nil
}

func (s *Storage) GenerateDownloadURL(ctx context.Context, key string) (storage.DownloadGrant, error) {
	const op = "storage.s3.GenerateDownloadURL"

	if err := storage.ValidateKey(key); err != nil {
		return storage.DownloadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	req := &awss3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}

	ps, err := s.presigner.PresignGetObject(ctx, req, func(po *awss3.PresignOptions) {
		po.Expires = s.downloadTTL
	})
	if err != nil {
		return storage.DownloadGrant{}, fmt.Errorf("%s: %w", op, err)
	}

	return storage.DownloadGrant{
		URL:       ps.URL,
		ExpiresAt: s.now().Add(s.downloadTTL),
	}, nil
}

func (s *Storage) DeleteImage(ctx context.Context, key string) error {
	const op = "storage.s3.DeleteImage"

	if err := storage.ValidateKey(key); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	// S3 DeleteObject succeeds for missing keys, matching the idempotent
	// delete contract.
	_, err := s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) Exists(ctx context.Context, key string) (bool, error) {
	const op = "storage.s3.Exists"

	if err := storage.ValidateKey(key); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return true, nil
}
